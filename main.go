package main

import (
	"os"
	"time"

	"github.com/kilianp07/railopt/cmd"
	"github.com/kilianp07/railopt/core/monitoring"
)

func main() {
	err := cmd.Execute()
	monitoring.Flush(2 * time.Second)
	if err != nil {
		os.Exit(1)
	}
}
