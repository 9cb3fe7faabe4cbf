package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/railopt/app"
	"github.com/kilianp07/railopt/config"
	coremetrics "github.com/kilianp07/railopt/core/metrics"
	"github.com/kilianp07/railopt/core/model"
	"github.com/kilianp07/railopt/qa/synthetic"
)

var (
	benchCount int
	benchSeed  int64
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Resolve randomly generated conflicts and report statistics",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&benchCount, "count", "n", 10000, "number of conflicts")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 1, "generator seed")
	rootCmd.AddCommand(benchCmd)
}

type benchReport struct {
	Conflicts  int                  `json:"conflicts"`
	Errors     int64                `json:"errors"`
	Violations int64                `json:"violations"`
	Elapsed    string               `json:"elapsed"`
	Stats      coremetrics.Snapshot `json:"stats"`
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchCount <= 0 {
		return fmt.Errorf("count must be positive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// nothing generated here should reach the audit log or the trains
	cfg.Audit = config.Default().Audit
	cfg.Execution.Mode = config.ExecutionNop
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer closeService(svc)

	gen := synthetic.NewGenerator(benchSeed)
	type item struct {
		c    model.Conflict
		snap model.NetworkSnapshot
	}
	items := make([]item, benchCount)
	for i := range items {
		c, snap := gen.Next()
		items[i] = item{c, snap}
	}

	var errs, violations atomic.Int64
	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, it := range items {
		g.Go(func() error {
			d, err := svc.Optimizer.OptimizeConflict(ctx, it.c, it.snap)
			if err != nil {
				errs.Add(1)
				return nil
			}
			if !within(d.Score, 100) || !within(d.Confidence, 1) {
				violations.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := benchReport{
		Conflicts:  benchCount,
		Errors:     errs.Load(),
		Violations: violations.Load(),
		Elapsed:    time.Since(start).String(),
		Stats:      svc.Aggregator.Snapshot(),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return err
	}
	if rep.Violations > 0 {
		return fmt.Errorf("%d decisions out of bounds", rep.Violations)
	}
	return nil
}

func within(v, hi float64) bool { return !math.IsNaN(v) && v >= 0 && v <= hi }
