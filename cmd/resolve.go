package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/railopt/app"
	"github.com/kilianp07/railopt/qa/scenarios"
)

var scenarioFiles []string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the conflicts described in scenario files",
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringArrayVarP(&scenarioFiles, "scenario", "s", nil, "scenario file (repeatable)")
	_ = resolveCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(resolveCmd)
}

type scenarioReport struct {
	Scenario string        `json:"scenario"`
	Outcomes []app.Outcome `json:"outcomes"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded := make([]*scenarios.Scenario, len(scenarioFiles))
	for i, path := range scenarioFiles {
		sc, err := scenarios.Load(path)
		if err != nil {
			return err
		}
		loaded[i] = sc
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer closeService(svc)

	reports := make([]scenarioReport, len(loaded))
	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range loaded {
		g.Go(func() error {
			conflicts, err := sc.ConflictList()
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			reports[i] = scenarioReport{
				Scenario: sc.Name,
				Outcomes: svc.ResolveBatch(gctx, conflicts, sc.Snapshot()),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
