package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/railopt/core/audit"
)

var (
	auditConflict string
	auditTrain    string
	auditReview   bool
	auditSince    time.Duration
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query recorded decisions",
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditConflict, "conflict", "", "only decisions for this conflict")
	auditCmd.Flags().StringVar(&auditTrain, "train", "", "only decisions involving this train")
	auditCmd.Flags().BoolVar(&auditReview, "review", false, "only decisions requiring human review")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "only decisions newer than this")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := audit.Open(cfg.Audit)
	if err != nil {
		return err
	}
	defer store.Close()

	q := audit.Query{ConflictID: auditConflict, TrainID: auditTrain, ReviewOnly: auditReview}
	if auditSince > 0 {
		q.Start = time.Now().Add(-auditSince)
	}
	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []audit.Record{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}
