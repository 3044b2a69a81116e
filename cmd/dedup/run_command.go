package main

import (
	"context"
	"fmt"
	"time"

	"corpus-dedup/internal/pipeline"

	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var sources, layers []string
	var threshold float64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Refresh fingerprints, detect duplicates and optionally auto-merge in one pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{Sources: sources, Layers: layers}
			if cmd.Flags().Changed("auto-merge") {
				opts.AutoMergeThreshold = &threshold
			}
			return ctx.withApp(cmd, appOptions{exclusive: true, sideEffects: opts.AutoMergeThreshold != nil}, func(c context.Context, a *app) error {
				processor := pipeline.NewProcessor(a.fingerprintService(), a.detectService(), a.mergeService())
				report, err := processor.Process(c, opts)
				if report != nil {
					if len(report.Fingerprinted) > 0 {
						printFingerprintCounts(cmd, report.Fingerprinted)
					}
					printDetectionStats(cmd, report.Detection)
					if report.AutoMerge != nil {
						printAutoMergeSummary(cmd, report.AutoMerge)
					}
					if err == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "Done in %s\n", report.Elapsed.Round(time.Millisecond))
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringSliceVar(&sources, "source", nil, "Source to refresh (repeatable; default all)")
	cmd.Flags().StringSliceVar(&layers, "layer", nil, "Detection layer to run (repeatable; default all)")
	cmd.Flags().Float64Var(&threshold, "auto-merge", 0.95, "Auto-merge clusters at or above this confidence after detection")
	return cmd
}
