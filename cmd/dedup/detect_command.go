package main

import (
	"context"
	"fmt"
	"strconv"

	"corpus-dedup/internal/service"

	"github.com/spf13/cobra"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var layers []string
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run duplicate detection layers over the current fingerprints",
		Long: "Runs the exact, fuzzy and simhash layers (or the ones named with --layer).\n" +
			"Clusters are committed at checkpoints; an interrupted run can simply be restarted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{exclusive: true}, func(c context.Context, a *app) error {
				stats, err := a.detectService().Run(c, layers)
				printDetectionStats(cmd, stats)
				return err
			})
		},
	}
	cmd.Flags().StringSliceVar(&layers, "layer", nil, "Detection layer to run: exact, fuzzy or simhash (repeatable)")
	return cmd
}

func printDetectionStats(cmd *cobra.Command, stats []service.DetectionStats) {
	if len(stats) == 0 {
		return
	}
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{s.Layer, strconv.Itoa(s.Scanned), strconv.Itoa(s.Created), strconv.Itoa(s.Existing)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Layer", "Scanned", "New clusters", "Already known"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))
}
