package main

import (
	"context"
	"fmt"
	"strconv"

	"corpus-dedup/internal/model"

	"github.com/spf13/cobra"
)

func newClusterCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "List duplicate clusters",
	}
	cmd.AddCommand(newClusterListCommand(ctx))
	cmd.AddCommand(newClusterStatsCommand(ctx))
	return cmd
}

func newClusterListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clusters, highest confidence first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				clusters, err := a.reviewService().ListClusters(c, status, limit)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(clusters))
				for _, cl := range clusters {
					rows = append(rows, []string{
						strconv.FormatUint(uint64(cl.ID), 10),
						cl.ClusterType,
						strconv.FormatFloat(cl.ConfidenceScore, 'f', 2, 64),
						cl.ReviewStatus,
						model.LocalTime(cl.CreatedAt).String(),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Confidence", "Status", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", model.ReviewStatusPending, "Review status filter (pending, merged, rejected; empty for all)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of clusters (0 for no limit)")
	return cmd
}

func newClusterStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count clusters by review status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				counts, err := a.reviewService().Stats(c)
				if err != nil {
					return err
				}
				rows := [][]string{}
				for _, status := range []string{model.ReviewStatusPending, model.ReviewStatusMerged, model.ReviewStatusRejected} {
					rows = append(rows, []string{status, strconv.FormatInt(counts[status], 10)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Clusters"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
