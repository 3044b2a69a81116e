package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"corpus-dedup/internal/service"

	"github.com/spf13/cobra"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Inspect, merge or reject duplicate clusters",
	}
	cmd.AddCommand(newMergeInfoCommand(ctx))
	cmd.AddCommand(newMergeApplyCommand(ctx))
	cmd.AddCommand(newMergeAutoCommand(ctx))
	cmd.AddCommand(newMergeRejectCommand(ctx))
	return cmd
}

func parseClusterID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid cluster id %q", service.ErrValidation, arg)
	}
	return uint(id), nil
}

func newMergeInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info <cluster-id>",
		Short: "Show a cluster and its member documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClusterID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				info, err := a.reviewService().GetClusterInfo(c, id)
				if err != nil {
					return err
				}
				printClusterInfo(cmd, info)
				return nil
			})
		},
	}
}

func printClusterInfo(cmd *cobra.Command, info *service.ClusterInfo) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cluster %d  %s  confidence %.2f  status %s\n", info.ID, info.ClusterType, info.ConfidenceScore, info.ReviewStatus)
	fmt.Fprintf(out, "Created   %s\n", info.CreatedAt)
	if info.ReviewedAt != nil {
		fmt.Fprintf(out, "Reviewed  %s\n", info.ReviewedAt)
	}
	if info.CanonicalFingerprintID != nil {
		fmt.Fprintf(out, "Canonical fingerprint %d\n", *info.CanonicalFingerprintID)
	}
	if info.Notes != "" {
		fmt.Fprintf(out, "Notes     %s\n", info.Notes)
	}

	rows := make([][]string, 0, len(info.Members))
	for _, m := range info.Members {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(m.FingerprintID), 10),
			m.Source,
			strconv.FormatUint(uint64(m.SourceID), 10),
			m.TitleNormalized,
			strconv.Itoa(m.WordCount),
			strconv.FormatInt(m.TagCount, 10),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Fingerprint", "Source", "Doc", "Title", "Words", "Tags"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignRight},
	))
	if len(info.MissingMembers) > 0 {
		fmt.Fprintf(out, "Members no longer fingerprinted: %v\n", info.MissingMembers)
	}
}

func newMergeApplyCommand(ctx *commandContext) *cobra.Command {
	var keep uint
	var remove []uint
	var notes string
	cmd := &cobra.Command{
		Use:   "apply <cluster-id>",
		Short: "Merge a cluster into one canonical document (irreversible)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClusterID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, appOptions{exclusive: true, sideEffects: true}, func(c context.Context, a *app) error {
				result, err := a.mergeService().MergeCluster(c, id, keep, remove, notes)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Merged cluster %d into fingerprint %d, removed %v\n", result.ClusterID, result.KeepID, result.RemovedIDs)
				fmt.Fprintf(out, "Tags before: %d  after: %d  (+%d)\n", len(result.TagsBefore), len(result.TagsAfter), result.TagsAdded)
				return nil
			})
		},
	}
	cmd.Flags().UintVar(&keep, "keep", 0, "Fingerprint id of the document to keep")
	cmd.Flags().UintSliceVar(&remove, "remove", nil, "Fingerprint ids of the documents to delete")
	cmd.Flags().StringVar(&notes, "notes", "", "Reviewer notes recorded on the cluster")
	_ = cmd.MarkFlagRequired("keep")
	_ = cmd.MarkFlagRequired("remove")
	return cmd
}

func newMergeAutoCommand(ctx *commandContext) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Merge every pending cluster at or above a confidence threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{exclusive: true, sideEffects: true}, func(c context.Context, a *app) error {
				summary, err := a.mergeService().AutoMergeHighConfidence(c, threshold)
				if err != nil {
					return err
				}
				printAutoMergeSummary(cmd, summary)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0.95, "Minimum confidence score")
	return cmd
}

func printAutoMergeSummary(cmd *cobra.Command, summary *service.AutoMergeSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Threshold", "Considered", "Merged", "Skipped", "Failed"},
		[][]string{{
			strconv.FormatFloat(summary.Threshold, 'f', 2, 64),
			strconv.Itoa(summary.Considered),
			strconv.Itoa(summary.Merged),
			strconv.Itoa(summary.Skipped),
			strconv.Itoa(summary.Failed),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	ids := make([]uint, 0, len(summary.Failures))
	for id := range summary.Failures {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(out, "cluster %d failed: %s\n", id, summary.Failures[id])
	}
}

func newMergeRejectCommand(ctx *commandContext) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "reject <cluster-id>",
		Short: "Mark a cluster as not a duplicate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseClusterID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, appOptions{}, func(c context.Context, a *app) error {
				if err := a.reviewService().RejectCluster(c, id, notes); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cluster %d rejected\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "Reason recorded on the cluster")
	return cmd
}
