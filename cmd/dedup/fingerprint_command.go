package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

func newFingerprintCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <source|all>",
		Short: "Refresh document fingerprints for one source or all sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, appOptions{exclusive: true}, func(c context.Context, a *app) error {
				svc := a.fingerprintService()
				counts := make(map[string]int)
				if args[0] == "all" {
					var err error
					counts, err = svc.GenerateAll(c)
					printFingerprintCounts(cmd, counts)
					return err
				}
				n, err := svc.Generate(c, args[0])
				if err != nil {
					return err
				}
				counts[args[0]] = n
				printFingerprintCounts(cmd, counts)
				return nil
			})
		},
	}
}

func printFingerprintCounts(cmd *cobra.Command, counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	total := 0
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(counts[name])})
		total += counts[name]
	}
	rows = append(rows, []string{"total", strconv.Itoa(total)})
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Source", "Fingerprints"}, rows, []columnAlignment{alignLeft, alignRight}))
}
