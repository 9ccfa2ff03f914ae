package cmd

import (
	"fmt"
	"sort"

	domainPinterest "github.com/AzielCF/az-sticker/domains/pinterest"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired cache entries and old temp artifacts once",
	RunE:  runSweep,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entries per namespace and temp dir usage",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(sweepCmd, statsCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	report := janitorUsecase.RunOnce(cmd.Context())

	namespaces := make([]string, 0, len(report.Removed))
	for ns := range report.Removed {
		namespaces = append(namespaces, string(ns))
	}
	sort.Strings(namespaces)

	out := cmd.OutOrStdout()
	for _, ns := range namespaces {
		fmt.Fprintf(out, "%s\t%d expired\n", ns, report.Removed[domainPinterest.Namespace(ns)])
	}
	fmt.Fprintf(out, "temp\t%d removed\t%s freed\n", report.TempRemoved, report.HumanFreed)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	stats, err := janitorUsecase.Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, ns := range stats.Namespaces {
		fmt.Fprintf(out, "%s\t%d entries\t%d results\n", ns.Namespace, ns.Entries, ns.Results)
	}
	fmt.Fprintf(out, "temp\t%s\n", stats.HumanSize)
	return nil
}
