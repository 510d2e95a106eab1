package commands

import "github.com/spf13/cobra"

// NewRootCmd builds the streamlike CLI's root command and its subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "streamlike",
		Short: "Exercise the ring buffer / prefetch / HTTP range-seek stream pipeline",
	}
	rootCmd.AddCommand(
		newCatCmd(),
		newProbeCmd(),
		newMetricsCmd(),
	)
	return rootCmd
}
