package main

import (
	"fmt"
	"os"

	"neurodyn/internal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var logger = internal.NewNopLogger()

func main() {
	_ = godotenv.Load()

	var verbose bool
	rootCmd := &cobra.Command{
		Use:   "neurodyn",
		Short: "Exponential distance rule and long-range connection analysis for structural connectomes",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger = internal.NewLogger(internal.LogLevelDebug)
			} else {
				logger = internal.NewDefaultLogger()
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(
		newFitCmd(),
		newClongCmd(),
		newCompareCmd(),
		newCohortCmd(),
		newGenerateCmd(),
	)

	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
