package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "helpdeskctl",
		Short:        "Operator tools for the help-desk service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(),
		newUserCommand(),
		newSLACommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
