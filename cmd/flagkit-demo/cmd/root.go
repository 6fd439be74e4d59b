// Package cmd wires the flagkit-demo cobra commands together.
//
// Grounded on hashmap-kz-katomik's cmd/root.go (a thin NewRootCmd that
// disables the default completion command and appends one subcommand per
// file) and dorkly/cmd/dorkly/main.go's env-var-or-flag configuration
// style for the subcommands themselves.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the flagkit-demo root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "flagkit-demo",
		Short:         "Reference host process for the flagkit evaluation core.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(NewStartCmd())
	rootCmd.AddCommand(NewEvaluateCmd())
	rootCmd.AddCommand(NewVersionCmd())
	return rootCmd
}
