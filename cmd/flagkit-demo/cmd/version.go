package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the flagkit-demo build version, overridable at link time via
// -ldflags "-X .../cmd.Version=...".
var Version = "dev"

// NewVersionCmd prints the binary's version and exits.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the flagkit-demo version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			return nil
		},
	}
}
