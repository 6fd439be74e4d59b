// Command flagkit-demo is a reference host process for the flagkit
// evaluation core: it loads a YAML configuration, brings up the data
// source it names, and either evaluates a single flag or runs until
// interrupted.
//
// Grounded on dorkly/cmd/dorkly/main.go's flat-main-plus-env/flag
// configuration shape, restructured around cobra subcommands the way
// hashmap-kz-katomik/cmd lays its commands out.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/flagkit/core/cmd/flagkit-demo/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
