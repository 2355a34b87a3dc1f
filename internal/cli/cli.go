// Package cli is the terminal front-end: an interactive chat and the admin
// console as subcommands.
package cli

import (
	"fmt"
	"os"
)

// Run starts the CLI application
func Run(version string) {
	rootCmd := NewRootCmd(version)

	if err := Execute(rootCmd); err != nil {
		if !isInterrupt(err) {
			fmt.Fprintln(os.Stderr, RenderError(err))
		}
		os.Exit(1)
	}
}
