// Command bog is a thin CLI over the bog package: run a script, compile it
// to bytecode, or watch a file and re-run it on save.
//
// Grounded on the teacher's cli/main.go rootCmd/cobra wiring and
// cmd/devcmd/main.go's exit-code-per-failure-kind discipline, generalized
// from opal's plan/dry-run/resolve flags to Bog's run/build/watch
// subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes mirror bog.FailureKind plus the generic argument/IO failures a
// CLI itself can hit before ever reaching the pipeline.
const (
	exitSuccess = 0
	exitUsage   = 1
	exitIO      = 2
	exitTokenize = 10
	exitParse    = 11
	exitCompile  = 12
	exitRuntime  = 13
	exitMalformed = 14
	exitOOM       = 15
)

func main() {
	root := &cobra.Command{
		Use:           "bog",
		Short:         "Bog — an embeddable scripting language",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newBuildCmd())
	root.AddCommand(newWatchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if ce, ok := errAsCLI(err); ok {
		return ce.code
	}
	return exitUsage
}

// cliError carries an explicit process exit code alongside its message, so
// RunE can return a typed error without calling os.Exit deep in a command
// (which would skip any deferred cleanup, same concern the teacher's
// cli/main.go comments flag about os.Exit mid-flow).
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func errAsCLI(err error) (*cliError, bool) {
	ce, ok := err.(*cliError)
	return ce, ok
}
