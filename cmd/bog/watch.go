package main

import (
	"fmt"
	"os"

	"github.com/dasimmet/bog"
	"github.com/dasimmet/bog/internal/value"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var importFiles bool

	cmd := &cobra.Command{
		Use:   "watch <file.bog>",
		Short: "Recompile and run a Bog source file on every save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			w, err := fsnotify.NewWatcher()
			if err != nil {
				return &cliError{code: exitIO, err: err}
			}
			defer w.Close()
			if err := w.Add(path); err != nil {
				return &cliError{code: exitIO, err: err}
			}

			runOnce(path, importFiles)
			for {
				select {
				case ev, ok := <-w.Events:
					if !ok {
						return nil
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						runOnce(path, importFiles)
					}
				case werr, ok := <-w.Errors:
					if !ok {
						return nil
					}
					fmt.Fprintln(os.Stderr, "watch:", werr)
				}
			}
		},
	}

	cmd.Flags().BoolVar(&importFiles, "import-files", false, "allow import(...) to read from disk")
	return cmd
}

// runOnce compiles and runs path, reporting failures to stderr without
// aborting the watch loop — a single bad save shouldn't kill the session.
func runOnce(path string, importFiles bool) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "watch:", err)
		return
	}
	mod, err := bog.Compile(path, src)
	if err != nil {
		if f, ok := err.(*bog.Failure); ok {
			bog.Render(os.Stderr, f, src)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return
	}
	v := bog.NewVM(bog.Options{ImportFiles: importFiles})
	result, err := v.Run(mod)
	if err != nil {
		if f, ok := err.(*bog.Failure); ok {
			bog.Render(os.Stderr, f, src)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return
	}
	fmt.Println(value.ToDisplayString(result))
}
