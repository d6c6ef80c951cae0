package main

import (
	"fmt"
	"os"

	"github.com/dasimmet/bog"
	"github.com/dasimmet/bog/internal/value"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var importFiles bool
	var repl bool
	var maxImportSize uint32

	cmd := &cobra.Command{
		Use:   "run <file.bog>",
		Short: "Compile and run a Bog source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := os.ReadFile(path)
			if err != nil {
				return &cliError{code: exitIO, err: err}
			}

			mod, err := bog.Compile(path, src)
			if err != nil {
				return compileFailure(path, src, err)
			}

			v := bog.NewVM(bog.Options{
				ImportFiles:   importFiles,
				Repl:          repl,
				MaxImportSize: maxImportSize,
			})
			result, err := v.Run(mod)
			if err != nil {
				return runFailure(path, src, err)
			}
			fmt.Println(value.ToDisplayString(result))
			return nil
		},
	}

	cmd.Flags().BoolVar(&importFiles, "import-files", false, "allow import(...) to read from disk")
	cmd.Flags().BoolVar(&repl, "repl", false, "treat a bare top-level expression as the program's result")
	cmd.Flags().Uint32Var(&maxImportSize, "max-import-size", 0, "max bytes for a single imported module (0 = default)")
	return cmd
}

func compileFailure(path string, src []byte, err error) error {
	f, ok := err.(*bog.Failure)
	if !ok {
		return &cliError{code: exitCompile, err: err}
	}
	bog.Render(os.Stderr, f, src)
	return &cliError{code: failureExitCode(f.Kind), err: fmt.Errorf("%s: compile failed", path)}
}

func runFailure(path string, src []byte, err error) error {
	f, ok := err.(*bog.Failure)
	if !ok {
		return &cliError{code: exitRuntime, err: err}
	}
	bog.Render(os.Stderr, f, src)
	return &cliError{code: failureExitCode(f.Kind), err: fmt.Errorf("%s: run failed", path)}
}

func failureExitCode(kind bog.FailureKind) int {
	switch kind {
	case bog.TokenizeError:
		return exitTokenize
	case bog.ParseError:
		return exitParse
	case bog.CompileError:
		return exitCompile
	case bog.RuntimeError:
		return exitRuntime
	case bog.MalformedByteCode:
		return exitMalformed
	case bog.OutOfMemory:
		return exitOOM
	case bog.IoError:
		return exitIO
	default:
		return exitUsage
	}
}
