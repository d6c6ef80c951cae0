package main

import (
	"os"
	"strings"

	"github.com/dasimmet/bog"
	"github.com/spf13/cobra"
)

func newBuildCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "build <file.bog>",
		Short: "Compile a Bog source file to a .bogc bytecode module",
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

			outPath := out
			if outPath == "" {
				outPath = strings.TrimSuffix(path, ".bog") + ".bogc"
			}
			f, err := os.Create(outPath)
			if err != nil {
				return &cliError{code: exitIO, err: err}
			}
			defer f.Close()
			if _, err := mod.Encode(f); err != nil {
				return &cliError{code: exitIO, err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default: <input>.bogc)")
	return cmd
}
