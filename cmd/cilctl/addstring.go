package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmikstacki/cilkit/cil/assembly"
)

func init() {
	cmd := newAddStringCmd()
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default <input>.patched.<ext>)")
	rootCmd.AddCommand(cmd)
}

func newAddStringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-string <assembly> <value>",
		Short: "Append a string to the #Strings heap",
		Long: `The add-string command appends a value to the #Strings heap, validates
the session, and writes a patched copy of the assembly. The printed
offset is what a metadata row stores to reference the new string.

Example:
  cilctl add-string app.dll MyNewType
  cilctl add-string app.dll MyNewType --out patched.dll`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddString(args)
		},
	}
}

func runAddString(args []string) error {
	path, value := args[0], args[1]

	printVerbose("Opening assembly: %s\n", path)

	a, err := assembly.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open assembly: %w", err)
	}
	defer a.Close()

	idx := a.StringAdd(value)

	out, err := applyAndWrite(a, path)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"file":   path,
			"out":    out,
			"value":  value,
			"offset": idx,
		})
	}

	printInfo("Added %q at #Strings offset %d\n", value, idx)
	printInfo("Wrote %s\n", out)
	return nil
}
