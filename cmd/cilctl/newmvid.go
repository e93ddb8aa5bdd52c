package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/assembly"
	"github.com/pmikstacki/cilkit/cil/builder"
)

func init() {
	cmd := newNewMVIDCmd()
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default <input>.patched.<ext>)")
	rootCmd.AddCommand(cmd)
}

func newNewMVIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new-mvid <assembly>",
		Short: "Replace the module version identifier",
		Long: `The new-mvid command mints a fresh GUID, stores it in the #GUID heap,
points the Module row's Mvid column at the new slot, and writes a
patched copy. Tooling that keys on the MVID treats the output as a
distinct build.

Example:
  cilctl new-mvid app.dll
  cilctl new-mvid app.dll --out rebuilt.dll`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNewMVID(args)
		},
	}
}

func runNewMVID(args []string) error {
	path := args[0]

	printVerbose("Opening assembly: %s\n", path)

	a, err := assembly.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open assembly: %w", err)
	}
	defer a.Close()

	b := builder.NewContext(a)
	slot, id, err := b.NewMVID()
	if err != nil {
		return fmt.Errorf("failed to mint MVID: %w", err)
	}

	row, err := a.View().Row(cil.NewToken(cil.TableModule, 1))
	if err != nil {
		return fmt.Errorf("failed to read Module row: %w", err)
	}
	mod, ok := row.(cil.ModuleRow)
	if !ok {
		return fmt.Errorf("unexpected Module row type %T", row)
	}
	mod.MVID = slot
	if err := b.TableRowUpdate(cil.TableModule, 1, mod); err != nil {
		return fmt.Errorf("failed to update Module row: %w", err)
	}
	b.Finish()

	out, err := applyAndWrite(a, path)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"file": path,
			"out":  out,
			"mvid": id.String(),
			"slot": slot,
		})
	}

	printInfo("New MVID: %s (#GUID slot %d)\n", id, slot)
	printInfo("Wrote %s\n", out)
	return nil
}
