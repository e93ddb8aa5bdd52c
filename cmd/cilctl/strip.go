package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmikstacki/cilkit/cil"
	"github.com/pmikstacki/cilkit/cil/assembly"
	"github.com/pmikstacki/cilkit/pkg/types"
)

var (
	stripNamespace string
	stripCascade   bool
)

func init() {
	cmd := newStripCmd()
	cmd.Flags().StringVar(&stripNamespace, "namespace", "", "Match only types in this namespace")
	cmd.Flags().BoolVar(&stripCascade, "cascade", false,
		"Delete rows that reference the type instead of failing")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default <input>.patched.<ext>)")
	rootCmd.AddCommand(cmd)
}

func newStripCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strip <assembly> <type-name>",
		Short: "Remove a named TypeDef row",
		Long: `The strip command removes the first TypeDef whose name (and namespace,
when --namespace is set) matches, then validates and writes a patched
copy. Without --cascade the removal fails if any other row still
references the type; with it, referencing rows are deleted too.

Example:
  cilctl strip app.dll LegacyHelper
  cilctl strip app.dll Widget --namespace Demo --cascade`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrip(args)
		},
	}
}

func runStrip(args []string) error {
	path, typeName := args[0], args[1]

	printVerbose("Opening assembly: %s\n", path)

	a, err := assembly.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open assembly: %w", err)
	}
	defer a.Close()

	rid, err := findTypeDef(a.View(), typeName, stripNamespace)
	if err != nil {
		return err
	}

	strategy := types.FailIfReferenced
	if stripCascade {
		strategy = types.RemoveReferences
	}

	tok := cil.NewToken(cil.TableTypeDef, rid)
	printVerbose("Removing %s (%s)\n", tok, strategy)

	if err := a.TableRowRemove(cil.TableTypeDef, rid, strategy); err != nil {
		return fmt.Errorf("failed to remove %s: %w", tok, err)
	}

	out, err := applyAndWrite(a, path)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"file":     path,
			"out":      out,
			"type":     typeName,
			"token":    tok.String(),
			"strategy": strategy.String(),
		})
	}

	printInfo("Removed %s (%s)\n", tok, typeName)
	printInfo("Wrote %s\n", out)
	return nil
}

// findTypeDef scans the TypeDef table for the first row matching name,
// and namespace when one is given.
func findTypeDef(v *cil.View, name, namespace string) (uint32, error) {
	count := v.TableRowCount(cil.TableTypeDef)
	for rid := uint32(1); rid <= count; rid++ {
		row, err := v.Row(cil.NewToken(cil.TableTypeDef, rid))
		if err != nil {
			return 0, fmt.Errorf("failed to read TypeDef %d: %w", rid, err)
		}
		td, ok := row.(cil.TypeDefRow)
		if !ok {
			continue
		}
		got, err := v.String(td.Name)
		if err != nil || got != name {
			continue
		}
		if namespace != "" {
			ns, err := v.String(td.Namespace)
			if err != nil || ns != namespace {
				continue
			}
		}
		return rid, nil
	}
	if namespace != "" {
		return 0, fmt.Errorf("type %s.%s not found", namespace, name)
	}
	return 0, fmt.Errorf("type %q not found", name)
}
