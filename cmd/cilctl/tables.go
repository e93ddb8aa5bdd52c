package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmikstacki/cilkit/cil"
)

var tablesAll bool

func init() {
	cmd := newTablesCmd()
	cmd.Flags().BoolVar(&tablesAll, "all", false, "Include tables with no rows")
	rootCmd.AddCommand(cmd)
}

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables <assembly>",
		Short: "List metadata tables and row counts",
		Long: `The tables command lists the metadata tables of an assembly with
their IDs and row counts. Absent tables are skipped unless --all is set.

Example:
  cilctl tables app.dll
  cilctl tables app.dll --all --json`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(args)
		},
	}
}

func runTables(args []string) error {
	path := args[0]

	printVerbose("Opening assembly: %s\n", path)

	v, err := cil.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open assembly: %w", err)
	}
	defer v.Close()

	if jsonOut {
		var entries []map[string]interface{}
		for _, id := range cil.AllTableIDs() {
			if !tablesAll && !v.TablePresent(id) {
				continue
			}
			entries = append(entries, map[string]interface{}{
				"id":   fmt.Sprintf("0x%02X", uint8(id)),
				"name": id.String(),
				"rows": v.TableRowCount(id),
			})
		}
		return printJSON(entries)
	}

	printInfo("\nMetadata Tables:\n")
	for _, id := range cil.AllTableIDs() {
		if !tablesAll && !v.TablePresent(id) {
			continue
		}
		printInfo("  0x%02X %-24s %8d\n", uint8(id), id.String(), v.TableRowCount(id))
	}

	return nil
}
