package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmikstacki/cilkit/cil"
)

var stringsMax int

func init() {
	cmd := newStringsCmd()
	cmd.Flags().IntVar(&stringsMax, "max", 64, "Maximum entries to print (0 = all)")
	rootCmd.AddCommand(cmd)
}

func newStringsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strings <assembly>",
		Short: "Dump the #Strings heap",
		Long: `The strings command walks the #Strings heap and prints each entry
with its byte offset. Offsets are what metadata rows store in their
name and namespace columns.

Example:
  cilctl strings app.dll
  cilctl strings app.dll --max 10 --json`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrings(args)
		},
	}
}

func runStrings(args []string) error {
	path := args[0]

	printVerbose("Opening assembly: %s\n", path)

	v, err := cil.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open assembly: %w", err)
	}
	defer v.Close()

	type entry struct {
		Offset uint32 `json:"offset"`
		Value  string `json:"value"`
	}

	// Offset 0 is the shared empty string; real entries start at 1.
	// Zero bytes between entries are alignment padding.
	raw := v.StringsBytes()
	var entries []entry
	off := uint32(1)
	for int(off) < len(raw) {
		if stringsMax > 0 && len(entries) >= stringsMax {
			break
		}
		rest := raw[off:]
		n := bytes.IndexByte(rest, 0)
		if n < 0 {
			n = len(rest)
		}
		if n == 0 {
			off++
			continue
		}
		entries = append(entries, entry{Offset: off, Value: string(rest[:n])})
		off += uint32(n) + 1
	}

	if jsonOut {
		return printJSON(entries)
	}

	printInfo("\n#Strings heap (%d bytes):\n", v.StringsSize())
	for _, e := range entries {
		printInfo("  %6d  %s\n", e.Offset, e.Value)
	}

	return nil
}
