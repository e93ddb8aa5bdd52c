package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmikstacki/cilkit/cil"
)

func init() {
	rootCmd.AddCommand(newStreamsCmd())
}

func newStreamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streams <assembly>",
		Short: "List metadata streams",
		Long: `The streams command lists the stream headers of the metadata root in
file order with their offsets and sizes.

Example:
  cilctl streams app.dll
  cilctl streams app.dll --json`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStreams(args)
		},
	}
}

func runStreams(args []string) error {
	path := args[0]

	printVerbose("Opening assembly: %s\n", path)

	v, err := cil.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open assembly: %w", err)
	}
	defer v.Close()

	streams := v.Streams()

	if jsonOut {
		entries := make([]map[string]interface{}, 0, len(streams))
		for _, s := range streams {
			entries = append(entries, map[string]interface{}{
				"name":   s.Name,
				"offset": s.Offset,
				"size":   s.Size,
			})
		}
		return printJSON(entries)
	}

	printInfo("\nMetadata Streams:\n")
	for _, s := range streams {
		printInfo("  %-12s offset 0x%08X  %8d bytes\n", s.Name, s.Offset, s.Size)
	}

	return nil
}
