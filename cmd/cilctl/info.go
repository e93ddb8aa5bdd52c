package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pmikstacki/cilkit/cil"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <assembly>",
		Short: "Summarize the PE container and CLI metadata",
		Long: `The info command opens a .NET assembly and reports container facts:
PE format, sections, CLI header location, metadata version, stream
sizes, and table totals.

Example:
  cilctl info app.dll
  cilctl info app.dll --json`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
}

func runInfo(args []string) error {
	path := args[0]

	printVerbose("Opening assembly: %s\n", path)

	v, err := cil.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open assembly: %w", err)
	}
	defer v.Close()

	pe := v.PE()
	peFormat := "PE32"
	if pe.PE32Plus {
		peFormat = "PE32+"
	}

	presentTables := 0
	totalRows := uint32(0)
	for _, id := range cil.AllTableIDs() {
		if v.TablePresent(id) {
			presentTables++
			totalRows += v.TableRowCount(id)
		}
	}

	tablesMajor, tablesMinor := v.TablesVersion()

	if jsonOut {
		return printJSON(map[string]interface{}{
			"file":            path,
			"format":          peFormat,
			"sections":        pe.NumberOfSections,
			"imageBase":       pe.ImageBase,
			"sizeOfImage":     pe.SizeOfImage,
			"entryPoint":      pe.EntryPoint,
			"cliHeaderRVA":    pe.CLIHeaderRVA,
			"metadataRVA":     pe.MetadataRVA,
			"metadataSize":    pe.MetadataSize,
			"cor20Flags":      pe.Cor20Flags,
			"metadataVersion": v.Version(),
			"tablesVersion":   fmt.Sprintf("%d.%d", tablesMajor, tablesMinor),
			"tables":          presentTables,
			"rows":            totalRows,
			"stringsSize":     v.StringsSize(),
			"blobSize":        v.BlobSize(),
			"guidCount":       v.GUIDCount(),
			"userStringsSize": v.UserStringsSize(),
		})
	}

	printInfo("\nAssembly Information:\n")
	printInfo("  File: %s\n", path)
	if stat, err := os.Stat(path); err == nil {
		printInfo("  Size: %d bytes\n", stat.Size())
	}
	printInfo("  Format: %s\n", peFormat)
	printInfo("  Image base: 0x%X\n", pe.ImageBase)
	printInfo("  Entry point: 0x%08X\n", pe.EntryPoint)
	printInfo("  Sections: %d\n", pe.NumberOfSections)
	for _, s := range pe.Sections {
		printInfo("    %-8s RVA 0x%08X  raw 0x%08X (%d bytes)\n",
			s.Name, s.VirtualAddress, s.PointerToRawData, s.SizeOfRawData)
	}

	printInfo("\nCLI Metadata:\n")
	printInfo("  Header RVA: 0x%08X\n", pe.CLIHeaderRVA)
	printInfo("  Metadata RVA: 0x%08X (%d bytes)\n", pe.MetadataRVA, pe.MetadataSize)
	printInfo("  Cor20 flags: 0x%08X\n", pe.Cor20Flags)
	printInfo("  Version: %s\n", v.Version())
	printInfo("  Tables version: %d.%d\n", tablesMajor, tablesMinor)
	printInfo("  Tables present: %d (%d rows)\n", presentTables, totalRows)
	printInfo("  #Strings: %d bytes\n", v.StringsSize())
	printInfo("  #Blob: %d bytes\n", v.BlobSize())
	printInfo("  #GUID: %d slots\n", v.GUIDCount())
	printInfo("  #US: %d bytes\n", v.UserStringsSize())

	return nil
}
