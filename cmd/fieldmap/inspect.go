package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/1F47E/fieldmap/pkg/export"
	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/rows"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <snapshot>",
	Short: "Print the rows, groups and anomalies of a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var (
	// ANSI color codes
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func init() {
	// Disable colors if not in a terminal
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		colorReset = ""
		colorRed = ""
		colorGreen = ""
		colorYellow = ""
		colorCyan = ""
		colorBold = ""
	}
}

func printTitle(title string) {
	fmt.Printf("\n%s%s%s\n", colorBold, title, colorReset)
	fmt.Println(strings.Repeat("=", 60))
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := export.LoadSnapshot(args[0])
	if err != nil {
		return err
	}

	printTitle(fmt.Sprintf("Run %s", f.RunID))
	fmt.Printf("Items: %d registered, %d unique\n", f.Registry.Len(), len(f.Canonical))

	printTitle("Rows")
	for _, row := range rows.SortByNumber(f.Rows) {
		fmt.Printf("%sRow %d%s %s, %.2f m, %d segments\n",
			colorCyan, row.Number(), colorReset, row.Direction, row.Length(), len(row.Segments))
		for _, s := range row.Segments {
			fmt.Printf("  %s -> %s  %.2f m  %d items  group %d\n",
				s.StartCode.Name, s.EndCode.Name, s.Length(), len(s.Items), s.Group)
		}
	}

	printTitle("Plant groups")
	for _, g := range f.Groups {
		color := colorGreen
		if len(g.Flags) > 0 {
			color = colorYellow
		}
		if g.HasFlag(models.FlagTruncated) {
			color = colorRed
		}
		fmt.Printf("%s%-12s%s segments %d  length %6.2f m  expected %6.2f m (%d plants)  %v\n",
			color, g.Name(), colorReset, len(g.Segments), g.Length(), g.ExpectedLength, g.ExpectedCount, g.Flags)
	}

	printTitle("Anomalies")
	if len(f.Report.Anomalies) == 0 {
		fmt.Printf("%snone%s\n", colorGreen, colorReset)
	}
	for _, a := range f.Report.Anomalies {
		fmt.Printf("%s%s%s %s\n", colorYellow, a.Kind, colorReset, a.Message)
	}

	printTitle("Inventory")
	inv := f.Inventory
	fmt.Printf("Missing groups: %v\n", inv.MissingGroups)
	fmt.Printf("Extra groups:   %v\n", inv.ExtraGroups)
	fmt.Printf("Missing rows:   %v\n", inv.MissingRows)
	fmt.Printf("Unpaired rows:  %v\n", inv.UnpairedRows)
	return nil
}
