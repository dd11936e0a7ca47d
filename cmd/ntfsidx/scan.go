package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/Velocidex/ntfsidx/forest"
	"github.com/Velocidex/ntfsidx/ntfsidx"
)

var (
	scanCommand = app.Command("scan", "Scan one volume and report its largest files and directories.")

	scanDriveArg = scanCommand.Arg(
		"letter", "The drive letter to scan, e.g. C",
	).Required().String()

	scanFullFlag = scanCommand.Flag(
		"full", "Read MFT sizes/timestamps (the full path), not just USN names.",
	).Default("true").Bool()

	scanHiddenFlag = scanCommand.Flag(
		"include-hidden", "Include hidden files.",
	).Bool()

	scanSystemFlag = scanCommand.Flag(
		"include-system", "Include system files.",
	).Bool()

	scanParallelismFlag = scanCommand.Flag(
		"parallelism", "Worker pool size for the full path (0 = hardware thread count).",
	).Default("0").Int()

	scanTopFlag = scanCommand.Flag(
		"top", "How many largest files/directories to print.",
	).Default("10").Int()
)

func doScan() {
	cfg := ntfsidx.Config{
		DriveLetter:   []byte(*scanDriveArg)[0],
		ReadMFTSizes:  *scanFullFlag,
		IncludeHidden: *scanHiddenFlag,
		IncludeSystem: *scanSystemFlag,
		Parallelism:   *scanParallelismFlag,
	}

	started := time.Now()
	result, err := ntfsidx.Scan(context.Background(), cfg)
	kingpin.FatalIfError(err, "Scan failed")

	stats := result.Forest.Stats()
	fmt.Printf("Scanned %v in %v\n", string(cfg.DriveLetter), time.Since(started))
	fmt.Printf("%v\n", stats)

	printEntries(result.Forest, result.Forest.FindLargestDirs(*scanTopFlag), "Largest directories")
	printEntries(result.Forest, result.Forest.FindLargestFiles(*scanTopFlag), "Largest files")
}

func printEntries(tree *forest.Forest, entries []*forest.Entry, title string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"FRN", "Path", "LogicalSize", "Modified"})
	table.SetCaption(true, title)
	defer table.Render()

	for _, e := range entries {
		table.Append([]string{
			e.FRN.String(),
			tree.PathOf(e.FRN),
			fmt.Sprintf("%v", e.LogicalSize),
			fmt.Sprintf("%v", e.ModifiedTime().UTC()),
		})
	}
}

func init() {
	commandHandlers = append(commandHandlers, func(command string) bool {
		if command == "scan" {
			doScan()
			return true
		}
		return false
	})
}
