package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/Velocidex/ntfsidx/ntfsidx"
)

var volumesCommand = app.Command("volumes", "List mounted NTFS volumes.")

func doVolumes() {
	volumes, err := ntfsidx.ListVolumes()
	kingpin.FatalIfError(err, "Can not enumerate volumes")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Letter", "Label", "Free", "Total"})
	defer table.Render()

	for _, v := range volumes {
		table.Append([]string{
			string(v.Letter),
			v.Label,
			fmt.Sprintf("%v", v.FreeBytes),
			fmt.Sprintf("%v", v.TotalBytes),
		})
	}
}

func init() {
	commandHandlers = append(commandHandlers, func(command string) bool {
		if command == "volumes" {
			doVolumes()
			return true
		}
		return false
	})
}
