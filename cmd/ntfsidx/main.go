// Command ntfsidx is a thin command-line harness over the ntfsidx API:
// list volumes, scan one, watch it, dump largest files and directories.
package main

import (
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

type commandHandler func(command string) bool

var (
	app = kingpin.New("ntfsidx",
		"Index an NTFS volume's file tree via the live USN journal and MFT.")

	commandHandlers []commandHandler
)

func main() {
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate)
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	for _, handler := range commandHandlers {
		if handler(command) {
			break
		}
	}
}
