package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/Velocidex/ntfsidx/ntfsidx"
)

var (
	watchCommand = app.Command("watch", "Scan a volume once, then follow its USN journal and report live changes.")

	watchDriveArg = watchCommand.Arg(
		"letter", "The drive letter to watch, e.g. C",
	).Required().String()

	watchIntervalFlag = watchCommand.Flag(
		"interval", "Poll interval between journal reads.",
	).Default("2s").Duration()
)

func doWatch() {
	cfg := ntfsidx.Config{
		DriveLetter:  []byte(*watchDriveArg)[0],
		ReadMFTSizes: true,
	}

	result, err := ntfsidx.Scan(context.Background(), cfg)
	kingpin.FatalIfError(err, "Initial scan failed")

	follower, err := ntfsidx.ResumeFollower(cfg, result.Forest, result.Cursor)
	kingpin.FatalIfError(err, "Can not start follower")
	defer follower.Stop()

	fmt.Printf("Watching %v, polling every %v. Ctrl-C to stop.\n", string(cfg.DriveLetter), *watchIntervalFlag)

	for {
		applied, err := follower.Poll()
		if err != nil {
			logrus.WithError(err).Error("watch: journal follower failed, a re-scan is required")
			return
		}
		if applied > 0 {
			logrus.WithField("applied", applied).Info("watch: applied journal events")
		}
		time.Sleep(*watchIntervalFlag)
	}
}

func init() {
	commandHandlers = append(commandHandlers, func(command string) bool {
		if command == "watch" {
			doWatch()
			return true
		}
		return false
	})
}
