package ntfs

import (
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// Low-level trace logging, gated on an environment variable rather than
// going through logrus: this is per-byte, per-attribute tracing that
// would drown out the structured log lines the ambient components
// (volume, journal, scan) emit for operational events.
var ntfsDebug *bool

func Debug(arg interface{}) {
	spew.Dump(arg)
}

func DebugPrint(fmtStr string, v ...interface{}) {
	if ntfsDebug == nil {
		value := false
		for _, x := range os.Environ() {
			if strings.HasPrefix(x, "NTFS_DEBUG=") {
				value = true
				break
			}
		}
		ntfsDebug = &value
	}

	if *ntfsDebug {
		fmt.Printf(fmtStr, v...)
	}
}
