package logging

import (
	"io"
	"os"

	glog "github.com/goliatone/go-logger/glog"
)

const errorLevel = "error"

// New returns a console key/value logger writing to w at the given level.
func New(w io.Writer, level string) glog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return glog.NewLogger(
		glog.WithWriter(w),
		glog.WithLevel(level),
		glog.WithLoggerTypeConsole(),
	)
}

// Resolve returns a structured logger when enabled, otherwise a silent one.
func Resolve(enabled bool, w io.Writer, level string) glog.Logger {
	if !enabled {
		return glog.Nop()
	}
	return New(w, level)
}

// Daemon returns the relay's logger. Errors are always written; the
// configured level applies only when verbose logging is enabled.
func Daemon(verbose bool, w io.Writer, level string) glog.Logger {
	if !verbose {
		return New(w, errorLevel)
	}
	return New(w, level)
}
