package main

import (
	"io"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// newLogger makes the root logger. By default only errors are logged;
// each -v lets through another level, and --quiet silences all.
func newLogger(w io.Writer, quiet bool, verbosity int) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, allowed(quiet, verbosity), level.SquelchNoLevel(quiet))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)
	return logger
}

func allowed(quiet bool, verbosity int) level.Option {
	switch {
	case quiet:
		return level.AllowNone()
	case verbosity <= 0:
		return level.AllowError()
	case verbosity == 1:
		return level.AllowWarn()
	case verbosity == 2:
		return level.AllowInfo()
	default:
		return level.AllowDebug()
	}
}
