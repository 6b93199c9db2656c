// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package logutil builds the structured loggers shared by the zsync and
// zsyncmake CLI binaries, following the zerolog console/JSON split used across
// Nithron-NithronOS's nos-agent and nosd.
package logutil

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console-writer logger when stderr is a terminal-friendly
// sink and JSON otherwise, at the given verbosity. quiet suppresses
// everything below warn level.
func New(verbose, quiet bool) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case quiet:
		level = zerolog.WarnLevel
	case verbose:
		level = zerolog.DebugLevel
	}

	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
