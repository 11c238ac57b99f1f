// Package applog builds the *log.Logger instances used at the edges of
// the core (reference Store adapters, producers). The core's pure
// read/mutate algorithms never log.
//
// Construction is the plain log.New(os.Stderr, "[component] ",
// log.LstdFlags) idiom, with an optional lumberjack-backed file sink
// for components that run unattended long enough to need rotation (a
// filestore watch daemon, a producer making many LLM calls).
package applog

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingConfig controls lumberjack's rotation policy. Zero values fall
// back to lumberjack's own defaults (100MB, no age limit, no backup
// limit, no compression).
type RotatingConfig struct {
	Path       string // empty means log to stderr, no rotation
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New builds a *log.Logger with the given prefix. When cfg.Path is
// empty, it logs to os.Stderr. When cfg.Path is set, it writes through
// a lumberjack.Logger so the file rotates instead of growing without
// bound.
func New(prefix string, cfg RotatingConfig) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.Path != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}
	return log.New(w, prefix, log.LstdFlags)
}
