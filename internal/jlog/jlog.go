// Package jlog provides the decoder's structured-logging seam.
//
// Mirrors the pattern ausocean-av's revid package uses for its logger field:
// a package-level logger that defaults to a no-op so the core never forces
// a logging dependency on a caller that hasn't configured one, but upgrades
// to a real *zap.SugaredLogger when the host process wants decode tracing.
package jlog

import "go.uber.org/zap"

// logger is the process-wide sink for decoder trace messages. Nil-safe:
// all helpers below check for nil before calling through.
var logger *zap.SugaredLogger

// Set installs l as the decoder's trace logger. Passing nil restores the
// no-op default.
func Set(l *zap.SugaredLogger) { logger = l }

// Debugf emits a Debug-level trace message if a logger is installed.
func Debugf(format string, args ...any) {
	if logger != nil {
		logger.Debugf(format, args...)
	}
}

// Warnf emits a Warn-level trace message if a logger is installed.
func Warnf(format string, args ...any) {
	if logger != nil {
		logger.Warnf(format, args...)
	}
}
