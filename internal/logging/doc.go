// Package logging provides logging utilities for desklab.
//
// Two kinds of output are produced: structured logs (slog) for operators,
// controlled by --verbose and --json, and user output for the CLI, prefixed
// with a status indicator.
//
//	logging.Debug("allocating port", "hint", hint)
//	logging.Component("relay").Info("listening", "addr", addr)
//
//	logging.UserSuccess("Session %s launched on port %d", sid, port)
//	logging.UserWarning("Container %s already gone", name)
//
// UserInfo and UserSuccess write to Stdout; UserWarning and UserError to
// Stderr.
package logging
