// Package logging provides the per-subsystem structured loggers used
// throughout the core, following moby's log.G(ctx)-style package-level
// entry convention but without context-carried fields: the core runs a
// single store on a single goroutine group per call, so
// there is no per-request logger to thread.
package logging

import "github.com/sirupsen/logrus"

// Compile logs encoder/ABI-lowerer diagnostics.
var Compile = logrus.WithField("subsystem", "compile")

// Wasi logs the syscall dispatcher's host-error and capability-denial
// paths at debug level,.
var Wasi = logrus.WithField("subsystem", "wasi")

// Native logs the native-call bridge's symbol-resolution and call-site
// setup.
var Native = logrus.WithField("subsystem", "native")

// Component logs the component inliner's fused-adapter elision decisions.
var Component = logrus.WithField("subsystem", "component")

// SetLevel adjusts the shared logrus standard logger's level; each
// package-level Entry above derives from it, so this affects all four at
// once. Embedders choosing per-subsystem levels should call
// logrus.StandardLogger().SetLevel from their own init instead.
func SetLevel(level logrus.Level) {
	logrus.SetLevel(level)
}
