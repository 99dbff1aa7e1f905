// Package pkg provides shared utilities for the uacbridge audio core.
//
// This package contains common functionality used by the streaming core,
// its hardware abstraction layers and the example executables:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors for streaming and clock configuration failures
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute so
// output from the playback, capture and feedback paths can be filtered:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentClock, "sample rate changed", "rate", 44100)
//
// Notification handlers run once per packet or once per frame. They should
// guard debug output with [Enabled] so that no attributes are built when the
// level is filtered out.
//
// # Errors
//
// Failures are reported as sentinel values and wrapped with context:
//
//	if errors.Is(err, pkg.ErrUnsupportedRate) {
//	    // Keep streaming at the current rate
//	}
package pkg
