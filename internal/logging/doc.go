// Package logging provides structured logging for the OpenMotics client and CLI.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used by the gateway client, the event stream and the omctl tool.
//
// # Log Levels
//
//   - Debug: request/response traces, WebSocket frames, retry decisions
//   - Info: event stream connection state changes
//   - Warn: retries, reconnects, dropped events
//   - Error: failures surfaced to the caller of a background task
//
// # Silent by Default
//
// A library must not print unless asked to. Until Initialize is called with a
// level (or OPENMOTICS_LOG_LEVEL is set), GetLogger returns a no-op logger.
// Applications that already own a zap logger can install it with SetLogger.
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Credentials
//
// Tokens and passwords are never logged. Headers pass through RedactHeaders
// before they are attached to a log entry.
package logging
