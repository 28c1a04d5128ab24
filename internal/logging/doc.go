// Package logging builds the slog loggers used throughout loom and defines
// the standardized attribute keys components attach to their records.
//
// Two output formats are supported: a human-oriented console format with
// terminal-aware coloring, and line-delimited JSON for ingestion. Both can
// write to stdout/stderr and to a log file under the configured log
// directory simultaneously.
package logging
