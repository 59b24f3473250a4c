// Package logging configures log/slog for AmanLex: JSON records written
// to a size-rotated file under ~/.amanlex/logs, optionally copied to
// stderr. In MCP stdio mode stderr is never used.
package logging
