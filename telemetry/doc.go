// Package telemetry installs the global OpenTelemetry tracer and meter
// providers. Spans and metrics are exported as JSON lines to stderr or to a
// file, never to stdout, which may carry the MCP stdio transport.
package telemetry
