// Package main is the entry point for the Vibebox sandbox server.
//
// The server runs listing code files for a code marketplace. It resolves a
// listing through the SQLite metadata store, reads the file from S3-compatible
// storage, and executes it in a per-request workspace with a hard timeout and
// an output cap. The same operations are exposed as MCP tools (stdio or
// streamable HTTP) and, when server.rest_port is set, as a REST API.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
