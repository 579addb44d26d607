// Package coordinator turns listing-scoped requests into sandbox executions.
//
// It resolves a listing and file through the metadata store, enforces the
// visibility rule (published listings are open to everyone, all others only
// to their creator), reads the file content from the blob store, and hands
// the code to the sandbox Executor. Executor results pass through unchanged;
// only lookup and authorization problems are returned as errors.
package coordinator
