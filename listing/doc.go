// Package listing holds the listing and file metadata the sandbox needs to
// resolve an execution request, together with a SQLite-backed store for it.
//
// The store is read by the coordinator through FindListingWithFiles and can
// be populated from a YAML seed document at startup.
package listing
