// Package httpapi is the REST binding of the sandbox boundary contract.
//
// Routes:
//
//	GET  /languages
//	GET  /listings/{listingID}/preview
//	GET  /listings/{listingID}/files/{fileID}
//	POST /listings/{listingID}/execute   {"fileId", "input", "timeoutMs"}
//
// The caller identity is read from the X-Caller-ID header, which an upstream
// authentication layer is trusted to set. Missing identity is a 401; lookup
// and visibility failures map to 404 and 403, blob store failures to 502.
// Execution results are always 200, including runs that failed.
package httpapi
