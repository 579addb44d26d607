// Package blobstore reads listing file contents from S3-compatible object
// storage. Objects are fetched through short-lived presigned GET URLs so the
// read path matches what a browser or another service would use.
package blobstore
