// Package docsource resolves the configured specification document to a
// local file. The native engine opens the document by path, so remote
// sources (s3://bucket/key, AWS S3 or any S3-compatible store) are
// downloaded once at startup.
package docsource
