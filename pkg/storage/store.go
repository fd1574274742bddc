// Package storage defines the object store contract the pipeline
// consumes. The production implementation is an S3-compatible client
// owned by deployment infrastructure; the pipeline only depends on
// this interface.
package storage

import (
	"context"
	"fmt"
	"path"
)

// Metadata travels with an object.
type Metadata map[string]string

// ObjectStore is the durable byte store for uploads, artifacts and
// stylesheets. Writes here are not covered by any database
// transaction; callers must tolerate storage writes without a matching
// DB commit as an orphan case.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, Metadata, error)
	PutObject(ctx context.Context, key string, data []byte, metadata Metadata) error
}

// SubmissionInputKey builds the deterministic storage key for a
// submission's uploaded archive.
func SubmissionInputKey(prefix string, submissionID uint, fileName string) string {
	return path.Join(prefix, "submissions", fmt.Sprintf("%d", submissionID), path.Base(fileName))
}

// ArtifactKey builds the deterministic storage key for an artifact file.
func ArtifactKey(prefix string, submissionID uint, artifactUUID, fileName string) string {
	return path.Join(prefix, "artifacts", fmt.Sprintf("%d", submissionID), artifactUUID, path.Base(fileName))
}

// StylesheetKey builds the storage key for a versioned EML stylesheet.
func StylesheetKey(prefix, name, version string) string {
	return path.Join(prefix, name, version+".json")
}
