package upload

import "context"

// Uploader pushes a snapshot artifact to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// UploadSnapshot uploads the snapshot file at localPath. The file
	// basename is used as the object name under the configured prefix.
	UploadSnapshot(ctx context.Context, localPath string) error
}
