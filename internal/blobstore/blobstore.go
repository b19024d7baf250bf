// Package blobstore abstracts the external binary storage: named uploads
// under a path resolving to a public URL. Single-slot assets (one avatar
// per actor) are overwritten by delete-then-upload.
package blobstore

import (
	"context"
	"io"
)

type Store interface {
	// Save writes the blob under path and returns its publicly
	// resolvable URL.
	Save(ctx context.Context, path string, data io.Reader) (string, error)
	// Delete removes the blob; deleting a missing blob is not an error.
	Delete(ctx context.Context, path string) error
}
