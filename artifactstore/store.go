// Package artifactstore resolves download URLs for build artifacts. The
// pipeline never writes artifacts; the builder uploads them out of band and
// reports the object key back with the build result.
package artifactstore

import "context"

// Store is the read-only contract the download resolver needs.
type Store interface {
	// DownloadURL returns a client-usable URL for the artifact at objectKey.
	DownloadURL(ctx context.Context, objectKey string) (string, error)
}
