// Package storage implements the blob-storage backend contract consumed
// by a content-addressable file store.
//
// The content store maps content hashes to keys, performs its own caching
// and eviction, and calls into a Blobstore only when a blob must be
// persisted to, fetched from, or removed from durable storage. This
// package supplies two interchangeable backends:
//
//   - S3Store: an S3-compatible remote object store (MinIO client)
//   - LocalStore: a local-filesystem store, useful for development and tests
//
// # Contract
//
// A Blobstore is a thin, stateless relay. Keys are caller-supplied and
// passed through verbatim; all operations are scoped to the single
// container (bucket or base directory) fixed at construction time. The
// adapter holds no state about existing keys: every existence fact is
// queried live from the backing store.
//
// All methods are safe for unrestricted concurrent use. No ordering is
// guaranteed between independently issued operations on the same key;
// callers needing ordering must serialize externally. The adapter never
// retries: every failure surfaces immediately (see package resilient for
// an opt-in caller-side retry wrapper).
//
// # Move semantics
//
// Move is composed strictly as copy-then-delete and is not atomic. If the
// copy fails, the source is untouched. If the copy succeeds and the
// delete fails, the whole operation fails even though a duplicate now
// exists at the destination; nothing is rolled back. This is a permanent
// property of the design, since the remote store offers no transactions.
//
// # Usage
//
//	store, err := storage.NewS3StoreFromConfig(cfg.S3)
//	if err != nil {
//		log.Fatal(err)
//	}
//	res, err := store.Put(ctx, "a.txt", strings.NewReader("hello, world!"))
//	...
//	var buf bytes.Buffer
//	err = store.Get(ctx, "a.txt", &buf, storage.GetOptions{})
package storage

import (
	"context"
	"io"
	"time"
)

// Blobstore is the storage contract a pluggable backend must implement
// for the content store to treat it interchangeably with any other
// backend.
type Blobstore interface {
	// Put uploads the bytes read from src under key and returns upload
	// metadata once the store confirms the blob is durably committed.
	// Read errors on src and remote errors both fail the operation.
	Put(ctx context.Context, key string, src io.Reader) (PutResult, error)

	// Get streams the blob stored under key into dst. It returns once
	// every byte has been relayed. A missing key fails with ErrNotFound.
	Get(ctx context.Context, key string, dst io.Writer, opts GetOptions) error

	// Move relocates a blob from srcKey to dstKey as a sequential
	// copy-then-delete. It is not atomic: a failure may leave the source
	// present and a duplicate at dstKey.
	Move(ctx context.Context, srcKey, dstKey string) error

	// Copy duplicates the blob at srcKey to dstKey within the container,
	// leaving srcKey intact. The caller owns the destination object's
	// lifecycle afterward.
	Copy(ctx context.Context, srcKey, dstKey string, opts CopyOptions) (CopyResult, error)

	// Exists reports whether a blob is stored under key. A not-found
	// condition resolves to (false, nil); any other backend error is
	// returned so outages are never mistaken for absence.
	Exists(ctx context.Context, key string) (bool, error)

	// Unlink deletes the blob stored under key. Deleting a key that does
	// not exist succeeds; Unlink fails only on a genuine backend error.
	Unlink(ctx context.Context, key string) error

	// SetACL passes an opaque access-control policy (e.g. "public-read",
	// "private") through to the backend for the object at key.
	SetACL(ctx context.Context, key string, acl string) error

	// Location returns the fully qualified location of key within the
	// container. It is pure: no I/O, no existence check.
	Location(key string) string
}

// PutResult carries the upload metadata reported by the backend.
type PutResult struct {
	Location  string
	ETag      string
	Size      int64
	VersionID string
}

// CopyResult carries the metadata the backend reports for a server-side copy.
type CopyResult struct {
	Location     string
	ETag         string
	LastModified time.Time
}

// GetOptions controls how Get relays into the destination sink.
type GetOptions struct {
	// CloseDest closes dst after a successful relay when it implements
	// io.Closer. A close failure fails the Get.
	CloseDest bool
}

// CopyOptions holds optional settings for Copy.
type CopyOptions struct {
	// ACL, when non-empty, is applied to the newly created destination
	// object.
	ACL string
}

// relay copies src into dst and honors opts. Shared by the backends so
// sink semantics are identical everywhere.
func relay(dst io.Writer, src io.Reader, opts GetOptions) (int64, error) {
	n, err := io.Copy(dst, src)
	if err != nil {
		return n, err
	}
	if opts.CloseDest {
		if c, ok := dst.(io.Closer); ok {
			if err := c.Close(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}
