package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/casfs/depot/logger"
)

// LocalStore is a Blobstore backed by a directory on the local
// filesystem. It implements the same contract as S3Store, including the
// non-atomic copy-then-delete Move, so the content store can swap
// backends without behavioral surprises. Intended for development
// environments and tests.
type LocalStore struct {
	base string
	log  *slog.Logger
}

// NewLocalStore creates the base directory if needed and returns a store
// rooted there.
func NewLocalStore(base string, log *slog.Logger) (*LocalStore, error) {
	if base == "" {
		return nil, fmt.Errorf("storage: base directory is required")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory %s: %w", base, err)
	}
	if log == nil {
		log = logger.Get()
	}
	return &LocalStore{base: base, log: log}, nil
}

// Put writes src to a temporary file and renames it into place, so a
// concurrent Get never observes a partially written blob.
func (l *LocalStore) Put(ctx context.Context, key string, src io.Reader) (PutResult, error) {
	path := l.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return PutResult{}, &Error{Op: OpPut, Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return PutResult{}, &Error{Op: OpPut, Key: key, Err: err}
	}

	n, err := io.Copy(tmp, src)
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return PutResult{}, &Error{Op: OpPut, Key: key, Err: err}
	}

	l.log.Debug("object stored", "base", l.base, "key", key, "size", n)
	return PutResult{Location: l.Location(key), Size: n}, nil
}

// Get streams the blob at key into dst.
func (l *LocalStore) Get(ctx context.Context, key string, dst io.Writer, opts GetOptions) error {
	f, err := os.Open(l.keyPath(key))
	if err != nil {
		return l.wrap(OpGet, key, err)
	}
	defer f.Close()

	if _, err := relay(dst, f, opts); err != nil {
		return &Error{Op: OpGet, Key: key, Err: err}
	}
	return nil
}

// Move relocates a blob via copy-then-delete. Deliberately not a rename:
// the two-step sequence and its partial-failure outcome are part of the
// contract shared with the remote backend.
func (l *LocalStore) Move(ctx context.Context, srcKey, dstKey string) error {
	if _, err := l.Copy(ctx, srcKey, dstKey, CopyOptions{}); err != nil {
		return &Error{Op: OpMove, Key: srcKey, Err: err}
	}
	if err := l.Unlink(ctx, srcKey); err != nil {
		return &Error{Op: OpMove, Key: srcKey, Err: err}
	}
	return nil
}

// Copy duplicates the blob at srcKey to dstKey, leaving srcKey intact.
func (l *LocalStore) Copy(ctx context.Context, srcKey, dstKey string, opts CopyOptions) (CopyResult, error) {
	src, err := os.Open(l.keyPath(srcKey))
	if err != nil {
		return CopyResult{}, l.wrap(OpCopy, srcKey, err)
	}
	defer src.Close()

	res, err := l.Put(ctx, dstKey, src)
	if err != nil {
		return CopyResult{}, &Error{Op: OpCopy, Key: srcKey, Err: err}
	}
	if opts.ACL != "" {
		if err := os.Chmod(l.keyPath(dstKey), aclMode(opts.ACL)); err != nil {
			return CopyResult{}, &Error{Op: OpCopy, Key: srcKey, Err: err}
		}
	}

	info, err := os.Stat(l.keyPath(dstKey))
	if err != nil {
		return CopyResult{}, &Error{Op: OpCopy, Key: srcKey, Err: err}
	}
	return CopyResult{Location: res.Location, LastModified: info.ModTime()}, nil
}

// Exists reports whether a blob is stored under key. Only a missing file
// maps to false; any other stat failure is surfaced.
func (l *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(l.keyPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &Error{Op: OpExists, Key: key, Err: err}
}

// Unlink deletes the blob at key. Removing a key that does not exist
// succeeds, matching the remote store's idempotent delete.
func (l *LocalStore) Unlink(ctx context.Context, key string) error {
	err := os.Remove(l.keyPath(key))
	if err != nil && !os.IsNotExist(err) {
		return &Error{Op: OpDelete, Key: key, Err: err}
	}
	return nil
}

// SetACL maps the opaque policy onto file permissions: "private" means
// owner-only, anything else is world-readable.
func (l *LocalStore) SetACL(ctx context.Context, key string, acl string) error {
	if err := os.Chmod(l.keyPath(key), aclMode(acl)); err != nil {
		return l.wrap(OpSetACL, key, err)
	}
	return nil
}

// Location returns "<base>/<key>" without touching the filesystem.
func (l *LocalStore) Location(key string) string {
	return l.base + "/" + key
}

func (l *LocalStore) wrap(op Op, key string, err error) error {
	if os.IsNotExist(err) {
		err = ErrNotFound
	}
	return &Error{Op: op, Key: key, Err: err}
}

func (l *LocalStore) keyPath(key string) string {
	return filepath.Join(l.base, filepath.FromSlash(key))
}

func aclMode(acl string) fs.FileMode {
	if acl == "private" {
		return 0o600
	}
	return 0o644
}
