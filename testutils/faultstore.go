package testutils

import (
	"context"
	"io"
	"sync"

	"github.com/casfs/depot/storage"
)

// FaultStore decorates a Blobstore and fails configured (operation, key)
// pairs with injected errors. Everything else passes through to the
// wrapped store.
//
// Move is composed here as copy-then-delete over the decorated
// operations, so a fault injected on the delete step reproduces the
// documented partial-failure outcome of a real move: source still
// present, duplicate at the destination.
type FaultStore struct {
	Inner storage.Blobstore

	mu     sync.RWMutex
	faults map[faultKey]error
}

type faultKey struct {
	op  storage.Op
	key string
}

// NewFaultStore wraps inner with no faults configured.
func NewFaultStore(inner storage.Blobstore) *FaultStore {
	return &FaultStore{
		Inner:  inner,
		faults: make(map[faultKey]error),
	}
}

// SetError injects err for the given operation and key.
func (f *FaultStore) SetError(op storage.Op, key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[faultKey{op, key}] = err
}

// ClearError removes an injected error.
func (f *FaultStore) ClearError(op storage.Op, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.faults, faultKey{op, key})
}

func (f *FaultStore) check(op storage.Op, key string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err, ok := f.faults[faultKey{op, key}]; ok {
		return err
	}
	return nil
}

func (f *FaultStore) Put(ctx context.Context, key string, src io.Reader) (storage.PutResult, error) {
	if err := f.check(storage.OpPut, key); err != nil {
		return storage.PutResult{}, &storage.Error{Op: storage.OpPut, Key: key, Err: err}
	}
	return f.Inner.Put(ctx, key, src)
}

func (f *FaultStore) Get(ctx context.Context, key string, dst io.Writer, opts storage.GetOptions) error {
	if err := f.check(storage.OpGet, key); err != nil {
		return &storage.Error{Op: storage.OpGet, Key: key, Err: err}
	}
	return f.Inner.Get(ctx, key, dst, opts)
}

func (f *FaultStore) Move(ctx context.Context, srcKey, dstKey string) error {
	if _, err := f.Copy(ctx, srcKey, dstKey, storage.CopyOptions{}); err != nil {
		return &storage.Error{Op: storage.OpMove, Key: srcKey, Err: err}
	}
	if err := f.Unlink(ctx, srcKey); err != nil {
		return &storage.Error{Op: storage.OpMove, Key: srcKey, Err: err}
	}
	return nil
}

func (f *FaultStore) Copy(ctx context.Context, srcKey, dstKey string, opts storage.CopyOptions) (storage.CopyResult, error) {
	if err := f.check(storage.OpCopy, srcKey); err != nil {
		return storage.CopyResult{}, &storage.Error{Op: storage.OpCopy, Key: srcKey, Err: err}
	}
	return f.Inner.Copy(ctx, srcKey, dstKey, opts)
}

func (f *FaultStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := f.check(storage.OpExists, key); err != nil {
		return false, &storage.Error{Op: storage.OpExists, Key: key, Err: err}
	}
	return f.Inner.Exists(ctx, key)
}

func (f *FaultStore) Unlink(ctx context.Context, key string) error {
	if err := f.check(storage.OpDelete, key); err != nil {
		return &storage.Error{Op: storage.OpDelete, Key: key, Err: err}
	}
	return f.Inner.Unlink(ctx, key)
}

func (f *FaultStore) SetACL(ctx context.Context, key string, acl string) error {
	if err := f.check(storage.OpSetACL, key); err != nil {
		return &storage.Error{Op: storage.OpSetACL, Key: key, Err: err}
	}
	return f.Inner.SetACL(ctx, key, acl)
}

func (f *FaultStore) Location(key string) string {
	return f.Inner.Location(key)
}
