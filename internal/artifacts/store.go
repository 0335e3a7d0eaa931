// Package artifacts persists triage drafts as append-only JSON arrays.
//
// Each store is one file holding a JSON array. Appends are serialized per path
// inside the process and across processes through an advisory lock file, and
// the array is rewritten atomically so readers never see a torn file. Existing
// elements are carried over byte for byte; only the new record is encoded.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"qatriage/internal/logging"

	"github.com/gofrs/flock"
)

// ErrCorruptStore is returned by Load when the store file is not a JSON array.
var ErrCorruptStore = errors.New("artifact store is corrupt")

// DefaultLockTimeout bounds how long an append waits for the store lock.
const DefaultLockTimeout = 30 * time.Second

const lockRetryDelay = 20 * time.Millisecond

// PersistenceError wraps an I/O or decode failure with the operation and path.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("artifacts: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// pathLocks serializes appends to the same file within this process.
var pathLocks sync.Map // map[string]*sync.Mutex

func lockFor(path string) *sync.Mutex {
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Store is an append-only JSON array of T on disk.
type Store[T any] struct {
	path        string
	lockTimeout time.Duration
	now         func() time.Time
}

// Option configures a Store.
type Option func(*options)

type options struct {
	lockTimeout time.Duration
	now         func() time.Time
}

// WithLockTimeout sets how long Append waits for the cross-process lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithClock overrides the clock used to name quarantined files.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewStore returns a store backed by the JSON array file at path. Nothing is
// created until the first Append.
func NewStore[T any](path string, opts ...Option) *Store[T] {
	o := options{lockTimeout: DefaultLockTimeout, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Store[T]{path: path, lockTimeout: o.lockTimeout, now: o.now}
}

// Path returns the absolute store path.
func (s *Store[T]) Path() string { return s.path }

// Append adds rec to the end of the array. A corrupt file is moved aside and
// the store restarts from an empty array.
func (s *Store[T]) Append(ctx context.Context, rec T) error {
	timer := logging.StartTimer(logging.CategoryStore, "Append "+filepath.Base(s.path))
	defer timer.StopWithThreshold(time.Second)

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return &PersistenceError{Op: "mkdir", Path: filepath.Dir(s.path), Err: err}
	}

	mu := lockFor(s.path)
	mu.Lock()
	defer mu.Unlock()

	unlock, err := s.lockFile(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := s.readRaw()
	if errors.Is(err, ErrCorruptStore) {
		quarantined := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().UnixNano())
		logging.StoreWarn("store %s is corrupt (%v), moving it to %s and starting fresh", s.path, err, quarantined)
		if rerr := os.Rename(s.path, quarantined); rerr != nil {
			return &PersistenceError{Op: "quarantine", Path: s.path, Err: rerr}
		}
		existing, err = nil, nil
	}
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(rec, "  ", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Path: s.path, Err: err}
	}
	if err := s.write(append(existing, encoded)); err != nil {
		return err
	}
	logging.StoreDebug("appended record to %s (now %d)", s.path, len(existing)+1)
	return nil
}

// Load returns every record in order. A missing or empty file is an empty store.
func (s *Store[T]) Load() ([]T, error) {
	records, err := s.read()
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

func (s *Store[T]) lockFile(ctx context.Context) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	fl := flock.New(s.path + ".lock")
	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return nil, &PersistenceError{Op: "lock", Path: fl.Path(), Err: err}
	}
	if !locked {
		return nil, &PersistenceError{Op: "lock", Path: fl.Path(), Err: fmt.Errorf("not acquired within %v", s.lockTimeout)}
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			logging.StoreError("failed to release %s: %v", fl.Path(), err)
		}
	}, nil
}

func (s *Store[T]) read() ([]T, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Path: s.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &PersistenceError{Op: "decode", Path: s.path, Err: fmt.Errorf("%w: %v", ErrCorruptStore, err)}
	}
	return records, nil
}

// readRaw returns the stored elements exactly as they appear on disk.
func (s *Store[T]) readRaw() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Path: s.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, &PersistenceError{Op: "decode", Path: s.path, Err: fmt.Errorf("%w: %v", ErrCorruptStore, err)}
	}
	return elems, nil
}

// write replaces the store file through a temp file in the same directory.
// Elements are written verbatim, one per array slot.
func (s *Store[T]) write(elems []json.RawMessage) error {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, e := range elems {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		buf.Write(e)
	}
	buf.WriteString("\n]\n")
	data := buf.Bytes()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &PersistenceError{Op: "write", Path: s.path, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return &PersistenceError{Op: "write", Path: tmp.Name(), Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &PersistenceError{Op: "sync", Path: tmp.Name(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PersistenceError{Op: "close", Path: tmp.Name(), Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return &PersistenceError{Op: "chmod", Path: tmp.Name(), Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return &PersistenceError{Op: "rename", Path: s.path, Err: err}
	}
	committed = true
	return nil
}
