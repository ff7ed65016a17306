// Package memstore keeps blobs in process memory. It backs the "memory"
// storage mode used for local development and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/sifan077/shortng/internal/app/repository"
)

// Object is a stored blob together with its metadata.
type Object struct {
	Data         []byte
	ContentType  string
	CacheControl string
	Created      time.Time
}

// Store is a concurrency-safe in-memory repository.BlobStore.
type Store struct {
	mu      sync.RWMutex
	objects map[string]Object
	now     func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp creation times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		objects: make(map[string]Object),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (s *Store) Exists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[objectKey(bucket, key)]
	return ok, nil
}

func (s *Store) CreatedTime(_ context.Context, bucket, key string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return time.Time{}, repository.ErrBlobNotFound
	}
	return obj.Created, nil
}

func (s *Store) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, repository.ErrBlobNotFound
	}
	out := make([]byte, len(obj.Data))
	copy(out, obj.Data)
	return out, nil
}

// Put replaces the object; like GCS generations, an overwrite resets the creation time.
func (s *Store) Put(_ context.Context, bucket, key string, data []byte, opts repository.PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := objectKey(bucket, key)
	if _, ok := s.objects[k]; ok && opts.IfAbsent {
		return repository.ErrPreconditionFailed
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[k] = Object{
		Data:         stored,
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		Created:      s.now(),
	}
	return nil
}

// Object returns a copy of the stored object, for inspection.
func (s *Store) Object(bucket, key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[objectKey(bucket, key)]
	return obj, ok
}

// SetCreated overrides the creation time of an existing object.
func (s *Store) SetCreated(bucket, key string, created time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := objectKey(bucket, key)
	obj, ok := s.objects[k]
	if !ok {
		return false
	}
	obj.Created = created
	s.objects[k] = obj
	return true
}
