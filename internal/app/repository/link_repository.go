package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// KeyPrefix is prepended to every stored link and password record.
	KeyPrefix = "short/"

	stateContentType  = "application/json"
	stateCacheControl = "public, no-store"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
)

// BlobKey maps a filename to its object key.
func BlobKey(filename string) string {
	return KeyPrefix + filename
}

// LinkRepository defines the data access contract for stored viewer states.
type LinkRepository interface {
	Bucket() string
	Exists(ctx context.Context, filename string) (bool, error)
	CreatedAt(ctx context.Context, filename string) (time.Time, error)
	Get(ctx context.Context, filename string) ([]byte, error)
	Save(ctx context.Context, filename string, state []byte, ifAbsent bool) error
}

type linkRepository struct {
	store  BlobStore
	bucket string
}

// NewLinkRepository returns a BlobStore-backed LinkRepository writing to bucket.
func NewLinkRepository(store BlobStore, bucket string) LinkRepository {
	return &linkRepository{store: store, bucket: bucket}
}

func (r *linkRepository) Bucket() string {
	return r.bucket
}

func (r *linkRepository) Exists(ctx context.Context, filename string) (bool, error) {
	ok, err := r.store.Exists(ctx, r.bucket, BlobKey(filename))
	if err != nil {
		return false, fmt.Errorf("check link %s: %w", filename, err)
	}
	return ok, nil
}

func (r *linkRepository) CreatedAt(ctx context.Context, filename string) (time.Time, error) {
	created, err := r.store.CreatedTime(ctx, r.bucket, BlobKey(filename))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return time.Time{}, ErrLinkNotFound
		}
		return time.Time{}, fmt.Errorf("stat link %s: %w", filename, err)
	}
	return created, nil
}

func (r *linkRepository) Get(ctx context.Context, filename string) ([]byte, error) {
	data, err := r.store.Get(ctx, r.bucket, BlobKey(filename))
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("read link %s: %w", filename, err)
	}
	return data, nil
}

func (r *linkRepository) Save(ctx context.Context, filename string, state []byte, ifAbsent bool) error {
	err := r.store.Put(ctx, r.bucket, BlobKey(filename), state, PutOptions{
		ContentType:  stateContentType,
		CacheControl: stateCacheControl,
		IfAbsent:     ifAbsent,
	})
	if err != nil {
		if errors.Is(err, ErrPreconditionFailed) {
			return err
		}
		return fmt.Errorf("write link %s: %w", filename, err)
	}
	return nil
}
