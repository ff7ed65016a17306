package repository

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBlobNotFound signals that the requested object does not exist.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrPreconditionFailed signals that a conditional write lost against an existing object.
	ErrPreconditionFailed = errors.New("blob precondition failed")
)

// PutOptions controls object metadata and write conditions.
type PutOptions struct {
	ContentType  string
	CacheControl string
	// IfAbsent makes the write fail with ErrPreconditionFailed when the key already exists.
	IfAbsent bool
}

// BlobStore is the object storage contract used by the link and password buckets.
type BlobStore interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	// CreatedTime returns the store's own creation timestamp of the current object.
	CreatedTime(ctx context.Context, bucket, key string) (time.Time, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, opts PutOptions) error
}
