// Package gcs implements repository.BlobStore on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/sifan077/shortng/internal/app/repository"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Store is a BlobStore backed by GCS. The client is created on first use and
// shared by all requests.
type Store struct {
	opts   []option.ClientOption
	logger *zap.Logger

	newClient func(ctx context.Context, opts ...option.ClientOption) (*storage.Client, error)

	once    sync.Once
	client  *storage.Client
	initErr error

	closeOnce sync.Once
	closeErr  error
}

// ErrClosed is returned by a Store used after Close.
var ErrClosed = errors.New("gcs: store closed")

// New returns a Store. credentialsJSON holds a service account key; when empty
// the application default credentials are used.
func New(credentialsJSON string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return &Store{opts: opts, logger: logger, newClient: storage.NewClient}
}

func (s *Store) storageClient() (*storage.Client, error) {
	s.once.Do(func() {
		// The client outlives any single request.
		s.client, s.initErr = s.newClient(context.Background(), s.opts...)
		if s.initErr != nil {
			s.logger.Error("gcs client init failed", zap.Error(s.initErr))
			return
		}
		s.logger.Info("gcs client initialized")
	})
	return s.client, s.initErr
}

func (s *Store) object(bucket, key string) (*storage.ObjectHandle, error) {
	client, err := s.storageClient()
	if err != nil {
		return nil, fmt.Errorf("gcs: client: %w", err)
	}
	return client.Bucket(bucket).Object(key), nil
}

func (s *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.CreatedTime(ctx, bucket, key)
	if errors.Is(err, repository.ErrBlobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CreatedTime(ctx context.Context, bucket, key string) (time.Time, error) {
	obj, err := s.object(bucket, key)
	if err != nil {
		return time.Time{}, err
	}
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return time.Time{}, mapError(err, "stat", bucket, key)
	}
	return attrs.Created, nil
}

func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.object(bucket, key)
	if err != nil {
		return nil, err
	}
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, mapError(err, "open", bucket, key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs: read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, bucket, key string, data []byte, opts repository.PutOptions) error {
	obj, err := s.object(bucket, key)
	if err != nil {
		return err
	}
	if opts.IfAbsent {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.CacheControl = opts.CacheControl
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return mapError(err, "write", bucket, key)
	}
	if err := w.Close(); err != nil {
		return mapError(err, "write", bucket, key)
	}
	return nil
}

// Close releases the client if it was created. It waits for an in-flight
// client creation, and a Store closed before first use never creates one.
func (s *Store) Close() error {
	s.once.Do(func() { s.initErr = ErrClosed })
	s.closeOnce.Do(func() {
		if s.client != nil {
			s.closeErr = s.client.Close()
		}
	})
	return s.closeErr
}

func mapError(err error, op, bucket, key string) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return repository.ErrBlobNotFound
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return repository.ErrBlobNotFound
		case http.StatusPreconditionFailed:
			return repository.ErrPreconditionFailed
		}
	}
	return fmt.Errorf("gcs: %s %s/%s: %w", op, bucket, key, err)
}
