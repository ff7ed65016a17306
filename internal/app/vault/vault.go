// Package vault stores one salted password verifier per short link.
//
// A record lives in the password bucket at short/<filename without .json> and
// holds the 32-byte scrypt hash followed by the 16-byte salt. Records are
// written at most once; there is no rotation.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sifan077/shortng/internal/app/repository"
	"go.uber.org/zap"
)

const recordContentType = "application/octet-stream"

var (
	// ErrRecordNotFound signals that no password was ever set for the link.
	ErrRecordNotFound = errors.New("password record not found")
	// ErrMalformedRecord signals a record of the wrong size.
	ErrMalformedRecord = errors.New("malformed password record")
)

// Record is a decoded password blob.
type Record struct {
	Hash []byte
	Salt []byte
}

// Vault reads and writes password records.
type Vault struct {
	store  repository.BlobStore
	bucket string
	suffix string
	logger *zap.Logger
}

// New returns a vault over bucket. suffix is the filename suffix stripped
// when deriving record keys (".json").
func New(store repository.BlobStore, bucket, suffix string, logger *zap.Logger) *Vault {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vault{store: store, bucket: bucket, suffix: suffix, logger: logger}
}

// Bucket returns the password bucket name.
func (v *Vault) Bucket() string {
	return v.bucket
}

// RecordKey maps a link filename to its password record key.
func (v *Vault) RecordKey(filename string) string {
	return repository.BlobKey(strings.TrimSuffix(filename, v.suffix))
}

// Exists reports whether a password was set for filename.
func (v *Vault) Exists(ctx context.Context, filename string) (bool, error) {
	ok, err := v.store.Exists(ctx, v.bucket, v.RecordKey(filename))
	if err != nil {
		return false, fmt.Errorf("check password record: %w", err)
	}
	return ok, nil
}

// Load returns the stored hash and salt for filename.
func (v *Vault) Load(ctx context.Context, filename string) (Record, error) {
	data, err := v.store.Get(ctx, v.bucket, v.RecordKey(filename))
	if err != nil {
		if errors.Is(err, repository.ErrBlobNotFound) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, fmt.Errorf("read password record: %w", err)
	}
	if len(data) != HashWidth+SaltWidth {
		return Record{}, fmt.Errorf("%w: %d bytes", ErrMalformedRecord, len(data))
	}
	return Record{
		Hash: data[:HashWidth],
		Salt: data[HashWidth:],
	}, nil
}

// Store writes hash ++ salt for filename. The write is conditional on the
// record being absent, so a second store leaves the first record untouched.
func (v *Vault) Store(ctx context.Context, filename string, hash, salt []byte) error {
	if len(hash) != HashWidth || len(salt) != SaltWidth {
		return fmt.Errorf("%w: hash %d bytes, salt %d bytes", ErrMalformedRecord, len(hash), len(salt))
	}

	data := make([]byte, 0, HashWidth+SaltWidth)
	data = append(data, hash...)
	data = append(data, salt...)

	key := v.RecordKey(filename)
	err := v.store.Put(ctx, v.bucket, key, data, repository.PutOptions{
		ContentType: recordContentType,
		IfAbsent:    true,
	})
	if errors.Is(err, repository.ErrPreconditionFailed) {
		v.logger.Warn("password record already exists, keeping original", zap.String("key", key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("write password record: %w", err)
	}
	v.logger.Info("stored password record", zap.String("bucket", v.bucket), zap.String("key", key))
	return nil
}

// SetPassword derives a fresh salt and verifier for password and stores it.
func (v *Vault) SetPassword(ctx context.Context, filename, password string) error {
	salt, err := NewSalt()
	if err != nil {
		return err
	}
	hash, err := HashPassword(password, salt)
	if err != nil {
		return err
	}
	return v.Store(ctx, filename, hash, salt)
}
