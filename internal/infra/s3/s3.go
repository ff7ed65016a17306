// Package s3store implements repository.BlobStore on S3-compatible storage.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sifan077/shortng/config"
	"github.com/sifan077/shortng/internal/app/repository"
	"go.uber.org/zap"
)

var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store is a BlobStore backed by S3. S3 keeps no creation time, so
// CreatedTime reports LastModified, which an overwrite resets.
type Store struct {
	cfg    config.S3Config
	logger *zap.Logger

	once    sync.Once
	api     objectAPI
	initErr error
}

// New returns a Store; the client is built on first use.
func New(cfg config.S3Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{cfg: cfg, logger: logger}
}

func (s *Store) client() (objectAPI, error) {
	s.once.Do(func() {
		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(s.cfg.Region),
		}
		if s.cfg.AccessKeyID != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				s.cfg.AccessKeyID,
				s.cfg.SecretAccessKey,
				"",
			)))
		}

		awsCfg, err := loadDefaultAWSConfig(context.Background(), opts...)
		if err != nil {
			s.initErr = fmt.Errorf("s3: load config: %w", err)
			return
		}

		s.api = newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
			if s.cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(s.cfg.Endpoint)
			}
			o.UsePathStyle = s.cfg.UsePathStyle
		})
		s.logger.Info("s3 client initialized", zap.String("region", s.cfg.Region), zap.String("endpoint", s.cfg.Endpoint))
	})
	return s.api, s.initErr
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
	api, err := s.client()
	if err != nil {
		return time.Time{}, err
	}
	out, err := api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return time.Time{}, mapError(err, "head", bucket, key)
	}
	return aws.ToTime(out.LastModified), nil
}

func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	api, err := s.client()
	if err != nil {
		return nil, err
	}
	out, err := api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "get", bucket, key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, bucket, key string, data []byte, opts repository.PutOptions) error {
	api, err := s.client()
	if err != nil {
		return err
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		in.CacheControl = aws.String(opts.CacheControl)
	}
	if opts.IfAbsent {
		in.IfNoneMatch = aws.String("*")
	}

	if _, err := api.PutObject(ctx, in); err != nil {
		return mapError(err, "put", bucket, key)
	}
	return nil
}

func mapError(err error, op, bucket, key string) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return repository.ErrBlobNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return repository.ErrBlobNotFound
		case "PreconditionFailed", "ConditionalRequestConflict":
			return repository.ErrPreconditionFailed
		}
	}
	return fmt.Errorf("s3: %s %s/%s: %w", op, bucket, key, err)
}
