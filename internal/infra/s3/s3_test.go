package s3store

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sifan077/shortng/config"
	"github.com/sifan077/shortng/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockObjectAPI struct {
	headFn func(ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
	getFn  func(ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error)
	putFn  func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error)
}

func (m *mockObjectAPI) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return m.headFn(ctx, in)
}

func (m *mockObjectAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return m.getFn(ctx, in)
}

func (m *mockObjectAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.putFn(ctx, in)
}

func storeWith(api objectAPI) *Store {
	s := New(config.S3Config{Region: "us-east-1"}, nil)
	s.once.Do(func() { s.api = api })
	return s
}

func TestStore_CreatedTimeAndExists(t *testing.T) {
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := storeWith(&mockObjectAPI{
		headFn: func(ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
			if aws.ToString(in.Key) == "short/missing.json" {
				return nil, &types.NotFound{}
			}
			return &s3.HeadObjectOutput{LastModified: aws.Time(modified)}, nil
		},
	})
	ctx := context.Background()

	created, err := s.CreatedTime(ctx, "links", "short/a.json")
	require.NoError(t, err)
	assert.Equal(t, modified, created)

	ok, err := s.Exists(ctx, "links", "short/a.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "links", "short/missing.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Get(t *testing.T) {
	s := storeWith(&mockObjectAPI{
		getFn: func(ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
			if aws.ToString(in.Key) == "short/a.json" {
				return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(`{"a":1}`))}, nil
			}
			return nil, &types.NoSuchKey{}
		},
	})

	data, err := s.Get(context.Background(), "links", "short/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	_, err = s.Get(context.Background(), "links", "short/b.json")
	assert.ErrorIs(t, err, repository.ErrBlobNotFound)
}

func TestStore_PutConditional(t *testing.T) {
	var got *s3.PutObjectInput
	s := storeWith(&mockObjectAPI{
		putFn: func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			got = in
			if in.IfNoneMatch != nil {
				return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
			}
			return &s3.PutObjectOutput{}, nil
		},
	})
	ctx := context.Background()

	err := s.Put(ctx, "links", "short/a.json", []byte("{}"), repository.PutOptions{
		ContentType:  "application/json",
		CacheControl: "public, no-store",
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", aws.ToString(got.ContentType))
	assert.Equal(t, "public, no-store", aws.ToString(got.CacheControl))
	assert.Equal(t, int64(2), aws.ToInt64(got.ContentLength))
	assert.Nil(t, got.IfNoneMatch)

	err = s.Put(ctx, "links", "short/a.json", []byte("{}"), repository.PutOptions{IfAbsent: true})
	assert.ErrorIs(t, err, repository.ErrPreconditionFailed)
	assert.Equal(t, "*", aws.ToString(got.IfNoneMatch))
}

func TestMapError(t *testing.T) {
	boom := errors.New("connection reset")
	err := mapError(boom, "put", "links", "short/x.json")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, repository.ErrBlobNotFound)

	conflict := &smithy.GenericAPIError{Code: "ConditionalRequestConflict"}
	assert.ErrorIs(t, mapError(conflict, "put", "b", "k"), repository.ErrPreconditionFailed)
}

func TestStore_LazyClient(t *testing.T) {
	loads := 0
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	defer func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	}()

	api := &mockObjectAPI{}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		loads++
		var o s3.Options
		for _, fn := range optFns {
			fn(&o)
		}
		assert.Equal(t, "http://minio:9000", aws.ToString(o.BaseEndpoint))
		assert.True(t, o.UsePathStyle)
		assert.Equal(t, "eu-west-1", cfg.Region)
		return api
	}

	s := New(config.S3Config{
		Region:          "eu-west-1",
		Endpoint:        "http://minio:9000",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		UsePathStyle:    true,
	}, nil)

	for i := 0; i < 3; i++ {
		got, err := s.client()
		require.NoError(t, err)
		assert.Same(t, api, got)
	}
	assert.Equal(t, 1, loads)
}
