package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockObjectAPI is a mock implementation of objectAPI
type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.ListObjectsV2Output), args.Error(1)
}

func (m *MockObjectAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) HeadObject(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadBucketOutput), args.Error(1)
}

func (m *MockObjectAPI) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.CreateBucketOutput), args.Error(1)
}

func TestS3Client_ListKeys_Paginates(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3Client(api, "docs")

	api.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil && aws.ToString(in.Prefix) == "kb/"
	})).Return(&s3.ListObjectsV2Output{
		Contents:              []types.Object{{Key: aws.String("kb/")}, {Key: aws.String("kb/a.md")}},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("next"),
	}, nil).Once()
	api.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.ContinuationToken) == "next"
	})).Return(&s3.ListObjectsV2Output{
		Contents:    []types.Object{{Key: aws.String("kb/sub/b.txt")}},
		IsTruncated: aws.Bool(false),
	}, nil).Once()

	keys, err := client.ListKeys(context.Background(), "kb/")

	require.NoError(t, err)
	assert.Equal(t, []string{"kb/a.md", "kb/sub/b.txt"}, keys)
	api.AssertExpectations(t)
}

func TestS3Client_ListKeys_Error(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3Client(api, "docs")
	api.On("ListObjectsV2", mock.Anything, mock.Anything).Return(nil, &types.NoSuchBucket{})

	_, err := client.ListKeys(context.Background(), "")

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestS3Client_GetObject(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3Client(api, "docs")
	api.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Bucket) == "docs" && aws.ToString(in.Key) == "a.md"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("# Cocoa"))}, nil)

	data, err := client.GetObject(context.Background(), "a.md")

	require.NoError(t, err)
	assert.Equal(t, "# Cocoa", string(data))
}

func TestS3Client_GetObject_TooLarge(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3Client(api, "docs")
	client.maxObjectSize = 4
	api.On("GetObject", mock.Anything, mock.Anything).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("too long"))}, nil)

	_, err := client.GetObject(context.Background(), "big.txt")

	assert.ErrorIs(t, err, ErrObjectTooLarge)
}

func TestS3Client_GetObject_NotFound(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3Client(api, "docs")
	api.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})

	_, err := client.GetObject(context.Background(), "gone.txt")

	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestS3Client_EnsureBucket(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3Client(api, "docs")
	api.On("HeadBucket", mock.Anything, mock.Anything).Return(nil, &types.NotFound{}).Once()
	api.On("CreateBucket", mock.Anything, mock.MatchedBy(func(in *s3.CreateBucketInput) bool {
		return aws.ToString(in.Bucket) == "docs"
	})).Return(&s3.CreateBucketOutput{}, nil).Once()

	require.NoError(t, client.EnsureBucket(context.Background()))

	api.On("HeadBucket", mock.Anything, mock.Anything).Return(&s3.HeadBucketOutput{}, nil).Once()
	require.NoError(t, client.EnsureBucket(context.Background()))
	api.AssertNumberOfCalls(t, "CreateBucket", 1)
}

func TestS3Client_PutAndHead(t *testing.T) {
	api := new(MockObjectAPI)
	client := newS3Client(api, "docs")
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "a.md" && aws.ToString(in.ContentType) == "text/markdown"
	})).Return(&s3.PutObjectOutput{}, nil)
	api.On("HeadObject", mock.Anything, mock.Anything).Return(&s3.HeadObjectOutput{
		ContentLength: aws.Int64(7),
		ContentType:   aws.String("text/markdown"),
		ETag:          aws.String(`"abc"`),
	}, nil)

	require.NoError(t, client.PutObject(context.Background(), "a.md", []byte("# Cocoa"), "text/markdown"))
	meta, err := client.HeadObject(context.Background(), "a.md")

	require.NoError(t, err)
	assert.Equal(t, int64(7), meta.ContentLength)
	assert.Equal(t, "text/markdown", meta.ContentType)
	assert.Equal(t, "docs", client.Bucket())
}

func TestNewS3Client_RequiresBucket(t *testing.T) {
	_, err := NewS3Client(context.Background(), S3ClientConfig{Region: "us-east-1"})
	assert.Error(t, err)

	client, err := NewS3Client(context.Background(), S3ClientConfig{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "docs",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "docs", client.Bucket())
}
