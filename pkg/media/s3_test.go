package media

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
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	headObjectFunc   func(*s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
	putObjectFunc    func(*s3.PutObjectInput) (*s3.PutObjectOutput, error)
	headBucketFunc   func(*s3.HeadBucketInput) (*s3.HeadBucketOutput, error)
	createBucketFunc func(*s3.CreateBucketInput) (*s3.CreateBucketOutput, error)
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.headObjectFunc != nil {
		return m.headObjectFunc(in)
	}
	return nil, &types.NotFound{}
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putObjectFunc != nil {
		return m.putObjectFunc(in)
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if m.headBucketFunc != nil {
		return m.headBucketFunc(in)
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *mockS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if m.createBucketFunc != nil {
		return m.createBucketFunc(in)
	}
	return &s3.CreateBucketOutput{}, nil
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func testConfig() Config {
	return Config{
		Endpoint: "http://minio:9000",
		Region:   "us-east-1",
		Bucket:   "campus-media",
		MaxBytes: 1024,
	}
}

func TestS3Store_PutImage_Uploads(t *testing.T) {
	var put *s3.PutObjectInput
	var body []byte
	client := &mockS3{
		putObjectFunc: func(in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			put = in
			body, _ = io.ReadAll(in.Body)
			return &s3.PutObjectOutput{}, nil
		},
	}
	store := NewS3StoreWithClient(client, testConfig())

	url, err := store.PutImage(context.Background(), "universities/7", pngBytes)
	require.NoError(t, err)
	require.NotNil(t, put)

	key := aws.ToString(put.Key)
	assert.True(t, strings.HasPrefix(key, "images/universities/7/sha256/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)
	assert.Equal(t, "campus-media", aws.ToString(put.Bucket))
	assert.Equal(t, "image/png", aws.ToString(put.ContentType))
	assert.Equal(t, pngBytes, body)
	assert.Equal(t, "http://minio:9000/campus-media/"+key, url)
}

func TestS3Store_PutImage_Deduplicates(t *testing.T) {
	client := &mockS3{
		headObjectFunc: func(*s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
			return &s3.HeadObjectOutput{}, nil
		},
		putObjectFunc: func(*s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			t.Fatal("existing object must not be uploaded again")
			return nil, nil
		},
	}
	store := NewS3StoreWithClient(client, testConfig())

	first, err := store.PutImage(context.Background(), "events/3", pngBytes)
	require.NoError(t, err)
	second, err := store.PutImage(context.Background(), "events/3", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestS3Store_PutImage_Rejects(t *testing.T) {
	store := NewS3StoreWithClient(&mockS3{}, testConfig())

	_, err := store.PutImage(context.Background(), "events/3", []byte("just some text"))
	assert.ErrorIs(t, err, ErrNotAnImage)

	big := append(append([]byte{}, pngBytes...), make([]byte, 2048)...)
	_, err = store.PutImage(context.Background(), "events/3", big)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestS3Store_PutImage_Errors(t *testing.T) {
	t.Run("head failure", func(t *testing.T) {
		store := NewS3StoreWithClient(&mockS3{
			headObjectFunc: func(*s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
				return nil, errors.New("access denied")
			},
		}, testConfig())
		_, err := store.PutImage(context.Background(), "events/3", pngBytes)
		assert.ErrorContains(t, err, "access denied")
	})

	t.Run("put failure", func(t *testing.T) {
		store := NewS3StoreWithClient(&mockS3{
			putObjectFunc: func(*s3.PutObjectInput) (*s3.PutObjectOutput, error) {
				return nil, errors.New("slow down")
			},
		}, testConfig())
		_, err := store.PutImage(context.Background(), "events/3", pngBytes)
		assert.ErrorContains(t, err, "failed to upload image")
	})
}

func TestS3Store_EnsureBucket(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		client := &mockS3{
			createBucketFunc: func(*s3.CreateBucketInput) (*s3.CreateBucketOutput, error) {
				t.Fatal("bucket should not be created")
				return nil, nil
			},
		}
		assert.NoError(t, NewS3StoreWithClient(client, testConfig()).ensureBucket(context.Background()))
	})

	t.Run("creates missing bucket", func(t *testing.T) {
		created := false
		client := &mockS3{
			headBucketFunc: func(*s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
				return nil, &types.NotFound{}
			},
			createBucketFunc: func(in *s3.CreateBucketInput) (*s3.CreateBucketOutput, error) {
				created = aws.ToString(in.Bucket) == "campus-media"
				return &s3.CreateBucketOutput{}, nil
			},
		}
		require.NoError(t, NewS3StoreWithClient(client, testConfig()).ensureBucket(context.Background()))
		assert.True(t, created)
	})

	t.Run("lost creation race", func(t *testing.T) {
		client := &mockS3{
			headBucketFunc: func(*s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
				return nil, &types.NotFound{}
			},
			createBucketFunc: func(*s3.CreateBucketInput) (*s3.CreateBucketOutput, error) {
				return nil, &types.BucketAlreadyOwnedByYou{}
			},
		}
		assert.NoError(t, NewS3StoreWithClient(client, testConfig()).ensureBucket(context.Background()))
	})

	t.Run("creation fails", func(t *testing.T) {
		client := &mockS3{
			headBucketFunc: func(*s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
				return nil, &types.NotFound{}
			},
			createBucketFunc: func(*s3.CreateBucketInput) (*s3.CreateBucketOutput, error) {
				return nil, errors.New("forbidden")
			},
		}
		assert.Error(t, NewS3StoreWithClient(client, testConfig()).ensureBucket(context.Background()))
	})
}

func TestDefaultBaseURL(t *testing.T) {
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com", defaultBaseURL(Config{Bucket: "b", Region: "eu-west-1"}))
	assert.Equal(t, "http://minio:9000/b", defaultBaseURL(Config{Bucket: "b", Endpoint: "http://minio:9000/"}))

	store := NewS3StoreWithClient(&mockS3{}, Config{Bucket: "b", PublicBaseURL: "https://cdn.example.edu/"})
	assert.Equal(t, "https://cdn.example.edu", store.baseURL)
}
