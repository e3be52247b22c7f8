package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/platinummonkey/campus/pkg/media")

// allowedTypes are the sniffed content types accepted as images
var allowedTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ErrNotAnImage is returned when uploaded content does not sniff as a
// supported image type
var ErrNotAnImage = errors.New("content is not a supported image")

// ErrTooLarge is returned when content exceeds the configured limit
var ErrTooLarge = errors.New("image exceeds maximum size")

// Store persists images and returns the URL they are served from
type Store interface {
	PutImage(ctx context.Context, prefix string, content []byte) (string, error)
}

// S3API is the subset of the S3 client the store uses
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Config holds object storage settings
type Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	PublicBaseURL string
	MaxBytes      int64
}

// S3Store stores images in an S3-compatible bucket under content-addressed
// keys
type S3Store struct {
	client  S3API
	bucket  string
	baseURL string
	max     int64
}

// NewS3Store connects to S3 (or MinIO when Endpoint is set) and makes sure
// the bucket exists
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	store := NewS3StoreWithClient(client, cfg)
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// NewS3StoreWithClient builds a store around an existing client. The bucket
// is not checked.
func NewS3StoreWithClient(client S3API, cfg Config) *S3Store {
	base := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if base == "" {
		base = defaultBaseURL(cfg)
	}
	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: base,
		max:     cfg.MaxBytes,
	}
}

func defaultBaseURL(cfg Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

// PutImage stores content under images/<prefix>/sha256/ab/cdef....<ext> and
// returns its public URL. Identical content is uploaded once.
func (s *S3Store) PutImage(ctx context.Context, prefix string, content []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "media.PutImage",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.Int("content.size", len(content)),
		),
	)
	defer span.End()

	if s.max > 0 && int64(len(content)) > s.max {
		return "", ErrTooLarge
	}
	contentType := http.DetectContentType(content)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", ErrNotAnImage
	}

	key := imageKey(prefix, content, ext)
	span.SetAttributes(attribute.String("s3.key", key), attribute.String("content.type", contentType))

	exists, err := s.objectExists(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "head failed")
		return "", err
	}
	span.SetAttributes(attribute.Bool("deduplication.hit", exists))

	if !exists {
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(content),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upload failed")
			return "", fmt.Errorf("failed to upload image: %w", err)
		}
	}

	return s.baseURL + "/" + key, nil
}

// imageKey derives the content-addressed object key
func imageKey(prefix string, content []byte, ext string) string {
	sum := sha256.Sum256(content)
	h := hex.EncodeToString(sum[:])
	return fmt.Sprintf("images/%s/sha256/%s/%s.%s", strings.Trim(prefix, "/"), h[:2], h[2:], ext)
}

func (s *S3Store) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check object existence: %w", err)
}

// ensureBucket creates the bucket when it does not exist yet (local MinIO)
func (s *S3Store) ensureBucket(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}

	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var exists *types.BucketAlreadyExists
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &exists) || errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// HealthCheck verifies the bucket is reachable
func (s *S3Store) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}
