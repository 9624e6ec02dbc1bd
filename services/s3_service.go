package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/rusticroots/storefront-api/config"
)

// ObjectStorage defines the bucket operations the image service needs
type ObjectStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// S3Service stores objects in an AWS S3 bucket
type S3Service struct {
	client    *s3.Client
	bucket    string
	region    string
	publicURL string
}

var storageInstance ObjectStorage

// InitStorage builds the backend selected by STORAGE_DRIVER
func InitStorage(ctx context.Context, cfg *appConfig.Config) (ObjectStorage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.StorageDriver {
	case "minio":
		backend, err = NewMinioService(cfg)
	default:
		backend, err = NewS3Service(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	storageInstance = backend
	return backend, nil
}

// NewS3Service initializes the S3 client with static credentials
func NewS3Service(ctx context.Context, cfg *appConfig.Config) (*S3Service, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.AWSRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.UsePathStyle = false
	})

	return &S3Service{
		client:    client,
		bucket:    cfg.AWSS3Bucket,
		region:    cfg.AWSRegion,
		publicURL: cfg.StoragePublicURL,
	}, nil
}

// GetStorage returns the initialized storage backend
func GetStorage() ObjectStorage {
	return storageInstance
}

// SetStorage sets the storage backend (primarily for testing)
func SetStorage(storage ObjectStorage) {
	storageInstance = storage
}

// Put uploads r under key
func (s *S3Service) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// Delete removes key from the bucket
func (s *S3Service) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// PublicURL is the virtual-hosted-style URL of key, or key under STORAGE_PUBLIC_URL
func (s *S3Service) PublicURL(key string) string {
	return publicObjectURL(s.publicURL, fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.bucket, s.region), key)
}

func publicObjectURL(override, fallback, key string) string {
	base := override
	if base == "" {
		base = fallback
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
