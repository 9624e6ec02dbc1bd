package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"

	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/utils"
)

// ErrUploadFailed wraps storage provider failures
var ErrUploadFailed = errors.New("upload failed")

// UploadResult describes a stored product image
type UploadResult struct {
	URL         string `json:"url"`
	Key         string `json:"key,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size,omitempty"`
	Fallback    bool   `json:"fallback,omitempty"`
}

// ImageService validates and stores product images
type ImageService interface {
	UploadImage(ctx context.Context, fileHeader *multipart.FileHeader) (*UploadResult, error)
	DeleteImage(ctx context.Context, key string) error
}

// StorageImageService implements ImageService on an ObjectStorage backend
type StorageImageService struct {
	storage     ObjectStorage
	fallbackURL string
}

var imageServiceInstance ImageService

// InitImageService initializes the image service. When fallbackURL is set a
// storage failure yields that placeholder instead of an error.
func InitImageService(storage ObjectStorage, fallbackURL string) ImageService {
	imageServiceInstance = &StorageImageService{
		storage:     storage,
		fallbackURL: fallbackURL,
	}
	return imageServiceInstance
}

// GetImageService returns the initialized image service instance
func GetImageService() ImageService {
	return imageServiceInstance
}

// SetImageService sets the image service instance (primarily for testing)
func SetImageService(service ImageService) {
	imageServiceInstance = service
}

// UploadImage validates fileHeader and stores it under a random key.
// Validation failures are *utils.FileUploadError.
func (s *StorageImageService) UploadImage(ctx context.Context, fileHeader *multipart.FileHeader) (*UploadResult, error) {
	img, err := utils.ReadImageFile(fileHeader)
	if err != nil {
		return nil, err
	}

	key := utils.NewImageKey(img.Extension)
	err = s.storage.Put(ctx, key, bytes.NewReader(img.Data), int64(len(img.Data)), img.ContentType)
	if err != nil {
		log := logger.FromContext(ctx)
		if s.fallbackURL != "" {
			log.Warn("image upload failed, using placeholder", slog.String("key", key), slog.Any("error", err))
			return &UploadResult{URL: s.fallbackURL, Fallback: true}, nil
		}
		log.Error("image upload failed", slog.String("key", key), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	return &UploadResult{
		URL:         s.storage.PublicURL(key),
		Key:         key,
		ContentType: img.ContentType,
		Size:        len(img.Data),
	}, nil
}

// DeleteImage removes a stored image
func (s *StorageImageService) DeleteImage(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
