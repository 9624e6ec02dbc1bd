package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// MaxFileSize is 10MB in bytes
	MaxFileSize = 10 * 1024 * 1024
	// ProductImagePrefix is the bucket folder for product images
	ProductImagePrefix = "images/products"
)

// AllowedImageTypes are the sniffed content types accepted for upload
var AllowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/avif",
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ImageFile is an uploaded image that passed validation
type ImageFile struct {
	Data        []byte
	ContentType string
	Extension   string
}

// ReadImageFile enforces the size limit, reads the upload and checks its
// content type by sniffing the bytes rather than trusting the client.
func ReadImageFile(fileHeader *multipart.FileHeader) (*ImageFile, error) {
	if fileHeader == nil {
		return nil, &FileUploadError{Code: "NO_FILE", Message: "No file provided"}
	}
	if fileHeader.Size > MaxFileSize {
		return nil, fileTooLarge()
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, fileTooLarge()
	}

	detected := mimetype.Detect(data)
	if !mimetype.EqualsAny(detected.String(), AllowedImageTypes...) {
		return nil, &FileUploadError{
			Code:    "INVALID_FILE_TYPE",
			Message: "Only image files are allowed (JPEG, PNG, GIF, WebP, AVIF)",
		}
	}

	return &ImageFile{
		Data:        data,
		ContentType: detected.String(),
		Extension:   detected.Extension(),
	}, nil
}

// NewImageKey returns a random object key such as images/products/<uuid>.png
func NewImageKey(extension string) string {
	return path.Join(ProductImagePrefix, uuid.NewString()+extension)
}

func fileTooLarge() error {
	return &FileUploadError{
		Code:    "FILE_TOO_LARGE",
		Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
	}
}
