package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rusticroots/storefront-api/services"
	"github.com/rusticroots/storefront-api/utils"
)

// multipart framing allowance on top of the image itself
const uploadOverhead = 1 << 20

// UploadImage handles POST /api/upload/image (admin) - stores the multipart "image" field
func UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxFileSize+uploadOverhead)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE", "File size exceeds 10MB limit")
			return
		}
		respondError(c, http.StatusBadRequest, "NO_FILE", "No file provided")
		return
	}

	imageService := services.GetImageService()
	if imageService == nil {
		respondError(c, http.StatusInternalServerError, "SERVICE_UNAVAILABLE", "Image storage is not configured")
		return
	}

	result, err := imageService.UploadImage(c.Request.Context(), fileHeader)
	if err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
			return
		}
		respondInternal(c, "UPLOAD_FAILED", "Failed to upload image", err)
		return
	}

	respondData(c, http.StatusOK, result)
}

// DeleteImage handles DELETE /api/upload/image?key= (admin). Only product image keys may be removed.
func DeleteImage(c *gin.Context) {
	key := strings.TrimSpace(c.Query("key"))
	if key == "" || !strings.HasPrefix(key, utils.ProductImagePrefix+"/") || strings.Contains(key, "..") {
		respondError(c, http.StatusBadRequest, "INVALID_KEY", "A product image key is required")
		return
	}

	imageService := services.GetImageService()
	if imageService == nil {
		respondError(c, http.StatusInternalServerError, "SERVICE_UNAVAILABLE", "Image storage is not configured")
		return
	}

	if err := imageService.DeleteImage(c.Request.Context(), key); err != nil {
		respondInternal(c, "DELETE_FAILED", "Failed to delete image", err)
		return
	}

	c.Status(http.StatusNoContent)
}
