package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/yeti47/framesight/server/core/ccc/logging"
	"github.com/yeti47/framesight/server/core/classification"
	"github.com/yeti47/framesight/server/core/frames"
	"github.com/yeti47/framesight/server/core/pipeline"
	"github.com/yeti47/framesight/server/frame-server/uploads"
)

// StatusClientClosedRequest is reported when the caller went away before the pipeline finished
const StatusClientClosedRequest = 499

// VideoProcessor runs stored uploads through the pipeline
type VideoProcessor interface {
	ProcessVideo(ctx context.Context, sourceVideoPath, baseOutputDir string) (*classification.Result, error)
	ProcessImages(ctx context.Context, imagePaths []string) (*classification.Result, error)
}

// UploadHandler handles video and image uploads
type UploadHandler struct {
	logger    logging.Logger
	store     *uploads.Store
	processor VideoProcessor
	framesDir string
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(logger logging.Logger, store *uploads.Store, processor VideoProcessor, framesDir string) *UploadHandler {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &UploadHandler{
		logger:    logger,
		store:     store,
		processor: processor,
		framesDir: framesDir,
	}
}

// UploadVideo handles POST /video
func (h *UploadHandler) UploadVideo(c *gin.Context) {
	fileHeader, err := c.FormFile("video")
	if err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload is too large"})
			return
		}
		h.logger.Warn("No video in upload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "No video file uploaded"})
		return
	}

	stored, err := h.store.SaveFormFile(fileHeader)
	if err != nil {
		h.logger.Error("Failed to store uploaded video", "filename", fileHeader.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded video"})
		return
	}

	h.logger.Info("Received video", "filename", fileHeader.Filename, "path", stored.Path, "size", stored.Size)

	result, err := h.processor.ProcessVideo(c.Request.Context(), stored.Path, h.framesDir)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Video processed successfully",
		"images":  result.Payload(),
	})
}

// UploadImages handles POST /image. Every file part is accepted, whatever its field name.
func (h *UploadHandler) UploadImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload is too large"})
			return
		}
		h.logger.Warn("Invalid multipart form", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image files uploaded"})
		return
	}

	// field order is lost in the parsed form; sort by field name and keep part order within a field
	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var stored []*uploads.StoredFile
	for _, field := range fields {
		for _, fileHeader := range form.File[field] {
			file, err := h.store.SaveFormFile(fileHeader)
			if err != nil {
				h.logger.Error("Failed to store uploaded image", "filename", fileHeader.Filename, "error", err)
				h.store.Remove(stored)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded images"})
				return
			}
			stored = append(stored, file)
		}
	}

	if len(stored) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image files uploaded"})
		return
	}

	paths := make([]string, len(stored))
	for i, file := range stored {
		paths[i] = file.Path
	}

	h.logger.Info("Received images", "count", len(paths))

	result, err := h.processor.ProcessImages(c.Request.Context(), paths)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Images processed successfully",
		"images":  result.Payload(),
	})
}

func (h *UploadHandler) respondError(c *gin.Context, err error) {
	kind := pipeline.ErrorKind(err)
	status := StatusForErrorKind(kind)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Pipeline failed", "error_kind", kind, "error", err)
	} else {
		h.logger.Warn("Pipeline rejected upload", "error_kind", kind, "error", err)
	}

	var decodeErr *frames.DecodeError
	if errors.As(err, &decodeErr) && decodeErr.Diagnostics != "" {
		h.logger.Warn("Decoder output", "diagnostics", decodeErr.Diagnostics)
	}

	c.JSON(status, gin.H{"error": messageForErrorKind(kind)})
}

// StatusForErrorKind maps a pipeline error kind to an HTTP status code
func StatusForErrorKind(kind string) int {
	switch kind {
	case pipeline.KindInput:
		return http.StatusBadRequest
	case pipeline.KindDecode:
		return http.StatusUnprocessableEntity
	case pipeline.KindTransport, pipeline.KindService:
		return http.StatusBadGateway
	case pipeline.KindCancelled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func messageForErrorKind(kind string) string {
	switch kind {
	case pipeline.KindInput:
		return "Uploaded file could not be read"
	case pipeline.KindDecode:
		return "Failed to extract frames from video"
	case pipeline.KindTransport:
		return "Classification service is unavailable"
	case pipeline.KindService:
		return "Classification service returned an error"
	case pipeline.KindCancelled:
		return "Request was cancelled"
	default:
		return "Failed to process upload"
	}
}

func isTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
