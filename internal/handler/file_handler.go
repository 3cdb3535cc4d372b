package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/imgcrop/internal/domain"
	"github.com/mansoorceksport/imgcrop/internal/service"
)

// uploadField is the multipart field clients are expected to use
const uploadField = "file"

// FileHandler handles the upload → crop → save routes and the auxiliary uploads
type FileHandler struct {
	lifecycle   domain.LifecycleService
	validator   *service.UploadValidator
	publicHost  string
	maxUploadMB int64
	logger      *log.Logger
}

// NewFileHandler creates a new file handler.
// An empty publicHost means the host prefix is derived from each request.
func NewFileHandler(lifecycle domain.LifecycleService, validator *service.UploadValidator, publicHost string, maxUploadMB int64, logger *log.Logger) *FileHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &FileHandler{
		lifecycle:   lifecycle,
		validator:   validator,
		publicHost:  publicHost,
		maxUploadMB: maxUploadMB,
		logger:      logger,
	}
}

// Index handles GET /
func (h *FileHandler) Index(c *fiber.Ctx) error {
	return c.SendString("file-server")
}

// Upload handles POST /upload
func (h *FileHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := h.singleFile(c)
	if err != nil {
		return h.urlError(c, err)
	}

	data, err := h.readFile(fileHeader)
	if err != nil {
		return h.urlError(c, err)
	}

	file, err := h.lifecycle.Upload(c.UserContext(), h.host(c), data, fileHeader.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return h.urlError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(domain.URLSuccess(file.URL))
}

// Crop handles POST /crop
func (h *FileHandler) Crop(c *fiber.Ctx) error {
	var req domain.CropRequest
	if err := c.BodyParser(&req); err != nil {
		return h.urlError(c, fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err))
	}

	file, err := h.lifecycle.Crop(c.UserContext(), h.host(c), req)
	if err != nil {
		return h.urlError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(domain.URLSuccess(file.URL))
}

// Save handles POST /save
func (h *FileHandler) Save(c *fiber.Ctx) error {
	var req domain.SaveRequest
	if err := c.BodyParser(&req); err != nil {
		return h.urlError(c, fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err))
	}

	file, err := h.lifecycle.Save(c.UserContext(), h.host(c), req)
	if err != nil {
		return h.urlError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(domain.URLSuccess(file.URL))
}

// FileUpload handles POST /fileUpload
func (h *FileHandler) FileUpload(c *fiber.Ctx) error {
	fileHeader, err := h.singleFile(c)
	if err != nil {
		return h.nameError(c, err)
	}

	data, err := h.readFile(fileHeader)
	if err != nil {
		return h.nameError(c, err)
	}

	file, err := h.lifecycle.UploadOpaqueFile(c.UserContext(), fileHeader.Filename, data)
	if err != nil {
		return h.nameError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(domain.NameSuccess(file.Name))
}

// StreamUploadRequest is the body of POST /streamUploadImage
type StreamUploadRequest struct {
	Image string `json:"image" form:"image"`
}

// StreamUploadImage handles POST /streamUploadImage
func (h *FileHandler) StreamUploadImage(c *fiber.Ctx) error {
	var req StreamUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return h.nameError(c, fmt.Errorf("%w: invalid request body: %v", domain.ErrDecode, err))
	}

	file, err := h.lifecycle.UploadBase64Image(c.UserContext(), h.host(c), req.Image)
	if err != nil {
		return h.nameError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(domain.NameSuccess(file.URL))
}

// singleFile collects every file part of the request and lets the validator pick one.
// The "file" field is preferred; other fields are taken in name order.
func (h *FileHandler) singleFile(c *fiber.Ctx) (*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid multipart form: %v", domain.ErrIllegalUpload, err)
	}

	files := form.File[uploadField]
	if len(files) == 0 {
		fields := make([]string, 0, len(form.File))
		for field := range form.File {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			files = append(files, form.File[field]...)
		}
	}

	fileHeader, err := h.validator.ExtractSingle(files)
	if err != nil {
		return nil, err
	}

	maxBytes := h.maxUploadMB * 1024 * 1024
	if h.maxUploadMB > 0 && fileHeader.Size > maxBytes {
		return nil, fmt.Errorf("%w: file size exceeds maximum of %dMB", domain.ErrValidation, h.maxUploadMB)
	}

	return fileHeader, nil
}

func (h *FileHandler) readFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return data, nil
}

// host is the prefix every public URL starts with
func (h *FileHandler) host(c *fiber.Ctx) string {
	if h.publicHost != "" {
		return h.publicHost
	}
	return c.BaseURL()
}

func (h *FileHandler) urlError(c *fiber.Ctx, err error) error {
	status, message := h.classify(c, err)
	return c.Status(status).JSON(domain.URLFailure(message))
}

func (h *FileHandler) nameError(c *fiber.Ctx, err error) error {
	status, message := h.classify(c, err)
	return c.Status(status).JSON(domain.NameFailure(message))
}

// classify maps a lifecycle error to a status code and an envelope message
func (h *FileHandler) classify(c *fiber.Ctx, err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrIllegalUpload):
		return fiber.StatusBadRequest, domain.MsgIllegalUpload
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		return fiber.StatusUnsupportedMediaType, domain.MsgUnsupportedMedia
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidPath), errors.Is(err, domain.ErrDecode):
		return fiber.StatusBadRequest, domain.MsgError
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, domain.MsgError
	case errors.Is(err, domain.ErrCodec):
		return fiber.StatusUnprocessableEntity, domain.MsgError
	default:
		h.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
		return fiber.StatusInternalServerError, domain.MsgError
	}
}
