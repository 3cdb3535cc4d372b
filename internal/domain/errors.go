package domain

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotFound = errors.New("file not found")

	// ErrValidation covers every rejected client input (missing upload,
	// unsupported media type, bad crop geometry, bad context name).
	ErrValidation = errors.New("validation failed")

	ErrUnsupportedMediaType = fmt.Errorf("%w: unsupported media type", ErrValidation)
	ErrIllegalUpload        = fmt.Errorf("%w: illegal upload", ErrValidation)

	ErrInvalidPath     = errors.New("path does not resolve under a configured root")
	ErrCodec           = errors.New("image codec failure")
	ErrDirectoryCreate = errors.New("failed to create directory")
	ErrDecode          = errors.New("payload is not a readable image")
)

// Client facing validation messages
const (
	MsgSuccess          = "success"
	MsgError            = "error"
	MsgIllegalUpload    = "上传有误，请重新上传"
	MsgUnsupportedMedia = "文件类型不支持"
)
