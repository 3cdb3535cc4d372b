package domain

import (
	"context"
	"image"
	"io"
)

// FileKind tells temp artifacts apart from promoted ones
type FileKind string

const (
	KindTemp      FileKind = "temp"
	KindPermanent FileKind = "permanent"
	KindOpaque    FileKind = "opaque"
)

// DefaultContext is used when a save request names no context
const DefaultContext = "default"

// StoredFile is a file written by the lifecycle service.
// Identity is Path; URL is the host-prefixed view of it.
type StoredFile struct {
	URL     string   `json:"url"`
	Path    string   `json:"-"`
	Name    string   `json:"name"`
	Kind    FileKind `json:"kind"`
	Context string   `json:"context,omitempty"`
	Width   int      `json:"width,omitempty"`
	Height  int      `json:"height,omitempty"`
}

// CropRequest describes a crop of a previously stored image
type CropRequest struct {
	SourceURL string `json:"url" form:"url"`
	Width     int    `json:"width" form:"width"`
	Height    int    `json:"height" form:"height"`
	X         int    `json:"x" form:"x"`
	Y         int    `json:"y" form:"y"`
}

// SaveRequest promotes a temp image into a context directory
type SaveRequest struct {
	TempURL string `json:"temp_path" form:"temp_path"`
	Context string `json:"context" form:"context"`
}

// FileStore is the filesystem the lifecycle service writes to
type FileStore interface {
	// Ensure creates dir and any missing parents; existing dirs are a no-op
	Ensure(dir string) error
	Write(path string, data []byte) error
	Read(path string) ([]byte, error)
	Exists(path string) bool
}

// FileMirror keeps an off-host copy of permanent files
type FileMirror interface {
	// Upload saves a file and returns its access URL
	Upload(ctx context.Context, file []byte, key string, contentType string) (string, error)
}

// ImageCodec is the pixel-level collaborator
type ImageCodec interface {
	Decode(r io.Reader) (image.Image, error)
	Crop(img image.Image, width, height, x, y int) (image.Image, error)
	EncodePNG(w io.Writer, img image.Image) error
	Inspect(data []byte) (width, height int, format string, err error)
}

// LifecycleService is the upload → crop → save workflow
type LifecycleService interface {
	Upload(ctx context.Context, host string, data []byte, mimeType string) (*StoredFile, error)
	Crop(ctx context.Context, host string, req CropRequest) (*StoredFile, error)
	Save(ctx context.Context, host string, req SaveRequest) (*StoredFile, error)
	UploadOpaqueFile(ctx context.Context, filename string, data []byte) (*StoredFile, error)
	UploadBase64Image(ctx context.Context, host string, payload string) (*StoredFile, error)
}
