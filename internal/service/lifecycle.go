package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/mansoorceksport/imgcrop/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "lifecycle"
	pngExt     = ".png"
	pngMime    = "image/png"
)

// LifecycleDeps holds the collaborators of LifecycleService
type LifecycleDeps struct {
	Paths     *PathResolver
	Files     domain.FileStore
	Codec     domain.ImageCodec
	Namer     Namer
	Validator *UploadValidator
	Mirror    domain.FileMirror // optional
	Logger    *log.Logger       // optional

	// MaxImageBytes caps decoded base64 payloads; 0 means no cap
	MaxImageBytes int64
}

// LifecycleService implements domain.LifecycleService:
// upload → crop → save, plus the opaque and base64 uploads.
type LifecycleService struct {
	paths     *PathResolver
	files     domain.FileStore
	codec     domain.ImageCodec
	namer     Namer
	validator *UploadValidator
	mirror    domain.FileMirror
	logger    *log.Logger
	tracer    trace.Tracer
	written   metric.Int64Counter
	maxBytes  int64
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(deps LifecycleDeps) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	namer := deps.Namer
	if namer == nil {
		namer = NewUniqueNamer()
	}
	validator := deps.Validator
	if validator == nil {
		validator = NewUploadValidator("")
	}

	written, err := otel.Meter("fileserver").Int64Counter("fileserver.files.written",
		metric.WithDescription("Files written by the image lifecycle"),
	)
	if err != nil {
		written = noop.Int64Counter{}
	}

	return &LifecycleService{
		paths:     deps.Paths,
		files:     deps.Files,
		codec:     deps.Codec,
		namer:     namer,
		validator: validator,
		mirror:    deps.Mirror,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		written:   written,
		maxBytes:  deps.MaxImageBytes,
	}
}

// Upload decodes an uploaded image and stores it as a temp PNG
func (s *LifecycleService) Upload(ctx context.Context, host string, data []byte, mimeType string) (file *domain.StoredFile, err error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Upload",
		trace.WithAttributes(
			attribute.String("upload.mime_type", mimeType),
			attribute.Int("upload.size", len(data)),
		),
	)
	defer func() { endSpan(span, err) }()

	if err := s.files.Ensure(s.paths.TempDir()); err != nil {
		return nil, err
	}
	if err := s.validator.Accept(mimeType); err != nil {
		return nil, err
	}

	return s.reencode(ctx, host, data, s.paths.TempDir(), domain.KindTemp, "", nil)
}

// Crop cuts a rectangle out of a stored image into a new temp PNG.
// The rectangle is not checked against the source bounds; the codec clamps it.
func (s *LifecycleService) Crop(ctx context.Context, host string, req domain.CropRequest) (file *domain.StoredFile, err error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Crop",
		trace.WithAttributes(
			attribute.String("crop.source", req.SourceURL),
			attribute.Int("crop.width", req.Width),
			attribute.Int("crop.height", req.Height),
			attribute.Int("crop.x", req.X),
			attribute.Int("crop.y", req.Y),
		),
	)
	defer func() { endSpan(span, err) }()

	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("%w: crop size %dx%d must be positive", domain.ErrValidation, req.Width, req.Height)
	}

	source, err := s.resolveSource(req.SourceURL, host)
	if err != nil {
		return nil, err
	}
	data, err := s.files.Read(source)
	if err != nil {
		return nil, err
	}
	if err := s.files.Ensure(s.paths.TempDir()); err != nil {
		return nil, err
	}

	crop := func(img image.Image) (image.Image, error) {
		return s.codec.Crop(img, req.Width, req.Height, req.X, req.Y)
	}
	return s.reencode(ctx, host, data, s.paths.TempDir(), domain.KindTemp, "", crop)
}

// Save re-encodes a temp (or already permanent) image into contexts/{context}.
// The source file is left in place.
func (s *LifecycleService) Save(ctx context.Context, host string, req domain.SaveRequest) (file *domain.StoredFile, err error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Save",
		trace.WithAttributes(
			attribute.String("save.source", req.TempURL),
			attribute.String("save.context", req.Context),
		),
	)
	defer func() { endSpan(span, err) }()

	if err := ValidateContext(req.Context); err != nil {
		return nil, err
	}
	contextName := req.Context
	if contextName == "" {
		contextName = domain.DefaultContext
	}

	source, err := s.resolveSource(req.TempURL, host)
	if err != nil {
		return nil, err
	}
	data, err := s.files.Read(source)
	if err != nil {
		return nil, err
	}

	dir := s.paths.ContextDir(contextName)
	if err := s.files.Ensure(dir); err != nil {
		return nil, err
	}

	return s.reencode(ctx, host, data, dir, domain.KindPermanent, contextName, nil)
}

// UploadOpaqueFile stores any file as {opaque}/{id}{ext} without inspecting it
func (s *LifecycleService) UploadOpaqueFile(ctx context.Context, filename string, data []byte) (file *domain.StoredFile, err error) {
	_, span := s.tracer.Start(ctx, "lifecycle.UploadOpaqueFile",
		trace.WithAttributes(
			attribute.String("upload.filename", filename),
			attribute.Int("upload.size", len(data)),
		),
	)
	defer func() { endSpan(span, err) }()

	dir := s.paths.OpaqueDir()
	if err := s.files.Ensure(dir); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == "." {
		ext = mimetype.Detect(data).Extension()
	}

	name := s.namer.Next() + ext
	path := filepath.Join(dir, name)
	if err := s.files.Write(path, data); err != nil {
		return nil, err
	}
	s.written.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(domain.KindOpaque))))

	return &domain.StoredFile{
		Path: path,
		Name: name,
		Kind: domain.KindOpaque,
	}, nil
}

// UploadBase64Image writes a base64 image payload verbatim under the default context
func (s *LifecycleService) UploadBase64Image(ctx context.Context, host string, payload string) (file *domain.StoredFile, err error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.UploadBase64Image",
		trace.WithAttributes(attribute.Int("upload.payload_size", len(payload))),
	)
	defer func() { endSpan(span, err) }()

	data, err := DecodeDataURI(payload)
	if err != nil {
		return nil, err
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: image of %d bytes exceeds maximum of %d bytes", domain.ErrValidation, len(data), s.maxBytes)
	}
	width, height, _, err := s.codec.Inspect(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	dir := s.paths.ContextDir(domain.DefaultContext)
	if err := s.files.Ensure(dir); err != nil {
		return nil, err
	}

	detected := mimetype.Detect(data)
	ext := detected.Extension()
	if ext == "" {
		ext = pngExt
	}

	name := s.namer.Next() + ext
	path := filepath.Join(dir, name)
	if err := s.files.Write(path, data); err != nil {
		return nil, err
	}

	return s.finishPermanent(ctx, host, path, data, detected.String(), domain.DefaultContext, width, height)
}

// reencode decodes data, applies transform if any, and writes a PNG with a
// fresh name into dir. Encoding completes in memory before anything is written.
func (s *LifecycleService) reencode(
	ctx context.Context,
	host string,
	data []byte,
	dir string,
	kind domain.FileKind,
	contextName string,
	transform func(image.Image) (image.Image, error),
) (*domain.StoredFile, error) {
	img, err := s.codec.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if transform != nil {
		if img, err = transform(img); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := s.codec.EncodePNG(&buf, img); err != nil {
		return nil, err
	}

	name := s.namer.Next() + pngExt
	path := filepath.Join(dir, name)
	if err := s.files.Write(path, buf.Bytes()); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if kind == domain.KindPermanent {
		return s.finishPermanent(ctx, host, path, buf.Bytes(), pngMime, contextName, bounds.Dx(), bounds.Dy())
	}

	url, err := s.paths.PathToURL(path, host)
	if err != nil {
		return nil, err
	}
	s.written.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))

	return &domain.StoredFile{
		URL:    url,
		Path:   path,
		Name:   name,
		Kind:   kind,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// finishPermanent builds the result for a promoted file and mirrors it.
// A mirror failure is logged; the local file stays authoritative.
func (s *LifecycleService) finishPermanent(ctx context.Context, host, path string, data []byte, contentType, contextName string, width, height int) (*domain.StoredFile, error) {
	url, err := s.paths.PathToURL(path, host)
	if err != nil {
		return nil, err
	}
	s.written.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(domain.KindPermanent))))

	if s.mirror != nil {
		key, err := s.paths.Relative(path)
		if err == nil {
			_, err = s.mirror.Upload(ctx, data, key, contentType)
		}
		if err != nil {
			s.logger.Warn("failed to mirror permanent file", "path", path, "err", err)
		}
	}

	return &domain.StoredFile{
		URL:     url,
		Path:    path,
		Name:    filepath.Base(path),
		Kind:    domain.KindPermanent,
		Context: contextName,
		Width:   width,
		Height:  height,
	}, nil
}

// resolveSource maps a client URL to an existing file under the temp or contexts root
func (s *LifecycleService) resolveSource(rawURL, host string) (string, error) {
	path, err := s.paths.URLToPath(rawURL, host)
	if err != nil {
		return "", err
	}
	if !s.paths.IsKnown(path) {
		return "", fmt.Errorf("%w: %q is not under a storage root", domain.ErrInvalidPath, rawURL)
	}
	if !s.files.Exists(path) {
		return "", fmt.Errorf("%w: %q does not exist", domain.ErrInvalidPath, rawURL)
	}
	return path, nil
}

// DecodeDataURI decodes "data:<mime>;base64,<payload>" or a bare base64 string.
// Standard and URL alphabets are accepted, with or without padding.
func DecodeDataURI(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if len(payload) >= len("data:") && strings.EqualFold(payload[:len("data:")], "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: data URI has no payload", domain.ErrDecode)
		}
		if !strings.HasSuffix(strings.ToLower(payload[len("data:"):comma]), ";base64") {
			return nil, fmt.Errorf("%w: data URI is not base64 encoded", domain.ErrDecode)
		}
		payload = payload[comma+1:]
	}

	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrDecode)
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(payload)
		if err != nil {
			lastErr = err
			continue
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: payload decodes to zero bytes", domain.ErrDecode)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrDecode, lastErr)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
