package service

import (
	"fmt"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/mansoorceksport/imgcrop/internal/config"
	"github.com/mansoorceksport/imgcrop/internal/domain"
)

var supportedImageTypes = map[string]bool{
	"image/gif":  true,
	"image/jpeg": true,
	"image/png":  true,
	"image/bmp":  true,
}

// UploadValidator checks uploads before they reach the codec
type UploadValidator struct {
	multiFilePolicy string
}

// NewUploadValidator creates a validator; policy is config.MultiFileLast or config.MultiFileReject
func NewUploadValidator(multiFilePolicy string) *UploadValidator {
	if multiFilePolicy == "" {
		multiFilePolicy = config.MultiFileLast
	}
	return &UploadValidator{multiFilePolicy: multiFilePolicy}
}

// Accept checks a declared media type against the image allow-list.
// Parameters and case are ignored.
func (v *UploadValidator) Accept(declaredMimeType string) error {
	mediaType, _, err := mime.ParseMediaType(declaredMimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(declaredMimeType))
	}
	if !supportedImageTypes[mediaType] {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedMediaType, declaredMimeType)
	}
	return nil
}

// ExtractSingle picks the one file an upload request is allowed to carry.
// With several parts the configured policy decides: "last" takes the final
// part received, "reject" refuses the request.
func (v *UploadValidator) ExtractSingle(files []*multipart.FileHeader) (*multipart.FileHeader, error) {
	switch {
	case len(files) == 0:
		return nil, fmt.Errorf("%w: no file part", domain.ErrIllegalUpload)
	case len(files) == 1:
		return files[0], nil
	case v.multiFilePolicy == config.MultiFileReject:
		return nil, fmt.Errorf("%w: %d file parts, expected one", domain.ErrIllegalUpload, len(files))
	default:
		return files[len(files)-1], nil
	}
}
