package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mansoorceksport/imgcrop/internal/config"
	"github.com/mansoorceksport/imgcrop/internal/domain"
)

// PathResolver converts between public URLs and filesystem paths.
// It holds only the configured roots; every method is a pure function of its
// arguments and those roots.
type PathResolver struct {
	webRoot     string
	tempDir     string
	contextsDir string
	opaqueDir   string
}

// NewPathResolver builds absolute roots from the storage configuration
func NewPathResolver(cfg config.StorageConfig) *PathResolver {
	webRoot := cfg.WebRoot
	if abs, err := filepath.Abs(webRoot); err == nil {
		webRoot = abs
	}
	webRoot = filepath.Clean(webRoot)

	return &PathResolver{
		webRoot:     webRoot,
		tempDir:     filepath.Join(webRoot, cfg.TempDir),
		contextsDir: filepath.Join(webRoot, cfg.ContextsDir),
		opaqueDir:   filepath.Join(webRoot, cfg.OpaqueDir),
	}
}

func (r *PathResolver) WebRoot() string     { return r.webRoot }
func (r *PathResolver) TempDir() string     { return r.tempDir }
func (r *PathResolver) ContextsDir() string { return r.contextsDir }
func (r *PathResolver) OpaqueDir() string   { return r.opaqueDir }

// ContextDir returns {contexts}/{context}; an empty context means "default".
// Callers must run ValidateContext on client input first.
func (r *PathResolver) ContextDir(context string) string {
	if context == "" {
		context = domain.DefaultContext
	}
	return filepath.Join(r.contextsDir, context)
}

// ValidateContext rejects context names that would leave the contexts root
func ValidateContext(context string) error {
	if context == "" {
		return nil
	}
	if context == "." || context == ".." ||
		strings.ContainsAny(context, `/\`) || strings.ContainsRune(context, 0) {
		return fmt.Errorf("%w: invalid context %q", domain.ErrValidation, context)
	}
	return nil
}

// URLToPath strips host from rawURL and maps the remainder under the web root
func (r *PathResolver) URLToPath(rawURL, host string) (string, error) {
	host = normalizeHost(host)
	if host == "" || !strings.HasPrefix(rawURL, host) {
		return "", fmt.Errorf("%w: %q does not start with host %q", domain.ErrInvalidPath, rawURL, host)
	}

	rel := rawURL[len(host):]
	if !strings.HasPrefix(rel, "/") || rel == "/" {
		return "", fmt.Errorf("%w: %q has no path below host %q", domain.ErrInvalidPath, rawURL, host)
	}
	for _, segment := range strings.Split(rel, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q escapes the web root", domain.ErrInvalidPath, rawURL)
		}
	}

	if r.webRoot == string(filepath.Separator) {
		return filepath.FromSlash(rel), nil
	}
	return r.webRoot + filepath.FromSlash(rel), nil
}

// PathToURL prefixes the web-root-relative part of path with host
func (r *PathResolver) PathToURL(path, host string) (string, error) {
	rel, err := r.Relative(path)
	if err != nil {
		return "", err
	}
	return normalizeHost(host) + "/" + rel, nil
}

// Relative returns path below the web root in slash form, without a leading slash
func (r *PathResolver) Relative(path string) (string, error) {
	if !within(path, r.webRoot) {
		return "", fmt.Errorf("%w: %q is outside the web root", domain.ErrInvalidPath, path)
	}
	rel := strings.TrimPrefix(path, r.webRoot)
	return strings.TrimPrefix(filepath.ToSlash(rel), "/"), nil
}

// IsTemp reports whether path lies under the temp root
func (r *PathResolver) IsTemp(path string) bool {
	return within(path, r.tempDir)
}

// IsKnown reports whether path lies under the temp or the contexts root
func (r *PathResolver) IsKnown(path string) bool {
	return within(path, r.tempDir) || within(path, r.contextsDir)
}

func normalizeHost(host string) string {
	return strings.TrimRight(host, "/")
}

// within reports whether path is strictly below root
func within(path, root string) bool {
	if root == string(filepath.Separator) {
		return len(path) > 1 && strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator)) && len(path) > len(root)+1
}
