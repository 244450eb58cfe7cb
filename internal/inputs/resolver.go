package inputs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/wailsapp/mimetype"

	"image-stitcher/internal/config"
)

var (
	// ErrUnknownType is returned when a locator does not resolve to an image type.
	ErrUnknownType = errors.New("unknown content type")
	// ErrUnsupportedLocator is returned for locators that are neither paths nor file URIs.
	ErrUnsupportedLocator = errors.New("unsupported locator")
)

// FileResolver resolves local paths and file:// URIs.
type FileResolver struct {
	detect func(path string) (string, error)
	open   func(name string) (*os.File, error)
}

// NewFileResolver builds a resolver that sniffs file content for its type.
func NewFileResolver() *FileResolver {
	return &FileResolver{
		detect: detectFile,
		open:   os.Open,
	}
}

// ContentType returns the image MIME type of the locator's content.
func (r *FileResolver) ContentType(_ context.Context, locator string) (string, error) {
	path, err := LocatorPath(locator)
	if err != nil {
		return "", err
	}

	detected, err := r.detect(path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(detected, "image/") {
		return detected, nil
	}
	if byExt, ok := config.MimeTypeForExtension(filepath.Ext(path)); ok {
		return byExt, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownType, detected)
}

// Open returns a read-only handle for the locator.
func (r *FileResolver) Open(_ context.Context, locator string) (*os.File, error) {
	path, err := LocatorPath(locator)
	if err != nil {
		return nil, err
	}

	file, err := r.open(path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return file, nil
}

// LocatorPath converts a plain path or file:// URI to a filesystem path.
func LocatorPath(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", fmt.Errorf("%w: empty locator", ErrUnsupportedLocator)
	}
	if !strings.Contains(locator, "://") {
		return filepath.Clean(locator), nil
	}

	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedLocator, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: scheme %q", ErrUnsupportedLocator, u.Scheme)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("%w: remote host %q", ErrUnsupportedLocator, u.Host)
	}
	return filepath.FromSlash(u.Path), nil
}

func detectFile(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	mime := m.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime), nil
}
