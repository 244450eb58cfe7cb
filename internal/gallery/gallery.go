// Package gallery is the user-visible destination for exported images.
//
// Each save reserves a unique name in the gallery directory, streams into a
// pending file next to it and atomically replaces the reservation on commit.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"image-stitcher/internal/config"
	"image-stitcher/internal/domain"
)

// maxNameAttempts bounds the collision suffix search.
const maxNameAttempts = 1000

// Sink receives one asset. Exactly one of Commit or Abort must be called.
type Sink interface {
	io.Writer
	Name() string
	Commit(ctx context.Context) (reference string, err error)
	Abort() error
}

// DirGallery stores assets in a directory and records them in a catalog.
type DirGallery struct {
	dir     string
	catalog *Catalog
	logger  zerolog.Logger
}

// NewDirGallery creates a gallery rooted at dir. catalog may be nil.
func NewDirGallery(dir string, catalog *Catalog, logger zerolog.Logger) *DirGallery {
	return &DirGallery{dir: dir, catalog: catalog, logger: logger}
}

// Dir returns the gallery directory.
func (g *DirGallery) Dir() string {
	return g.dir
}

// Create reserves a collision-free name derived from name and returns a sink
// writing to it.
func (g *DirGallery) Create(ctx context.Context, name, mimeType string) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid asset name %q", name)
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create gallery directory: %w", err)
	}

	path, err := reserve(g.dir, name)
	if err != nil {
		return nil, err
	}
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("create pending gallery file: %w", err)
	}
	return &fileSink{
		gallery:  g,
		pending:  pending,
		path:     path,
		mimeType: mimeType,
	}, nil
}

// reserve creates an empty placeholder at the first free name: name, then
// base_1.ext, base_2.ext and so on.
func reserve(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = base + "_" + strconv.Itoa(i) + ext
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if err := f.Close(); err != nil {
				_ = os.Remove(path)
				return "", fmt.Errorf("reserve %s: %w", candidate, err)
			}
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("reserve %s: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", name, maxNameAttempts)
}

// List returns saved assets, newest first. Without a catalog the directory is
// scanned for known image extensions.
func (g *DirGallery) List(ctx context.Context) ([]domain.GalleryItem, error) {
	if g.catalog != nil {
		return g.catalog.List(ctx)
	}
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read gallery directory: %w", err)
	}

	var items []domain.GalleryItem
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		mimeType, ok := config.MimeTypeForExtension(filepath.Ext(entry.Name()))
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		items = append(items, domain.GalleryItem{
			DisplayName: entry.Name(),
			Path:        filepath.Join(g.dir, entry.Name()),
			MimeType:    mimeType,
			SizeBytes:   info.Size(),
			CreatedAt:   info.ModTime().UTC(),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Lookup finds a saved asset by display name.
func (g *DirGallery) Lookup(ctx context.Context, displayName string) (domain.GalleryItem, error) {
	if g.catalog != nil {
		return g.catalog.FindByName(ctx, displayName)
	}
	items, err := g.List(ctx)
	if err != nil {
		return domain.GalleryItem{}, err
	}
	for _, item := range items {
		if item.DisplayName == displayName {
			return item, nil
		}
	}
	return domain.GalleryItem{}, fmt.Errorf("%w: %s", ErrNotFound, displayName)
}

// Delete removes a saved asset and its catalog entry.
func (g *DirGallery) Delete(ctx context.Context, displayName string) (domain.GalleryItem, error) {
	item, err := g.Lookup(ctx, displayName)
	if err != nil {
		return domain.GalleryItem{}, err
	}
	if err := os.Remove(item.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.GalleryItem{}, fmt.Errorf("remove %s: %w", item.Path, err)
	}
	if g.catalog != nil {
		if err := g.catalog.Remove(ctx, item.Path); err != nil {
			return domain.GalleryItem{}, fmt.Errorf("remove catalog entry: %w", err)
		}
	}
	g.logger.Info().Str("name", item.DisplayName).Msg("gallery item deleted")
	return item, nil
}

// Reference returns the file:// URI that opens path.
func Reference(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

type fileSink struct {
	gallery  *DirGallery
	pending  *renameio.PendingFile
	path     string
	mimeType string
	done     bool
}

func (s *fileSink) Write(p []byte) (int, error) {
	return s.pending.Write(p)
}

func (s *fileSink) Name() string {
	return filepath.Base(s.path)
}

// Commit makes the asset durable and visible, then records it.
func (s *fileSink) Commit(ctx context.Context) (string, error) {
	if s.done {
		return "", errors.New("gallery sink already finished")
	}
	s.done = true
	if err := s.pending.CloseAtomicallyReplace(); err != nil {
		_ = s.pending.Cleanup()
		_ = os.Remove(s.path)
		return "", fmt.Errorf("atomically replace gallery file: %w", err)
	}

	if s.gallery.catalog != nil {
		item := domain.GalleryItem{
			DisplayName: s.Name(),
			Path:        s.path,
			MimeType:    s.mimeType,
			CreatedAt:   time.Now().UTC(),
		}
		if info, err := os.Stat(s.path); err == nil {
			item.SizeBytes = info.Size()
		}
		if _, err := s.gallery.catalog.Insert(ctx, item); err != nil {
			s.gallery.logger.Warn().Err(err).Str("path", s.path).Msg("record gallery item")
		}
	}
	return Reference(s.path), nil
}

// Abort discards the pending data and releases the reserved name.
func (s *fileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	cleanupErr := s.pending.Cleanup()
	removeErr := os.Remove(s.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(cleanupErr, removeErr)
}
