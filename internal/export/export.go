// Package export copies a completed stitch into durable user storage.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"image-stitcher/internal/config"
	"image-stitcher/internal/domain"
	"image-stitcher/internal/gallery"
	"image-stitcher/internal/jobs"
	"image-stitcher/internal/logging"
)

// ChunkSize is the copy buffer size.
const ChunkSize = 32 * 1024

// NamePrefix starts every exported display name.
const NamePrefix = "stitch_"

const nameLayout = "20060102_150405"

var (
	ErrNotReady      = errors.New("no completed stitch to export")
	ErrSourceMissing = errors.New("stitch output is missing")
	ErrDestination   = errors.New("cannot open output file")
	ErrCopy          = errors.New("copy to gallery failed")
)

// Error is an export failure. Kind is one of the sentinel errors above.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Destination creates sinks for saved assets.
type Destination interface {
	Create(ctx context.Context, name, mimeType string) (gallery.Sink, error)
}

// Exporter copies completed outputs into a Destination.
type Exporter struct {
	dest   Destination
	logger zerolog.Logger
	now    func() time.Time
	open   func(name string) (*os.File, error)
}

// NewExporter creates an exporter writing into dest.
func NewExporter(dest Destination, logger zerolog.Logger) *Exporter {
	return &Exporter{
		dest:   dest,
		logger: logger,
		now:    time.Now,
		open:   os.Open,
	}
}

// NewExporterForTests creates an exporter with a fixed clock.
func NewExporterForTests(dest Destination, now func() time.Time) *Exporter {
	e := NewExporter(dest, zerolog.Nop())
	if now != nil {
		e.now = now
	}
	return e
}

// DisplayName builds the name for an export taken at ts.
func DisplayName(ts time.Time, ext string) string {
	return NamePrefix + ts.Format(nameLayout) + "." + ext
}

// Export saves the output of a Completed state. Any other state fails with
// ErrNotReady before the filesystem is touched.
func (e *Exporter) Export(ctx context.Context, state jobs.State) (domain.ExportResult, error) {
	done, ok := state.(jobs.Completed)
	if !ok {
		return domain.ExportResult{}, &Error{Kind: ErrNotReady}
	}
	logger := logging.FromContext(logging.ContextWithJobID(ctx, done.JobID), e.logger)

	ext := strings.TrimPrefix(filepath.Ext(done.OutputPath), ".")
	if ext == "" {
		return domain.ExportResult{}, &Error{Kind: ErrSourceMissing, Path: done.OutputPath, Err: errors.New("output has no extension")}
	}
	mimeType := done.MimeType
	if mimeType == "" {
		if guessed, ok := config.MimeTypeForExtension(ext); ok {
			mimeType = guessed
		}
	}

	src, err := e.open(done.OutputPath)
	if err != nil {
		return domain.ExportResult{}, &Error{Kind: ErrSourceMissing, Path: done.OutputPath, Err: err}
	}
	defer src.Close()

	sink, err := e.dest.Create(ctx, DisplayName(e.now(), ext), mimeType)
	if err != nil {
		return domain.ExportResult{}, &Error{Kind: ErrDestination, Err: err}
	}

	if err := copyChunks(ctx, sink, src); err != nil {
		if abortErr := sink.Abort(); abortErr != nil {
			logger.Warn().Err(abortErr).Str("name", sink.Name()).Msg("abort gallery write")
		}
		return domain.ExportResult{}, &Error{Kind: ErrCopy, Path: done.OutputPath, Err: err}
	}

	ref, err := sink.Commit(ctx)
	if err != nil {
		return domain.ExportResult{}, &Error{Kind: ErrCopy, Path: done.OutputPath, Err: err}
	}

	logger.Info().Str("name", sink.Name()).Str("reference", ref).Msg("stitch exported")
	return domain.ExportResult{DisplayName: sink.Name(), Reference: ref}, nil
}

// copyChunks streams src into dst ChunkSize bytes at a time, checking ctx
// between chunks.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write chunk: %w", err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read chunk: %w", readErr)
		}
	}
}
