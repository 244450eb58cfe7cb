package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"image-stitcher/internal/gallery"
	"image-stitcher/internal/jobs"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local) }

// fakeDestination records created sinks without touching the filesystem.
type fakeDestination struct {
	calls    int
	err      error
	sink     *fakeSink
	lastName string
	lastMime string
}

func (d *fakeDestination) Create(ctx context.Context, name, mimeType string) (gallery.Sink, error) {
	d.calls++
	d.lastName = name
	d.lastMime = mimeType
	if d.err != nil {
		return nil, d.err
	}
	if d.sink == nil {
		d.sink = &fakeSink{}
	}
	d.sink.name = name
	return d.sink, nil
}

type fakeSink struct {
	name      string
	buf       bytes.Buffer
	writes    int
	writeErr  error
	committed bool
	aborted   bool
}

func (s *fakeSink) Write(p []byte) (int, error) {
	s.writes++
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.buf.Write(p)
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Commit(context.Context) (string, error) {
	s.committed = true
	return "file:///gallery/" + s.name, nil
}

func (s *fakeSink) Abort() error {
	s.aborted = true
	return nil
}

func writeOutput(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xAB}, size), 0o644))
	return path
}

func TestExportRejectsNonCompletedStates(t *testing.T) {
	for _, state := range []jobs.State{jobs.Idle{}, jobs.Running{JobID: "j"}, jobs.Failed{JobID: "j", Message: "boom"}} {
		dest := &fakeDestination{}
		e := NewExporterForTests(dest, fixedNow)
		e.open = func(string) (*os.File, error) {
			t.Fatalf("%T: filesystem accessed", state)
			return nil, nil
		}

		_, err := e.Export(context.Background(), state)
		require.ErrorIs(t, err, ErrNotReady, "%T", state)
		require.Zero(t, dest.calls, "%T", state)
	}
}

func TestExportCopiesCompletedOutput(t *testing.T) {
	src := writeOutput(t, "stitch_preview-123.png", 3*ChunkSize+17)
	dest := &fakeDestination{}
	e := NewExporterForTests(dest, fixedNow)

	result, err := e.Export(context.Background(), jobs.Completed{JobID: "j", OutputPath: src, MimeType: "image/png"})
	require.NoError(t, err)
	require.Equal(t, "stitch_20240309_140507.png", result.DisplayName)
	require.Equal(t, "file:///gallery/stitch_20240309_140507.png", result.Reference)
	require.Equal(t, "image/png", dest.lastMime)
	require.True(t, dest.sink.committed)
	require.Equal(t, 3*ChunkSize+17, dest.sink.buf.Len())
	require.Equal(t, 4, dest.sink.writes)
}

func TestExportGuessesMimeFromExtension(t *testing.T) {
	src := writeOutput(t, "out.jpg", 10)
	dest := &fakeDestination{}
	e := NewExporterForTests(dest, fixedNow)

	_, err := e.Export(context.Background(), jobs.Completed{JobID: "j", OutputPath: src})
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", dest.lastMime)
	require.Equal(t, "stitch_20240309_140507.jpg", dest.lastName)
}

func TestExportMissingSource(t *testing.T) {
	dest := &fakeDestination{}
	e := NewExporterForTests(dest, fixedNow)

	_, err := e.Export(context.Background(), jobs.Completed{JobID: "j", OutputPath: filepath.Join(t.TempDir(), "gone.png")})
	require.ErrorIs(t, err, ErrSourceMissing)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Zero(t, dest.calls)

	_, err = e.Export(context.Background(), jobs.Completed{JobID: "j", OutputPath: "/cache/noext"})
	require.ErrorIs(t, err, ErrSourceMissing)
}

func TestExportDestinationFailure(t *testing.T) {
	src := writeOutput(t, "out.png", 10)
	dest := &fakeDestination{err: os.ErrPermission}
	e := NewExporterForTests(dest, fixedNow)

	_, err := e.Export(context.Background(), jobs.Completed{JobID: "j", OutputPath: src})
	require.ErrorIs(t, err, ErrDestination)
	require.ErrorIs(t, err, os.ErrPermission)

	var exportErr *Error
	require.True(t, errors.As(err, &exportErr))
	require.Equal(t, ErrDestination, exportErr.Kind)
}

func TestExportCopyFailureAborts(t *testing.T) {
	src := writeOutput(t, "out.png", 10)
	dest := &fakeDestination{sink: &fakeSink{writeErr: errors.New("disk full")}}
	e := NewExporterForTests(dest, fixedNow)

	_, err := e.Export(context.Background(), jobs.Completed{JobID: "j", OutputPath: src})
	require.ErrorIs(t, err, ErrCopy)
	require.True(t, dest.sink.aborted)
	require.False(t, dest.sink.committed)
}

func TestExportCanceledContextAborts(t *testing.T) {
	src := writeOutput(t, "out.png", 10)
	dest := &fakeDestination{}
	e := NewExporterForTests(dest, fixedNow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Export(ctx, jobs.Completed{JobID: "j", OutputPath: src})
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, dest.sink.aborted)
}

func TestExportIntoDirGallery(t *testing.T) {
	src := writeOutput(t, "out.webp", 100)
	galleryDir := t.TempDir()
	e := NewExporterForTests(gallery.NewDirGallery(galleryDir, nil, zerolog.Nop()), fixedNow)
	state := jobs.Completed{JobID: "j", OutputPath: src, MimeType: "image/webp"}

	first, err := e.Export(context.Background(), state)
	require.NoError(t, err)
	second, err := e.Export(context.Background(), state)
	require.NoError(t, err)

	require.Equal(t, "stitch_20240309_140507.webp", first.DisplayName)
	require.Equal(t, "stitch_20240309_140507_1.webp", second.DisplayName)
	require.Equal(t, gallery.Reference(filepath.Join(galleryDir, second.DisplayName)), second.Reference)

	data, err := os.ReadFile(filepath.Join(galleryDir, first.DisplayName))
	require.NoError(t, err)
	require.Len(t, data, 100)
}
