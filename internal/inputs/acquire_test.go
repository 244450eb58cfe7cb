package inputs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

// fakeResolver opens real temp files and records every handle it hands out.
type fakeResolver struct {
	dir       string
	failType  map[string]error
	failOpen  map[string]error
	typeCalls []string
	opened    []*os.File
}

func (r *fakeResolver) ContentType(_ context.Context, locator string) (string, error) {
	r.typeCalls = append(r.typeCalls, locator)
	if err := r.failType[locator]; err != nil {
		return "", err
	}
	return "image/x-" + locator, nil
}

func (r *fakeResolver) Open(_ context.Context, locator string) (*os.File, error) {
	if err := r.failOpen[locator]; err != nil {
		return nil, err
	}
	path := filepath.Join(r.dir, locator)
	if err := os.WriteFile(path, []byte(locator), 0o644); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r.opened = append(r.opened, f)
	return f, nil
}

func assertAllClosed(t *testing.T, files []*os.File) {
	t.Helper()
	for _, f := range files {
		if _, err := f.Stat(); !errors.Is(err, os.ErrClosed) {
			t.Fatalf("handle %s still open (stat err = %v)", f.Name(), err)
		}
	}
}

// TestAcquirePreservesOrder checks the Nth input matches the Nth locator.
func TestAcquirePreservesOrder(t *testing.T) {
	resolver := &fakeResolver{dir: t.TempDir()}
	locators := []string{"c", "a", "b", "a"}

	opened, err := Acquire(context.Background(), resolver, locators)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer opened.Close()

	if opened.Len() != len(locators) {
		t.Fatalf("len = %d, want %d", opened.Len(), len(locators))
	}
	for i, in := range opened.Inputs() {
		if in.Locator != locators[i] {
			t.Fatalf("input %d locator = %q, want %q", i, in.Locator, locators[i])
		}
		if in.ContentType != "image/x-"+locators[i] {
			t.Fatalf("input %d type = %q", i, in.ContentType)
		}
		data := make([]byte, 1)
		if _, err := in.File.Read(data); err != nil {
			t.Fatalf("read input %d: %v", i, err)
		}
		if string(data) != locators[i] {
			t.Fatalf("input %d content = %q, want %q", i, data, locators[i])
		}
	}
	if got := opened.ContentTypes(); len(got) != len(locators) || got[0] != "image/x-c" {
		t.Fatalf("content types = %v", got)
	}
	if got := opened.Files(); len(got) != len(locators) {
		t.Fatalf("files = %d, want %d", len(got), len(locators))
	}
}

// TestAcquireOpenFailureReleasesPartialHandles checks no handle leaks.
func TestAcquireOpenFailureReleasesPartialHandles(t *testing.T) {
	resolver := &fakeResolver{
		dir:      t.TempDir(),
		failOpen: map[string]error{"third": os.ErrPermission},
	}

	opened, err := Acquire(context.Background(), resolver, []string{"first", "second", "third", "fourth"})
	if err == nil {
		opened.Close()
		t.Fatal("expected acquisition error")
	}

	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("error type = %T, want *AcquisitionError", err)
	}
	if acqErr.Index != 2 || acqErr.Op != "open" {
		t.Fatalf("error = %+v, want index 2 op open", acqErr)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("error %v does not wrap ErrPermission", err)
	}
	if len(resolver.opened) != 2 {
		t.Fatalf("opened = %d, want 2", len(resolver.opened))
	}
	assertAllClosed(t, resolver.opened)
}

// TestAcquireTypeFailureReleasesPartialHandles checks type lookup failure.
func TestAcquireTypeFailureReleasesPartialHandles(t *testing.T) {
	resolver := &fakeResolver{
		dir:      t.TempDir(),
		failType: map[string]error{"second": ErrUnknownType},
	}

	_, err := Acquire(context.Background(), resolver, []string{"first", "second", "third"})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("error = %v, want ErrUnknownType", err)
	}
	if len(resolver.opened) != 1 {
		t.Fatalf("opened = %d, want 1", len(resolver.opened))
	}
	assertAllClosed(t, resolver.opened)
	if len(resolver.typeCalls) != 2 {
		t.Fatalf("type calls = %v, want stop after failure", resolver.typeCalls)
	}
}

func TestAcquireCancelledContext(t *testing.T) {
	resolver := &fakeResolver{dir: t.TempDir()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Acquire(ctx, resolver, []string{"a"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(resolver.opened) != 0 {
		t.Fatalf("opened = %d, want 0", len(resolver.opened))
	}
}

func TestOpenedCloseIsIdempotent(t *testing.T) {
	resolver := &fakeResolver{dir: t.TempDir()}
	opened, err := Acquire(context.Background(), resolver, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := opened.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := opened.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	assertAllClosed(t, resolver.opened)
}

func TestAcquireWithFileResolver(t *testing.T) {
	dir := t.TempDir()
	imageA := filepath.Join(dir, "a.jpg")
	imageB := filepath.Join(dir, "b.png")
	mustWrite(t, imageA, jpegHeader)
	mustWrite(t, imageB, pngHeader)

	opened, err := Acquire(context.Background(), NewFileResolver(), []string{imageA, "file://" + imageB})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer opened.Close()

	types := opened.ContentTypes()
	if types[0] != "image/jpeg" || types[1] != "image/png" {
		t.Fatalf("content types = %v, want [image/jpeg image/png]", types)
	}
}

// TestAcquireMissingFile checks the inaccessible file scenario.
func TestAcquireMissingFile(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.png")
	mustWrite(t, present, pngHeader)

	_, err := Acquire(context.Background(), NewFileResolver(), []string{present, filepath.Join(dir, "missing.png")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want ErrNotExist", err)
	}
}

func TestFileResolverRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	mustWrite(t, path, []byte("plain text, not an image"))

	_, err := NewFileResolver().ContentType(context.Background(), path)
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("error = %v, want ErrUnknownType", err)
	}
}

func TestFileResolverRejectsDirectory(t *testing.T) {
	if _, err := NewFileResolver().Open(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected directory error")
	}
}

func TestLocatorPath(t *testing.T) {
	cases := map[string]string{
		"/tmp/a.png":                 "/tmp/a.png",
		"file:///tmp/b%20c.png":      "/tmp/b c.png",
		"file://localhost/tmp/d.png": "/tmp/d.png",
		"/tmp/../tmp/e.png":          "/tmp/e.png",
	}
	for in, want := range cases {
		got, err := LocatorPath(in)
		if err != nil {
			t.Fatalf("LocatorPath(%q) error = %v", in, err)
		}
		if got != filepath.FromSlash(want) {
			t.Fatalf("LocatorPath(%q) = %q, want %q", in, got, want)
		}
	}

	for _, in := range []string{"", "content://media/external/1", "file://remote/share/a.png"} {
		if _, err := LocatorPath(in); !errors.Is(err, ErrUnsupportedLocator) {
			t.Fatalf("LocatorPath(%q) error = %v, want ErrUnsupportedLocator", in, err)
		}
	}
}

func TestAcquisitionErrorMessage(t *testing.T) {
	err := &AcquisitionError{Index: 0, Locator: "x.png", Op: "open", Err: fmt.Errorf("boom")}
	if got := err.Error(); got != "acquire input 1 (x.png): open: boom" {
		t.Fatalf("Error() = %q", got)
	}
}

func mustWrite(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
