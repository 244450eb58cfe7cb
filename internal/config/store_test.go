package config

import (
	"os"
	"path/filepath"
	"testing"

	"image-stitcher/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.EnginePath != "stitchy-engine" {
		t.Fatalf("engine path = %q, want stitchy-engine", cfg.EnginePath)
	}
	if cfg.GalleryDir == "" {
		t.Fatal("expected non-empty gallery dir")
	}
	if cfg.CacheDir == "" {
		t.Fatal("expected non-empty cache dir")
	}
	if cfg.EventHistory <= 0 {
		t.Fatalf("event history = %d, want positive", cfg.EventHistory)
	}
}

// TestTOMLStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestTOMLStoreLoadMissingReturnsDefaults(t *testing.T) {
	store := NewTOMLStore(filepath.Join(t.TempDir(), "missing", SettingsFileName))

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
}

// TestTOMLStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestTOMLStoreSaveAndLoadRoundTrip(t *testing.T) {
	store := NewTOMLStore(filepath.Join(t.TempDir(), "cfg", SettingsFileName))
	want := domain.Settings{
		EnginePath:   "/opt/stitchy/bin/stitchy",
		GalleryDir:   "/srv/gallery",
		CacheDir:     "/tmp/stitchy",
		LogLevel:     "debug",
		EventHistory: 50,
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestTOMLStoreLoadPartialFillsDefaults keeps unspecified keys at defaults.
func TestTOMLStoreLoadPartialFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFileName)
	if err := os.WriteFile(path, []byte("gallery_dir = \"/data/out\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewTOMLStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.GalleryDir != "/data/out" {
		t.Fatalf("gallery dir = %q, want /data/out", got.GalleryDir)
	}
	if got.EnginePath != DefaultSettings().EnginePath {
		t.Fatalf("engine path = %q, want default", got.EnginePath)
	}
}

// TestTOMLStoreLoadInvalidTOML checks parse error handling.
func TestTOMLStoreLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFileName)
	if err := os.WriteFile(path, []byte("gallery_dir = [not-toml"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := NewTOMLStore(path).Load(); err == nil {
		t.Fatal("expected toml parse error")
	}
}

func TestNormalizeSettingsTrimsAndDefaults(t *testing.T) {
	got := NormalizeSettings(domain.Settings{
		EnginePath: "  /usr/bin/stitchy ",
		LogLevel:   " DEBUG ",
	})
	if got.EnginePath != "/usr/bin/stitchy" {
		t.Fatalf("engine path = %q", got.EnginePath)
	}
	if got.LogLevel != "debug" {
		t.Fatalf("log level = %q, want debug", got.LogLevel)
	}
	if got.GalleryDir != DefaultSettings().GalleryDir {
		t.Fatalf("gallery dir = %q, want default", got.GalleryDir)
	}
}
