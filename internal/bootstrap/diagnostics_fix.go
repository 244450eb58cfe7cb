package bootstrap

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"image-stitcher/internal/config"
	"image-stitcher/internal/domain"
)

// engineCandidates are binary names tried when the configured engine is missing.
var engineCandidates = []string{"stitchy-engine", "stitch-engine", "image-stitch"}

// InstallOrFixDiagnostic applies a remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = config.NormalizeSettings(settings)

	settingsChanged := false
	var fixErr error

	switch id {
	case domain.DiagnosticEngine:
		settings, settingsChanged, fixErr = locateEngine(settings, exec.LookPath)
	case domain.DiagnosticGalleryDir:
		settings.GalleryDir, settingsChanged, fixErr = fixDirectory(settings.GalleryDir, config.DefaultSettings().GalleryDir, "gallery")
	case domain.DiagnosticCacheDir:
		settings.CacheDir, settingsChanged, fixErr = fixDirectory(settings.CacheDir, config.DefaultSettings().CacheDir, "cache")
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.applySettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.applySettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

// locateEngine points the settings at the first known engine binary found on PATH.
func locateEngine(settings domain.Settings, lookPath func(string) (string, error)) (domain.Settings, bool, error) {
	if path, err := lookPath(settings.EnginePath); err == nil {
		if path == settings.EnginePath {
			return settings, false, nil
		}
		settings.EnginePath = path
		return settings, true, nil
	}

	for _, candidate := range engineCandidates {
		path, err := lookPath(candidate)
		if err != nil {
			continue
		}
		settings.EnginePath = path
		return settings, true, nil
	}
	return settings, false, fmt.Errorf("no stitch engine found on PATH (tried: %s, %s); install it or set its full path in settings",
		settings.EnginePath, strings.Join(engineCandidates, ", "))
}

// fixDirectory creates dir, falling back to def when dir is empty.
func fixDirectory(dir, def, label string) (string, bool, error) {
	dir = strings.TrimSpace(dir)
	changed := false
	if dir == "" {
		dir = def
		changed = true
	}

	if err := os.MkdirAll(filepath.Clean(dir), 0o755); err != nil {
		return dir, changed, fmt.Errorf("create %s directory %s: %w", label, dir, err)
	}
	return dir, changed, nil
}
