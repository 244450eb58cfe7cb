package diagnostics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"image-stitcher/internal/domain"
)

// Checker validates the stitch engine and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        time.Now,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkEngine(settings.EnginePath),
		c.checkWritableDir(domain.DiagnosticGalleryDir, "Gallery directory", settings.GalleryDir),
		c.checkWritableDir(domain.DiagnosticCacheDir, "Cache directory", settings.CacheDir),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkEngine verifies the stitch engine binary can be launched. Bare names
// are resolved on PATH; anything with a separator must exist as given.
func (c *Checker) checkEngine(enginePath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   domain.DiagnosticEngine,
		Name: "Stitch engine",
	}

	enginePath = strings.TrimSpace(enginePath)
	if enginePath == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Engine path is empty."
		item.Hint = "Set the stitch engine binary in settings."
		return item
	}

	if !strings.ContainsRune(enginePath, filepath.Separator) {
		path, err := c.lookPath(enginePath)
		if err != nil {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Engine not found in PATH: %s", enginePath)
			item.Hint = "Install the stitch engine and ensure the binary is available on PATH, or set its full path in settings."
			return item
		}
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Found at %s", path)
		return item
	}

	info, err := c.stat(enginePath)
	switch {
	case err != nil:
		item.Status = domain.DiagnosticStatusFail
		if IsNotExist(err) {
			item.Message = fmt.Sprintf("Engine binary does not exist: %s", enginePath)
		} else {
			item.Message = fmt.Sprintf("Cannot access engine binary: %s", enginePath)
		}
		item.Hint = "Point the engine path at an installed stitch engine binary."
	case info.IsDir():
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Engine path is a directory: %s", enginePath)
		item.Hint = "Point the engine path at the binary itself."
	case info.Mode().Perm()&0o111 == 0:
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Engine binary is not executable: %s", enginePath)
		item.Hint = "Mark the binary executable (chmod +x)."
	default:
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Engine binary: %s", enginePath)
	}
	return item
}

// checkWritableDir validates directory existence and write access. A missing
// directory is reported as fixable.
func (c *Checker) checkWritableDir(id, name, dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: id, Name: name}
	label := strings.ToLower(name)

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = name + " is empty."
		item.Hint = "Set a " + label + " in settings."
		return item
	}

	info, err := c.stat(dir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if IsNotExist(err) {
			item.Message = fmt.Sprintf("%s does not exist: %s", name, dir)
			item.Hint = "Create it from the diagnostics panel or choose another location."
			item.Fixable = true
		} else {
			item.Message = fmt.Sprintf("Cannot access %s: %s", label, dir)
			item.Hint = "Adjust filesystem permissions or choose another location."
		}
		return item
	}
	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s is not a directory: %s", name, dir)
		item.Hint = "Choose a directory, not a file."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("%s is not writable: %s", name, dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		createTemp: createTemp,
		remove:     remove,
		now:        time.Now,
	}
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
