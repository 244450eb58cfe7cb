package config

import (
	"os"
	"path/filepath"
	"strings"

	"image-stitcher/internal/domain"
)

const (
	appDirName          = "stitchy"
	defaultEngineBinary = "stitchy-engine"
	defaultEventHistory = 1000
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = filepath.Join(homeDir, ".cache")
	}

	return domain.Settings{
		EnginePath:   defaultEngineBinary,
		GalleryDir:   filepath.Join(homeDir, "Pictures", "Stitchy"),
		CacheDir:     filepath.Join(cacheDir, appDirName),
		LogLevel:     "info",
		EventHistory: defaultEventHistory,
	}
}

// DefaultConfigDir returns the directory holding config.toml and the options record.
func DefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		homeDir, homeErr := os.UserHomeDir()
		if homeErr != nil {
			homeDir = "."
		}
		dir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(dir, appDirName)
}

// NormalizeSettings trims user input and fills empty fields from defaults.
func NormalizeSettings(settings domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	settings.EnginePath = strings.TrimSpace(settings.EnginePath)
	settings.GalleryDir = strings.TrimSpace(settings.GalleryDir)
	settings.CacheDir = strings.TrimSpace(settings.CacheDir)
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))

	if settings.EnginePath == "" {
		settings.EnginePath = defaults.EnginePath
	}
	if settings.GalleryDir == "" {
		settings.GalleryDir = defaults.GalleryDir
	}
	if settings.CacheDir == "" {
		settings.CacheDir = defaults.CacheDir
	}
	if settings.LogLevel == "" {
		settings.LogLevel = defaults.LogLevel
	}
	if settings.EventHistory <= 0 {
		settings.EventHistory = defaults.EventHistory
	}
	return settings
}
