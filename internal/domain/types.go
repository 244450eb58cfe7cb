package domain

import "time"

// JobStatus tracks the lifecycle of a single stitch submission.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status ends a job.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	EnginePath   string `json:"enginePath" toml:"engine_path"`
	GalleryDir   string `json:"galleryDir" toml:"gallery_dir"`
	CacheDir     string `json:"cacheDir" toml:"cache_dir"`
	LogLevel     string `json:"logLevel" toml:"log_level"`
	EventHistory int    `json:"eventHistory" toml:"event_history"`
}

// Job is the flat snapshot of the current job pushed to presentation layers.
type Job struct {
	ID         string    `json:"id"`
	Generation uint64    `json:"generation"`
	Status     JobStatus `json:"status"`
	OutputPath string    `json:"outputPath,omitempty"`
	MimeType   string    `json:"mimeType,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ExportResult names an output saved to the gallery and how to open it.
type ExportResult struct {
	DisplayName string `json:"displayName"`
	Reference   string `json:"reference"`
}

// GalleryItem is one saved output recorded in the gallery catalog.
type GalleryItem struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Path        string    `json:"path"`
	MimeType    string    `json:"mimeType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}
