package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"image-stitcher/internal/config"
	"image-stitcher/internal/diagnostics"
	"image-stitcher/internal/domain"
	"image-stitcher/internal/engine"
	"image-stitcher/internal/export"
	"image-stitcher/internal/gallery"
	"image-stitcher/internal/inputs"
	"image-stitcher/internal/jobs"
	"image-stitcher/internal/logging"
	"image-stitcher/internal/stitch"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// EventName is the runtime event carrying job events to the frontend.
const EventName = "job:event"

var imageDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Images",
		Pattern:     "*.jpg;*.jpeg;*.png;*.gif;*.bmp;*.webp",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, jobs, pipeline, export and UI runtime callbacks.
type App struct {
	Settings     domain.Settings
	Store        config.Store
	OptionsStore config.OptionsStore
	Jobs         *jobs.Manager
	Pipeline     pipelineRunner
	Exporter     exporter
	Gallery      galleryBrowser
	Diagnostics  domain.DiagnosticReport
	Events       *jobs.EventBus
	assets       fs.FS
	checker      *diagnostics.Checker
	catalog      *gallery.Catalog
	components   func(domain.Settings) (pipelineRunner, exporter, galleryBrowser)
	openURL      func(string) error
	openFile     func(string) error
	logger       zerolog.Logger

	mu         sync.Mutex
	selection  Selection
	runtimeCtx context.Context
	wg         sync.WaitGroup
	watchOnce  sync.Once
}

// pipelineRunner isolates the stitch pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req stitch.Request) (stitch.Result, error)
}

type exporter interface {
	Export(ctx context.Context, state jobs.State) (domain.ExportResult, error)
}

type galleryBrowser interface {
	Dir() string
	List(ctx context.Context) ([]domain.GalleryItem, error)
	Lookup(ctx context.Context, displayName string) (domain.GalleryItem, error)
	Delete(ctx context.Context, displayName string) (domain.GalleryItem, error)
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	return NewFromConfigDir(config.DefaultConfigDir(), assets)
}

// NewFromConfigDir builds the application reading config.toml, the options
// record and the gallery catalog from configDir.
func NewFromConfigDir(configDir string, assets fs.FS) (*App, error) {
	store := config.NewTOMLStore(filepath.Join(configDir, config.SettingsFileName))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logging.Configure(logging.Config{Level: settings.LogLevel})
	logger := logging.WithComponent("app")

	catalog, err := gallery.OpenCatalog(filepath.Join(configDir, gallery.CatalogFileName))
	if err != nil {
		logger.Warn().Err(err).Msg("gallery catalog unavailable, listing from directory")
		catalog = nil
	}

	app := &App{
		Store:        store,
		OptionsStore: config.NewFileOptionsStore(configDir, logging.WithComponent("options")),
		Jobs:         jobs.NewManager(),
		assets:       assets,
		checker:      diagnostics.NewChecker(),
		catalog:      catalog,
		openURL:      browser.OpenURL,
		openFile:     browser.OpenFile,
		logger:       logger,
		Events:       jobs.NewEventBus(settings.EventHistory),
	}
	app.components = app.buildComponents
	app.applySettings(settings)
	app.watchJobs()
	return app, nil
}

// buildComponents creates the settings-dependent services.
func (a *App) buildComponents(settings domain.Settings) (pipelineRunner, exporter, galleryBrowser) {
	dir := gallery.NewDirGallery(settings.GalleryDir, a.catalog, logging.WithComponent("gallery"))
	pipeline := stitch.NewPipeline(
		inputs.NewFileResolver(),
		a.OptionsStore,
		engine.NewExecEngine(settings.EnginePath),
		settings.CacheDir,
		logging.WithComponent("stitch"),
	)
	return pipeline, export.NewExporter(dir, logging.WithComponent("export")), dir
}

// applySettings stores settings, rebuilds dependent services and reruns diagnostics.
func (a *App) applySettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.components != nil {
		a.Pipeline, a.Exporter, a.Gallery = a.components(settings)
	}
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// watchJobs forwards every job state transition as a status event.
func (a *App) watchJobs() {
	a.watchOnce.Do(func() {
		a.Jobs.Subscribe(func(job domain.Job) {
			a.publishEvent(jobs.Event{
				JobID:      job.ID,
				Generation: job.Generation,
				Type:       jobs.EventTypeStatus,
				Status:     job.Status,
				Message:    statusMessage(job),
				OutputPath: job.OutputPath,
				MimeType:   job.MimeType,
			})
		})
	})
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Stitchy",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events and dialogs.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown detaches the runtime, waits for in-flight submissions and closes the catalog.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = nil
	a.mu.Unlock()

	a.Wait()
	if err := a.catalog.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close gallery catalog")
	}
}

// Wait blocks until every submission started so far has finished.
func (a *App) Wait() {
	a.wg.Wait()
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then rewires services and refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.NormalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	a.applySettings(normalized)
	return normalized, nil
}

// GetOptions returns the stitch options the next submission will use.
func (a *App) GetOptions() config.Options {
	return config.LoadOptions(a.OptionsStore)
}

// SaveOptions validates and persists stitch options.
func (a *App) SaveOptions(opts config.Options) (config.Options, error) {
	if a.OptionsStore == nil {
		return config.Options{}, errors.New("options store is not configured")
	}
	saved, err := a.OptionsStore.Update(func(config.Options) (config.Options, error) {
		return opts, nil
	})
	if err != nil {
		return config.Options{}, fmt.Errorf("save options: %w", err)
	}
	return saved, nil
}

// ResetOptions restores and persists the default stitch options.
func (a *App) ResetOptions() (config.Options, error) {
	return a.SaveOptions(config.DefaultOptions())
}

// PickInputFiles opens a native multi-file dialog for image selection.
func (a *App) PickInputFiles() ([]string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select images to stitch",
		Filters: imageDialogFilter,
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

// AddInputs appends locators to the selection and resubmits the whole
// selection. Adding nothing leaves the current job untouched.
func (a *App) AddInputs(locators []string) (domain.Job, error) {
	before := a.selection.Len()
	if a.selection.Add(locators...) == before {
		return a.Jobs.Current(), nil
	}
	return a.StartStitch()
}

// ClearInputs empties the selection and returns the job to idle. A stitch
// still running is superseded and its output discarded.
func (a *App) ClearInputs() {
	a.selection.Clear()
	a.Jobs.Reset()
}

// Selection returns the current ordered selection.
func (a *App) Selection() []string {
	return a.selection.Snapshot()
}

// StartStitch submits the current selection and runs it asynchronously.
// A submission started while another is running supersedes it.
func (a *App) StartStitch() (domain.Job, error) {
	locators := a.selection.Snapshot()
	if len(locators) == 0 {
		return a.Jobs.Current(), stitch.ErrEmptySelection
	}

	a.mu.Lock()
	pipeline := a.Pipeline
	a.mu.Unlock()
	if pipeline == nil {
		return a.Jobs.Current(), errors.New("stitch pipeline is not configured")
	}

	if a.Jobs.IsRunning() {
		a.logger.Debug().Str("superseded", a.Jobs.Current().ID).Msg("new submission supersedes running stitch")
	}
	jobID := "job-" + uuid.NewString()
	gen := a.Jobs.Start(jobID)
	job := jobs.Snapshot(jobs.Running{JobID: jobID}, gen)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runSubmission(jobID, gen, locators, pipeline)
	}()
	return job, nil
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.Events.Since(sinceSeq)
}

// ExportOutput saves the completed stitch into the gallery. It never changes
// the job state.
func (a *App) ExportOutput() (domain.ExportResult, error) {
	a.mu.Lock()
	exp := a.Exporter
	a.mu.Unlock()
	if exp == nil {
		return domain.ExportResult{}, errors.New("exporter is not configured")
	}

	state := a.Jobs.State()
	job := jobs.Snapshot(state, 0)
	result, err := exp.Export(context.Background(), state)
	if err != nil {
		a.publishEvent(jobs.Event{
			JobID:   job.ID,
			Type:    jobs.EventTypeError,
			Message: exportMessage(err),
		})
		return domain.ExportResult{}, err
	}

	a.publishEvent(jobs.Event{
		JobID:       job.ID,
		Type:        jobs.EventTypeExport,
		Message:     "Saved to gallery",
		DisplayName: result.DisplayName,
		Reference:   result.Reference,
	})
	return result, nil
}

// OpenExported opens a saved asset reference with the system viewer.
func (a *App) OpenExported(reference string) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return errors.New("reference is empty")
	}
	if err := a.openURL(reference); err != nil {
		return fmt.Errorf("open %s: %w", reference, err)
	}
	return nil
}

// OpenGalleryFolder opens the gallery directory in the file manager.
func (a *App) OpenGalleryFolder() error {
	a.mu.Lock()
	g := a.Gallery
	a.mu.Unlock()
	if g == nil {
		return errors.New("gallery is not configured")
	}

	dir := g.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create gallery directory: %w", err)
	}
	if err := a.openFile(dir); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}

// ListGallery returns saved assets, newest first.
func (a *App) ListGallery() ([]domain.GalleryItem, error) {
	a.mu.Lock()
	g := a.Gallery
	a.mu.Unlock()
	if g == nil {
		return nil, errors.New("gallery is not configured")
	}
	return g.List(context.Background())
}

// OpenGalleryItem opens a saved asset by display name.
func (a *App) OpenGalleryItem(displayName string) (domain.GalleryItem, error) {
	a.mu.Lock()
	g := a.Gallery
	a.mu.Unlock()
	if g == nil {
		return domain.GalleryItem{}, errors.New("gallery is not configured")
	}

	item, err := g.Lookup(context.Background(), strings.TrimSpace(displayName))
	if err != nil {
		return domain.GalleryItem{}, err
	}
	return item, a.OpenExported(gallery.Reference(item.Path))
}

// DeleteGalleryItem removes a saved asset by display name.
func (a *App) DeleteGalleryItem(displayName string) (domain.GalleryItem, error) {
	a.mu.Lock()
	g := a.Gallery
	a.mu.Unlock()
	if g == nil {
		return domain.GalleryItem{}, errors.New("gallery is not configured")
	}
	return g.Delete(context.Background(), strings.TrimSpace(displayName))
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.applySettings(settings), nil
}

// runSubmission executes the pipeline and maps outcomes to job state and events.
func (a *App) runSubmission(jobID string, gen uint64, locators []string, pipeline pipelineRunner) {
	ctx := logging.ContextWithJobID(context.Background(), jobID)
	logger := logging.FromContext(ctx, a.logger)

	req := stitch.Request{
		Locators: locators,
		OnStage: func(stage stitch.Stage) {
			a.publishEvent(jobs.Event{
				JobID:      jobID,
				Generation: gen,
				Type:       jobs.EventTypeStage,
				Stage:      string(stage),
				Message:    "Running " + string(stage) + " stage",
			})
		},
		OnLog: func(log engine.CommandLog) {
			a.publishCommandLog(jobID, gen, "Engine finished", log)
		},
	}

	result, err := pipeline.Run(ctx, req)
	if err != nil {
		message := stitch.UserMessage(err)
		logger.Warn().Err(err).Uint64("generation", gen).Msg("stitch failed")
		if failErr := a.Jobs.Fail(gen, message); failErr != nil {
			logger.Debug().Err(failErr).Msg("dropping superseded failure")
			return
		}
		a.publishEvent(jobs.Event{
			JobID:      jobID,
			Generation: gen,
			Type:       jobs.EventTypeError,
			Status:     domain.JobStatusFailed,
			Message:    message,
		})

		var pipelineErr *stitch.PipelineError
		if errors.As(err, &pipelineErr) && pipelineErr.CommandLog.Command != "" {
			a.publishCommandLog(jobID, gen, "Failed command", pipelineErr.CommandLog)
		}
		return
	}

	if err := a.Jobs.Complete(gen, result.OutputPath, result.MimeType); err != nil {
		logger.Debug().Err(err).Str("output", result.OutputPath).Msg("dropping superseded result")
		if rmErr := os.Remove(result.OutputPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn().Err(rmErr).Str("output", result.OutputPath).Msg("remove superseded output")
		}
		return
	}
	logger.Info().Int("inputs", result.InputCount).Str("output", result.OutputPath).Msg("stitch completed")
	a.publishEvent(jobs.Event{
		JobID:      jobID,
		Generation: gen,
		Type:       jobs.EventTypeResult,
		Status:     domain.JobStatusCompleted,
		Message:    "Stitch ready",
		OutputPath: result.OutputPath,
		MimeType:   result.MimeType,
	})
}

func (a *App) publishCommandLog(jobID string, gen uint64, message string, log engine.CommandLog) {
	a.publishEvent(jobs.Event{
		JobID:      jobID,
		Generation: gen,
		Type:       jobs.EventTypeLog,
		Message:    message,
		Command:    log.Command,
		Args:       log.Args,
		ExitCode:   log.ExitCode,
		Stdout:     log.Stdout,
		Stderr:     log.Stderr,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.Events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, EventName, published)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func statusMessage(job domain.Job) string {
	switch job.Status {
	case domain.JobStatusRunning:
		return "Stitching"
	case domain.JobStatusCompleted:
		return "Job completed"
	case domain.JobStatusFailed:
		return job.Error
	default:
		return "Idle"
	}
}

// exportMessage maps export failures to user-facing text.
func exportMessage(err error) string {
	switch {
	case errors.Is(err, export.ErrNotReady):
		return "Nothing to export yet"
	case errors.Is(err, export.ErrSourceMissing):
		return "The stitched image is no longer available"
	case errors.Is(err, export.ErrDestination):
		return "Cannot open output file"
	default:
		return "Unable to save the stitched image"
	}
}
