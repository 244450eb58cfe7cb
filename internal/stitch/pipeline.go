// Package stitch runs one submission: it acquires the selected inputs, loads
// and encodes the options, prepares the output file and calls the engine.
package stitch

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"image-stitcher/internal/config"
	"image-stitcher/internal/engine"
	"image-stitcher/internal/inputs"
	"image-stitcher/internal/logging"
)

// Request contains the ordered locators and execution callbacks for one run.
type Request struct {
	Locators []string
	OnStage  func(stage Stage)
	OnLog    func(log engine.CommandLog)
}

// Result describes a finished stitch.
type Result struct {
	OutputPath string
	MimeType   string
	Extension  string
	InputCount int
	Options    config.Options
}

// Pipeline orchestrates acquisition, options and the engine call.
type Pipeline struct {
	resolver   inputs.Resolver
	options    config.OptionsStore
	engine     engine.Engine
	cacheDir   string
	logger     zerolog.Logger
	mkdirAll   func(path string, perm os.FileMode) error
	createTemp func(dir, pattern string) (*os.File, error)
	remove     func(name string) error
}

// NewPipeline constructs the production pipeline with OS dependencies.
func NewPipeline(resolver inputs.Resolver, options config.OptionsStore, eng engine.Engine, cacheDir string, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		options:    options,
		engine:     eng,
		cacheDir:   cacheDir,
		logger:     logger,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run performs one submission. Every handle it opens is closed before it
// returns, and the output file is removed unless the stitch succeeded.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	logger := logging.FromContext(ctx, p.logger)

	if len(req.Locators) == 0 {
		return Result{}, &PipelineError{
			Stage:   StageAcquiring,
			Message: "No images selected",
			Err:     ErrEmptySelection,
		}
	}

	emitStage(req.OnStage, StageAcquiring)
	opened, err := inputs.Acquire(ctx, p.resolver, req.Locators)
	if err != nil {
		logger.Warn().Err(err).Int("inputs", len(req.Locators)).Msg("input acquisition failed")
		return Result{}, &PipelineError{
			Stage:   StageAcquiring,
			Message: "Unable to access the selected files",
			Err:     err,
		}
	}
	defer func() {
		if err := opened.Close(); err != nil {
			logger.Warn().Err(err).Msg("release inputs")
		}
	}()

	emitStage(req.OnStage, StageConfiguring)
	opts := config.LoadOptions(p.options)
	payload, err := opts.Marshal()
	if err != nil {
		return Result{}, &PipelineError{
			Stage:   StageConfiguring,
			Message: "Unable to read the stitch settings",
			Err:     err,
		}
	}
	ext, mimeType := opts.OutputFormat()

	emitStage(req.OnStage, StagePreparingOutput)
	if err := p.mkdirAll(p.cacheDir, 0o755); err != nil {
		return Result{}, &PipelineError{
			Stage:   StagePreparingOutput,
			Message: "Cannot open output file",
			Err:     err,
		}
	}
	output, err := p.createTemp(p.cacheDir, "stitch_preview-*."+ext)
	if err != nil {
		return Result{}, &PipelineError{
			Stage:   StagePreparingOutput,
			Message: "Cannot open output file",
			Err:     err,
		}
	}
	outputPath := output.Name()
	succeeded := false
	defer func() {
		if err := output.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Warn().Err(err).Str("path", outputPath).Msg("close output")
		}
		if !succeeded {
			if err := p.remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn().Err(err).Str("path", outputPath).Msg("remove failed output")
			}
		}
	}()

	emitStage(req.OnStage, StageStitching)
	logger.Debug().
		Int("inputs", opened.Len()).
		Str("format", string(opts.Format)).
		Str("arrangement", string(opts.Arrangement)).
		Msg("invoking stitch engine")

	reply, err := p.engine.Stitch(ctx, engine.Request{
		Payload:    payload,
		Inputs:     opened.Files(),
		InputTypes: opened.ContentTypes(),
		Output:     output,
		OutputType: mimeType,
	})
	if reply.Log != nil {
		emitLog(req.OnLog, *reply.Log)
	}
	if err != nil {
		pErr := &PipelineError{
			Stage:   StageStitching,
			Message: "The stitch engine could not be run",
			Err:     err,
		}
		var engErr *engine.Error
		if errors.As(err, &engErr) {
			pErr.CommandLog = engErr.CommandLog
		}
		return Result{}, pErr
	}
	if msg, failed := reply.Failure(); failed {
		pErr := &PipelineError{
			Stage:   StageStitching,
			Message: msg,
			Err:     ErrEngineReported,
		}
		if reply.Log != nil {
			pErr.CommandLog = *reply.Log
		}
		return Result{}, pErr
	}

	if err := output.Close(); err != nil {
		return Result{}, &PipelineError{
			Stage:   StageStitching,
			Message: "Cannot finalize output file",
			Err:     err,
		}
	}

	succeeded = true
	return Result{
		OutputPath: outputPath,
		MimeType:   mimeType,
		Extension:  ext,
		InputCount: opened.Len(),
		Options:    opts,
	}, nil
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage Stage), stage Stage) {
	if cb != nil {
		cb(stage)
	}
}

// emitLog forwards command logs when callback is configured.
func emitLog(cb func(log engine.CommandLog), log engine.CommandLog) {
	if cb != nil {
		cb(log)
	}
}

// NewPipelineForTests constructs a pipeline with injectable filesystem hooks.
func NewPipelineForTests(
	resolver inputs.Resolver,
	options config.OptionsStore,
	eng engine.Engine,
	cacheDir string,
	createTemp func(dir, pattern string) (*os.File, error),
	remove func(name string) error,
) *Pipeline {
	p := NewPipeline(resolver, options, eng, cacheDir, zerolog.Nop())
	if createTemp != nil {
		p.createTemp = createTemp
	}
	if remove != nil {
		p.remove = remove
	}
	return p
}
