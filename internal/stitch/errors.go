package stitch

import (
	"errors"
	"fmt"

	"image-stitcher/internal/engine"
)

// Stage names one step of a submission.
type Stage string

const (
	StageAcquiring       Stage = "acquiring"
	StageConfiguring     Stage = "configuring"
	StagePreparingOutput Stage = "preparing-output"
	StageStitching       Stage = "stitching"
)

var (
	// ErrEmptySelection is returned when a submission has no inputs.
	ErrEmptySelection = errors.New("no images selected")
	// ErrEngineReported wraps a failure message returned by the engine itself.
	ErrEngineReported = errors.New("engine reported a failure")
)

// PipelineError is a stage-aware error with optional command context.
// Message is safe to show to the user.
type PipelineError struct {
	Stage      Stage             `json:"stage"`
	Message    string            `json:"message"`
	CommandLog engine.CommandLog `json:"commandLog"`
	Err        error             `json:"-"`
}

// Error formats pipeline failures for logs.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil || errors.Is(e.Err, ErrEngineReported) {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage returns the text to show for err in a failed job.
func UserMessage(err error) string {
	var pErr *PipelineError
	if errors.As(err, &pErr) && pErr.Message != "" {
		return pErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
