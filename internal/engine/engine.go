// Package engine is the boundary to the native stitching engine.
//
// The engine is called synchronously with opened input handles, their content
// types, the encoded options payload and a writable output handle. It answers
// with nothing (success, output already written) or a human-readable message
// describing why it failed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Request is one engine invocation.
type Request struct {
	Payload    []byte
	Inputs     []*os.File
	InputTypes []string
	Output     *os.File
	OutputType string
}

// Validate checks the request is well formed before anything is launched.
func (r Request) Validate() error {
	if len(r.Payload) == 0 {
		return errors.New("engine request has no options payload")
	}
	if len(r.Inputs) == 0 {
		return errors.New("engine request has no inputs")
	}
	if len(r.Inputs) != len(r.InputTypes) {
		return fmt.Errorf("engine request has %d inputs but %d content types", len(r.Inputs), len(r.InputTypes))
	}
	for i, f := range r.Inputs {
		if f == nil {
			return fmt.Errorf("engine request input %d is nil", i)
		}
	}
	if r.Output == nil {
		return errors.New("engine request has no output handle")
	}
	if r.OutputType == "" {
		return errors.New("engine request has no output content type")
	}
	return nil
}

// Reply is what the engine answered. A nil or empty Message means success.
type Reply struct {
	Message *string
	Log     *CommandLog
}

// Failure returns the engine's failure message, if it reported one.
func (r Reply) Failure() (string, bool) {
	if r.Message == nil || *r.Message == "" {
		return "", false
	}
	return *r.Message, true
}

// Engine performs one stitch. The returned error means the engine could not
// be reached or crashed; a reported failure comes back in the Reply.
type Engine interface {
	Stitch(ctx context.Context, req Request) (Reply, error)
}

// Func adapts a function to Engine.
type Func func(ctx context.Context, req Request) (Reply, error)

// Stitch calls f.
func (f Func) Stitch(ctx context.Context, req Request) (Reply, error) {
	return f(ctx, req)
}

// Message builds a reply carrying msg.
func Message(msg string) Reply {
	return Reply{Message: &msg}
}

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Error is a transport failure with optional command context.
type Error struct {
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats engine failures for logs and UI.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (cmd=%s exit=%d)", e.Message, e.CommandLog.Command, e.CommandLog.ExitCode)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
