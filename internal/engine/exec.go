package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// firstExtraFD is the descriptor number of the first inherited file.
const firstExtraFD = 3

// commandSpec describes one process launch.
type commandSpec struct {
	Name       string
	Args       []string
	Stdin      []byte
	ExtraFiles []*os.File
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, spec commandSpec) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, spec commandSpec) (commandResult, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(spec.Stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.ExtraFiles = spec.ExtraFiles

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// ExecEngine runs the engine binary as a child process. Inputs and the output
// are inherited descriptors starting at fd 3, in selection order with the
// output last; the options payload is written to stdin. Whatever the engine
// prints to stdout is its reply.
type ExecEngine struct {
	path   string
	runner commandRunner
}

// NewExecEngine constructs an engine that launches the binary at path.
func NewExecEngine(path string) *ExecEngine {
	return &ExecEngine{path: path, runner: &execRunner{}}
}

// Stitch launches the engine and waits for it to finish.
func (e *ExecEngine) Stitch(ctx context.Context, req Request) (Reply, error) {
	if err := req.Validate(); err != nil {
		return Reply{}, &Error{Message: "invalid engine request", Err: err}
	}

	args := buildArgs(len(req.Inputs), req.InputTypes, req.OutputType)
	extra := make([]*os.File, 0, len(req.Inputs)+1)
	extra = append(extra, req.Inputs...)
	extra = append(extra, req.Output)

	res, runErr := e.runner.Run(ctx, commandSpec{
		Name:       e.path,
		Args:       args,
		Stdin:      req.Payload,
		ExtraFiles: extra,
	})
	log := CommandLog{
		Command:  e.path,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	if runErr != nil {
		msg := "stitch engine failed"
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			msg = msg + ": " + lastLine(stderr)
		}
		return Reply{Log: &log}, &Error{Message: msg, CommandLog: log, Err: runErr}
	}

	reply := Reply{Log: &log}
	if res.Stdout != "" {
		msg := strings.TrimRight(res.Stdout, "\r\n")
		reply.Message = &msg
	}
	return reply, nil
}

// buildArgs builds the engine CLI flags for descriptor-based I/O.
func buildArgs(inputs int, inputTypes []string, outputType string) []string {
	fds := make([]string, inputs)
	for i := range fds {
		fds[i] = strconv.Itoa(firstExtraFD + i)
	}
	return []string{
		"--options-stdin",
		"--input-fds", strings.Join(fds, ","),
		"--input-types", strings.Join(inputTypes, ","),
		"--output-fd", strconv.Itoa(firstExtraFD + inputs),
		"--output-type", outputType,
	}
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// NewExecEngineForTests constructs an engine with an injectable runner.
func NewExecEngineForTests(path string, runner commandRunner) *ExecEngine {
	return &ExecEngine{path: path, runner: runner}
}
