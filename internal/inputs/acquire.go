// Package inputs opens user-selected images for one stitch submission and
// owns the resulting file handles until the submission ends.
package inputs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Resolver turns a locator into a content type and a readable handle.
// The two lookups are independent and either may fail.
type Resolver interface {
	ContentType(ctx context.Context, locator string) (string, error)
	Open(ctx context.Context, locator string) (*os.File, error)
}

// Input is one acquired locator.
type Input struct {
	Locator     string
	ContentType string
	File        *os.File
}

// Opened owns the handles acquired for one submission.
type Opened struct {
	inputs []Input
	once   sync.Once
	err    error
}

// Len returns the number of acquired inputs.
func (o *Opened) Len() int {
	return len(o.inputs)
}

// Inputs returns the acquired inputs in selection order.
func (o *Opened) Inputs() []Input {
	return append([]Input(nil), o.inputs...)
}

// Files returns the handles in selection order.
func (o *Opened) Files() []*os.File {
	files := make([]*os.File, len(o.inputs))
	for i, in := range o.inputs {
		files[i] = in.File
	}
	return files
}

// ContentTypes returns the declared content types parallel to Files.
func (o *Opened) ContentTypes() []string {
	types := make([]string, len(o.inputs))
	for i, in := range o.inputs {
		types[i] = in.ContentType
	}
	return types
}

// Close releases every handle. Safe to call more than once.
func (o *Opened) Close() error {
	if o == nil {
		return nil
	}
	o.once.Do(func() {
		o.err = closeAll(o.inputs)
	})
	return o.err
}

// AcquisitionError reports which locator could not be acquired.
type AcquisitionError struct {
	Index   int
	Locator string
	Op      string
	Err     error
}

// Error formats the failing locator for logs.
func (e *AcquisitionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("acquire input %d (%s): %s: %v", e.Index+1, e.Locator, e.Op, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *AcquisitionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Acquire resolves every locator in order. On failure all handles opened so
// far are closed before the error is returned; there is no partial result.
func Acquire(ctx context.Context, resolver Resolver, locators []string) (*Opened, error) {
	acquired := make([]Input, 0, len(locators))
	fail := func(index int, locator, op string, err error) (*Opened, error) {
		_ = closeAll(acquired)
		return nil, &AcquisitionError{Index: index, Locator: locator, Op: op, Err: err}
	}

	for i, locator := range locators {
		if err := ctx.Err(); err != nil {
			return fail(i, locator, "acquire", err)
		}

		contentType, err := resolver.ContentType(ctx, locator)
		if err != nil {
			return fail(i, locator, "content type", err)
		}
		if contentType == "" {
			return fail(i, locator, "content type", ErrUnknownType)
		}

		file, err := resolver.Open(ctx, locator)
		if err != nil {
			return fail(i, locator, "open", err)
		}
		if file == nil {
			return fail(i, locator, "open", errors.New("resolver returned no handle"))
		}

		acquired = append(acquired, Input{
			Locator:     locator,
			ContentType: contentType,
			File:        file,
		})
	}

	return &Opened{inputs: acquired}, nil
}

func closeAll(inputs []Input) error {
	var errs []error
	for _, in := range inputs {
		if in.File == nil {
			continue
		}
		if err := in.File.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("close %s: %w", in.Locator, err))
		}
	}
	return errors.Join(errs...)
}
