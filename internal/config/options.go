package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Arrangement selects the direction images are joined in.
type Arrangement string

const (
	ArrangementHorizontal Arrangement = "horizontal"
	ArrangementVertical   Arrangement = "vertical"
)

// Format selects the output image container.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatWebP Format = "webp"
)

// DefaultJPEGQuality is used when no persisted options exist.
const DefaultJPEGQuality = 90

var formatTable = map[Format]struct {
	ext  string
	mime string
}{
	FormatJPEG: {ext: "jpg", mime: "image/jpeg"},
	FormatPNG:  {ext: "png", mime: "image/png"},
	FormatGIF:  {ext: "gif", mime: "image/gif"},
	FormatBMP:  {ext: "bmp", mime: "image/bmp"},
	FormatWebP: {ext: "webp", mime: "image/webp"},
}

// Options describes one stitch: arrangement, output format and size bound.
// Values are immutable once loaded; every submission builds its own copy.
type Options struct {
	Arrangement  Arrangement
	Format       Format
	Quality      int
	MaxDimension int
	MaxWidth     int
	MaxHeight    int
	Fast         bool
	Small        bool
}

// DefaultOptions returns the options used when nothing usable is persisted.
func DefaultOptions() Options {
	return Options{
		Arrangement: ArrangementHorizontal,
		Format:      FormatPNG,
		Quality:     DefaultJPEGQuality,
	}
}

// OptionsError reports an options value that cannot be encoded or decoded.
type OptionsError struct {
	Field  string
	Reason string
}

// Error formats the failing field for logs and UI.
func (e *OptionsError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid stitch options: %s %s", e.Field, e.Reason)
}

// Validate checks every invariant the engine relies on.
func (o Options) Validate() error {
	switch o.Arrangement {
	case ArrangementHorizontal, ArrangementVertical:
	default:
		return &OptionsError{Field: "arrangement", Reason: fmt.Sprintf("must be horizontal or vertical, got %q", o.Arrangement)}
	}
	if _, ok := formatTable[o.Format]; !ok {
		return &OptionsError{Field: "format", Reason: fmt.Sprintf("unsupported value %q", o.Format)}
	}
	if o.Quality < 0 || o.Quality > 100 {
		return &OptionsError{Field: "quality", Reason: fmt.Sprintf("must be within 0..100, got %d", o.Quality)}
	}

	bounds := 0
	for _, b := range []struct {
		name  string
		value int
	}{
		{"maxDimension", o.MaxDimension},
		{"maxWidth", o.MaxWidth},
		{"maxHeight", o.MaxHeight},
	} {
		if b.value < 0 {
			return &OptionsError{Field: b.name, Reason: fmt.Sprintf("must not be negative, got %d", b.value)}
		}
		if b.value > 0 {
			bounds++
		}
	}
	if bounds > 1 {
		return &OptionsError{Field: "size bound", Reason: "only one of maxDimension, maxWidth, maxHeight may be set"}
	}
	return nil
}

// OutputFormat maps the selected format to a file extension and MIME type.
func (o Options) OutputFormat() (extension, mimeType string) {
	entry, ok := formatTable[o.Format]
	if !ok {
		entry = formatTable[FormatPNG]
	}
	return entry.ext, entry.mime
}

// MimeTypeForExtension returns the image MIME type for a known output extension.
func MimeTypeForExtension(ext string) (string, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "jpeg" {
		ext = "jpg"
	}
	for _, entry := range formatTable {
		if entry.ext == ext {
			return entry.mime, true
		}
	}
	return "", false
}

// wireOptions is the flag layout the engine and the persisted record use.
type wireOptions struct {
	Horizontal bool `json:"horizontal"`
	Vertical   bool `json:"vertical"`
	Small      bool `json:"small"`
	Fast       bool `json:"fast"`
	Quality    int  `json:"quality"`
	MaxD       int  `json:"maxd"`
	MaxW       int  `json:"maxw"`
	MaxH       int  `json:"maxh"`
	JPEG       bool `json:"jpeg"`
	PNG        bool `json:"png"`
	GIF        bool `json:"gif"`
	BMP        bool `json:"bmp"`
	WebP       bool `json:"webp"`
}

// Marshal encodes options into the engine payload.
func (o Options) Marshal() ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(o.toWire())
	if err != nil {
		return nil, fmt.Errorf("encode stitch options: %w", err)
	}
	return data, nil
}

// UnmarshalOptions decodes an engine payload, rejecting invalid values.
func UnmarshalOptions(data []byte) (Options, error) {
	var w wireOptions
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return Options{}, fmt.Errorf("decode stitch options: %w", err)
	}
	opts, err := w.toOptions()
	if err != nil {
		return Options{}, err
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// MarshalJSON lets the desktop bindings exchange the wire layout.
func (o Options) MarshalJSON() ([]byte, error) {
	return o.Marshal()
}

// UnmarshalJSON decodes the wire layout with full validation.
func (o *Options) UnmarshalJSON(data []byte) error {
	decoded, err := UnmarshalOptions(data)
	if err != nil {
		return err
	}
	*o = decoded
	return nil
}

func (o Options) toWire() wireOptions {
	return wireOptions{
		Horizontal: o.Arrangement == ArrangementHorizontal,
		Vertical:   o.Arrangement == ArrangementVertical,
		Small:      o.Small,
		Fast:       o.Fast,
		Quality:    o.Quality,
		MaxD:       o.MaxDimension,
		MaxW:       o.MaxWidth,
		MaxH:       o.MaxHeight,
		JPEG:       o.Format == FormatJPEG,
		PNG:        o.Format == FormatPNG,
		GIF:        o.Format == FormatGIF,
		BMP:        o.Format == FormatBMP,
		WebP:       o.Format == FormatWebP,
	}
}

func (w wireOptions) toOptions() (Options, error) {
	opts := Options{
		Quality:      w.Quality,
		MaxDimension: w.MaxD,
		MaxWidth:     w.MaxW,
		MaxHeight:    w.MaxH,
		Fast:         w.Fast,
		Small:        w.Small,
	}

	switch {
	case w.Horizontal && !w.Vertical:
		opts.Arrangement = ArrangementHorizontal
	case w.Vertical && !w.Horizontal:
		opts.Arrangement = ArrangementVertical
	default:
		return Options{}, &OptionsError{Field: "arrangement", Reason: "exactly one of horizontal, vertical must be set"}
	}

	set := 0
	for format, on := range map[Format]bool{
		FormatJPEG: w.JPEG,
		FormatPNG:  w.PNG,
		FormatGIF:  w.GIF,
		FormatBMP:  w.BMP,
		FormatWebP: w.WebP,
	} {
		if on {
			opts.Format = format
			set++
		}
	}
	if set != 1 {
		return Options{}, &OptionsError{Field: "format", Reason: "exactly one format flag must be set"}
	}
	return opts, nil
}
