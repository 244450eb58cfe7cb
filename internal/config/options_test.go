package config

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	want := Options{Arrangement: ArrangementHorizontal, Format: FormatPNG, Quality: 90}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestOptionsRoundTrip(t *testing.T) {
	cases := []Options{
		DefaultOptions(),
		{Arrangement: ArrangementVertical, Format: FormatJPEG, Quality: 55, MaxDimension: 4096},
		{Arrangement: ArrangementHorizontal, Format: FormatGIF, Quality: 0, MaxWidth: 800, Small: true},
		{Arrangement: ArrangementVertical, Format: FormatBMP, Quality: 100, MaxHeight: 1, Fast: true},
		{Arrangement: ArrangementHorizontal, Format: FormatWebP, Quality: 90, Fast: true, Small: true},
	}
	for _, want := range cases {
		data, err := want.Marshal()
		if err != nil {
			t.Fatalf("Marshal(%+v) error = %v", want, err)
		}
		got, err := UnmarshalOptions(data)
		if err != nil {
			t.Fatalf("UnmarshalOptions(%s) error = %v", data, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestOptionsMarshalWireLayout(t *testing.T) {
	opts := Options{Arrangement: ArrangementVertical, Format: FormatJPEG, Quality: 75, MaxWidth: 1024}
	data, err := opts.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("decode wire: %v", err)
	}
	want := map[string]any{
		"horizontal": false, "vertical": true,
		"small": false, "fast": false,
		"quality": float64(75),
		"maxd":    float64(0), "maxw": float64(1024), "maxh": float64(0),
		"jpeg": true, "png": false, "gif": false, "bmp": false, "webp": false,
	}
	if diff := cmp.Diff(want, wire); diff != "" {
		t.Fatalf("wire mismatch (-want +got):\n%s", diff)
	}
}

func TestOptionsMarshalRejectsInvalid(t *testing.T) {
	cases := map[string]Options{
		"format":      {Arrangement: ArrangementHorizontal, Format: "tiff"},
		"arrangement": {Arrangement: "grid", Format: FormatPNG},
		"quality":     {Arrangement: ArrangementHorizontal, Format: FormatJPEG, Quality: 101},
		"two bounds":  {Arrangement: ArrangementHorizontal, Format: FormatPNG, MaxWidth: 10, MaxHeight: 10},
		"negative":    {Arrangement: ArrangementHorizontal, Format: FormatPNG, MaxDimension: -1},
	}
	for name, opts := range cases {
		_, err := opts.Marshal()
		var optErr *OptionsError
		if !errors.As(err, &optErr) {
			t.Fatalf("%s: error = %v, want *OptionsError", name, err)
		}
	}
}

func TestValidateReportsFirstNegativeBound(t *testing.T) {
	opts := Options{Arrangement: ArrangementHorizontal, Format: FormatPNG, MaxDimension: -1, MaxWidth: -2, MaxHeight: -3}
	for i := 0; i < 20; i++ {
		var optErr *OptionsError
		if err := opts.Validate(); !errors.As(err, &optErr) {
			t.Fatalf("Validate() error = %v, want *OptionsError", err)
		}
		if optErr.Field != "maxDimension" {
			t.Fatalf("field = %q, want maxDimension", optErr.Field)
		}
	}

	opts.MaxDimension = 0
	var optErr *OptionsError
	if err := opts.Validate(); !errors.As(err, &optErr) || optErr.Field != "maxWidth" {
		t.Fatalf("Validate() error = %v, want maxWidth field", err)
	}
}

func TestUnmarshalOptionsRejectsAmbiguousFlags(t *testing.T) {
	cases := []string{
		`{"horizontal":true,"vertical":true,"png":true,"quality":90}`,
		`{"horizontal":true,"png":true,"jpeg":true,"quality":90}`,
		`{"horizontal":true,"quality":90}`,
		`{"horizontal":true,"png":true,"maxd":10,"maxw":10}`,
		`not json`,
	}
	for _, payload := range cases {
		if _, err := UnmarshalOptions([]byte(payload)); err == nil {
			t.Fatalf("UnmarshalOptions(%s) succeeded, want error", payload)
		}
	}
}

func TestOutputFormat(t *testing.T) {
	cases := map[Format][2]string{
		FormatJPEG: {"jpg", "image/jpeg"},
		FormatPNG:  {"png", "image/png"},
		FormatGIF:  {"gif", "image/gif"},
		FormatBMP:  {"bmp", "image/bmp"},
		FormatWebP: {"webp", "image/webp"},
		"unknown":  {"png", "image/png"},
	}
	for format, want := range cases {
		ext, mime := Options{Format: format}.OutputFormat()
		if ext != want[0] || mime != want[1] {
			t.Fatalf("%s: got (%s, %s), want (%s, %s)", format, ext, mime, want[0], want[1])
		}
	}
}

func TestMimeTypeForExtension(t *testing.T) {
	for ext, want := range map[string]string{".PNG": "image/png", "jpeg": "image/jpeg", "jpg": "image/jpeg", "webp": "image/webp"} {
		got, ok := MimeTypeForExtension(ext)
		if !ok || got != want {
			t.Fatalf("MimeTypeForExtension(%q) = (%q, %v), want %q", ext, got, ok, want)
		}
	}
	if _, ok := MimeTypeForExtension("tiff"); ok {
		t.Fatal("tiff should be unknown")
	}
}

func TestOptionsJSONUsesWireLayout(t *testing.T) {
	data, err := json.Marshal(DefaultOptions())
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	var got Options
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if got != DefaultOptions() {
		t.Fatalf("got %+v, want defaults", got)
	}
}
