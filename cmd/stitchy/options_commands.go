package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"image-stitcher/internal/config"
)

func newOptionsCommand(ctx *commandContext) *cobra.Command {
	optionsCmd := &cobra.Command{
		Use:   "options",
		Short: "Show or change stitch options",
	}

	optionsCmd.AddCommand(newOptionsShowCommand(ctx))
	optionsCmd.AddCommand(newOptionsSetCommand(ctx))
	optionsCmd.AddCommand(newOptionsResetCommand(ctx))

	return optionsCmd
}

func newOptionsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the options the next stitch will use",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			return printOptions(cmd, app.GetOptions(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the engine wire format")
	return cmd
}

func newOptionsSetCommand(ctx *commandContext) *cobra.Command {
	var (
		arrangement string
		format      string
		quality     int
		maxDim      int
		maxWidth    int
		maxHeight   int
		fast        bool
		small       bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change stitch options; unspecified fields keep their value",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp()
			if err != nil {
				return err
			}

			if app.OptionsStore == nil {
				return errors.New("options store is not configured")
			}
			flags := cmd.Flags()
			saved, err := app.OptionsStore.Update(func(opts config.Options) (config.Options, error) {
				if flags.Changed("arrangement") {
					opts.Arrangement = config.Arrangement(arrangement)
				}
				if flags.Changed("format") {
					opts.Format = config.Format(format)
				}
				if flags.Changed("quality") {
					opts.Quality = quality
				}
				switch {
				case flags.Changed("max-dimension"):
					opts.MaxDimension, opts.MaxWidth, opts.MaxHeight = maxDim, 0, 0
				case flags.Changed("max-width"):
					opts.MaxDimension, opts.MaxWidth, opts.MaxHeight = 0, maxWidth, 0
				case flags.Changed("max-height"):
					opts.MaxDimension, opts.MaxWidth, opts.MaxHeight = 0, 0, maxHeight
				}
				if flags.Changed("fast") {
					opts.Fast = fast
				}
				if flags.Changed("small") {
					opts.Small = small
				}
				return opts, nil
			})
			if err != nil {
				return fmt.Errorf("save options: %w", err)
			}
			return printOptions(cmd, saved, false)
		},
	}

	cmd.Flags().StringVar(&arrangement, "arrangement", "", "horizontal or vertical")
	cmd.Flags().StringVar(&format, "format", "", "jpeg, png, gif, bmp or webp")
	cmd.Flags().IntVar(&quality, "quality", config.DefaultJPEGQuality, "JPEG quality (0-100)")
	cmd.Flags().IntVar(&maxDim, "max-dimension", 0, "Bound the longest side in pixels (0 for none)")
	cmd.Flags().IntVar(&maxWidth, "max-width", 0, "Bound the width in pixels (0 for none)")
	cmd.Flags().IntVar(&maxHeight, "max-height", 0, "Bound the height in pixels (0 for none)")
	cmd.Flags().BoolVar(&fast, "fast", false, "Favor speed over quality")
	cmd.Flags().BoolVar(&small, "small", false, "Favor smaller png/gif output")
	cmd.MarkFlagsMutuallyExclusive("max-dimension", "max-width", "max-height")
	return cmd
}

func newOptionsResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore default stitch options",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			opts, err := app.ResetOptions()
			if err != nil {
				return err
			}
			return printOptions(cmd, opts, false)
		},
	}
}

func printOptions(cmd *cobra.Command, opts config.Options, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		data, err := json.Marshal(opts)
		if err != nil {
			return fmt.Errorf("encode options: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	ext, mimeType := opts.OutputFormat()
	rows := [][]string{
		{"arrangement", string(opts.Arrangement)},
		{"format", fmt.Sprintf("%s (.%s, %s)", opts.Format, ext, mimeType)},
		{"quality", strconv.Itoa(opts.Quality)},
		{"bound", describeBound(opts)},
		{"fast", strconv.FormatBool(opts.Fast)},
		{"small", strconv.FormatBool(opts.Small)},
	}
	fmt.Fprintln(out, renderTable([]string{"Option", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
	return nil
}

func describeBound(opts config.Options) string {
	switch {
	case opts.MaxDimension > 0:
		return fmt.Sprintf("max dimension %dpx", opts.MaxDimension)
	case opts.MaxWidth > 0:
		return fmt.Sprintf("max width %dpx", opts.MaxWidth)
	case opts.MaxHeight > 0:
		return fmt.Sprintf("max height %dpx", opts.MaxHeight)
	default:
		return "none"
	}
}
