package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"image-stitcher/internal/domain"
	"image-stitcher/internal/jobs"
)

func newStitchCommand(ctx *commandContext) *cobra.Command {
	var exportResult bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "stitch <image> [image...]",
		Short: "Stitch images in the given order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.ensureApp()
			if err != nil {
				return err
			}

			locators := make([]string, 0, len(args))
			for _, arg := range args {
				if abs, err := filepath.Abs(arg); err == nil {
					arg = abs
				}
				locators = append(locators, arg)
			}

			events, cancel := app.Events.Subscribe(64)
			defer cancel()

			job, err := app.AddInputs(locators)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			final, err := waitForTerminal(cmd, events, job, func(ev jobs.Event) {
				if verbose && ev.Type == jobs.EventTypeStage {
					fmt.Fprintf(errOut, "%s\n", ev.Message)
				}
			})
			if err != nil {
				return err
			}
			app.Wait()

			if final.Status == domain.JobStatusFailed {
				return errors.New(final.Error)
			}
			fmt.Fprintf(out, "Stitched %d images into %s (%s)\n", len(locators), final.OutputPath, final.MimeType)

			if !exportResult {
				return nil
			}
			result, err := app.ExportOutput()
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(out, "Saved %s\n%s\n", result.DisplayName, result.Reference)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&exportResult, "export", "e", false, "Save the result to the gallery")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print each stage as it starts")
	return cmd
}

// waitForTerminal reads events until job reaches a terminal status.
func waitForTerminal(cmd *cobra.Command, events <-chan jobs.Event, job domain.Job, onEvent func(jobs.Event)) (domain.Job, error) {
	done := cmd.Context().Done()
	for {
		select {
		case <-done:
			return domain.Job{}, cmd.Context().Err()
		case ev, ok := <-events:
			if !ok {
				return domain.Job{}, errors.New("event stream closed before the stitch finished")
			}
			if ev.JobID != job.ID {
				continue
			}
			onEvent(ev)
			if ev.Type == jobs.EventTypeStatus && ev.Status.Terminal() {
				return domain.Job{
					ID:         ev.JobID,
					Generation: ev.Generation,
					Status:     ev.Status,
					OutputPath: ev.OutputPath,
					MimeType:   ev.MimeType,
					Error:      ev.Message,
				}, nil
			}
		}
	}
}
