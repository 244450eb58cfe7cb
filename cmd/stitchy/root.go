package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd, _ := newRootCommandWithContext()
	return cmd
}

func newRootCommandWithContext() (*cobra.Command, *commandContext) {
	var configDirFlag string

	ctx := newCommandContext(&configDirFlag)

	rootCmd := &cobra.Command{
		Use:           "stitchy",
		Short:         "Stitch images from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "Directory holding config.toml, options and the gallery catalog")

	rootCmd.AddCommand(newStitchCommand(ctx))
	rootCmd.AddCommand(newOptionsCommand(ctx))
	rootCmd.AddCommand(newGalleryCommand(ctx))
	rootCmd.AddCommand(newDiagnosticsCommand(ctx))

	return rootCmd, ctx
}
