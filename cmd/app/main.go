package main

import (
	"image-stitcher/internal/bootstrap"
	"image-stitcher/internal/logging"
)

// main runs the desktop app serving ./frontend from disk.
func main() {
	logger := logging.WithComponent("main")

	app, err := bootstrap.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap app")
	}

	if err := app.Run(); err != nil {
		logger.Fatal().Err(err).Msg("run app")
	}
}
