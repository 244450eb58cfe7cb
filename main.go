package main

import (
	"embed"

	"image-stitcher/internal/bootstrap"
	"image-stitcher/internal/logging"
)

//go:embed frontend/index.html frontend/app.js frontend/style.css
var appAssets embed.FS

func main() {
	logger := logging.WithComponent("main")

	app, err := bootstrap.NewWithAssets(appAssets)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap app")
	}

	if err := app.Run(); err != nil {
		logger.Fatal().Err(err).Msg("run app")
	}
}
