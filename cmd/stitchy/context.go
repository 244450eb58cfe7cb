package main

import (
	"context"
	"strings"
	"sync"

	"image-stitcher/internal/bootstrap"
	"image-stitcher/internal/config"
)

type commandContext struct {
	configDirFlag *string

	appOnce sync.Once
	app     *bootstrap.App
	appErr  error
}

func newCommandContext(configDirFlag *string) *commandContext {
	return &commandContext{configDirFlag: configDirFlag}
}

func (c *commandContext) configDir() string {
	if c.configDirFlag != nil {
		if dir := strings.TrimSpace(*c.configDirFlag); dir != "" {
			return dir
		}
	}
	return config.DefaultConfigDir()
}

// ensureApp builds the headless app once per invocation.
func (c *commandContext) ensureApp() (*bootstrap.App, error) {
	c.appOnce.Do(func() {
		c.app, c.appErr = bootstrap.NewFromConfigDir(c.configDir(), nil)
	})
	return c.app, c.appErr
}

// close waits for in-flight submissions and releases the catalog.
func (c *commandContext) close() {
	if c.app != nil {
		c.app.Shutdown(context.Background())
	}
}
