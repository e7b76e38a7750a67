package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchSite reloads site.yaml on change and calls onUpdate with the latest config.
// It performs an initial load before entering the watch loop.
func WatchSite(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger, onUpdate func(*SiteConfig)) error {
	if path == "" {
		path = "configs/site.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadSite(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cfg, err := LoadSite(path)
				if err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("site config reload rejected")
					lastMod = info.ModTime()
					continue
				}
				lastMod = info.ModTime()
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
