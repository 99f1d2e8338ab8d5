package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/modelboard/internal/annotation"
	"github.com/Faultbox/modelboard/internal/config"
	"github.com/Faultbox/modelboard/internal/delivery"
	"github.com/Faultbox/modelboard/internal/engine/camera"
	"github.com/Faultbox/modelboard/internal/engine/lighting"
	"github.com/Faultbox/modelboard/internal/engine/renderer"
	"github.com/Faultbox/modelboard/internal/logger"
	"github.com/Faultbox/modelboard/internal/viewer"
	"github.com/Faultbox/modelboard/pkg/formats"
	"github.com/Faultbox/modelboard/pkg/resource"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// resolverOptions points the resolver at a running delivery service when
// one is configured; otherwise local files are read in-process and remote
// URLs are fetched directly.
func resolverOptions(c *config.Config) resource.Options {
	opts := resource.Options{
		Client: &http.Client{Timeout: c.Delivery.ProxyTimeout},
		Logger: logger.Named("resource"),
	}
	if base := strings.TrimRight(c.Delivery.BaseURL, "/"); base != "" {
		opts.DeliveryURL = base + delivery.LocalPath
		if c.Delivery.UseProxy {
			opts.ProxyURL = base + delivery.ProxyPath
		}
	}
	return opts
}

func sessionOptions(c *config.Config) (viewer.Options, error) {
	bg, err := scene.ParseHexColor(c.Viewer.Background)
	if err != nil {
		return viewer.Options{}, fmt.Errorf("viewer.background: %w", err)
	}
	pen, err := scene.ParseHexColor(c.Annotation.Color)
	if err != nil {
		return viewer.Options{}, fmt.Errorf("annotation.color: %w", err)
	}

	rcfg := renderer.DefaultConfig()
	rcfg.Background = bg
	rcfg.Lights = lighting.Rig{
		Ambient:      c.Viewer.Ambient,
		Key:          lighting.SunDirection(c.Viewer.LightAzimuth, c.Viewer.LightElevation),
		KeyIntensity: 1,
	}

	cam := camera.DefaultConfig()
	cam.FovDegrees = c.Viewer.FovDegrees
	cam.TargetSize = c.Viewer.TargetSize
	cam.RescaleThreshold = c.Viewer.RescaleThreshold
	cam.Margin = c.Viewer.Margin
	cam.MinDistanceRatio = c.Viewer.MinDistanceRatio
	cam.MaxDistanceRatio = c.Viewer.MaxDistanceRatio
	cam.Damping = c.Viewer.Damping

	return viewer.Options{
		Width:    c.Viewer.Width,
		Height:   c.Viewer.Height,
		DPR:      c.Viewer.DPR,
		Camera:   cam,
		Renderer: &rcfg,
		Annotation: annotation.Options{
			Style: annotation.Style{
				Color:    pen,
				Width:    c.Annotation.LineWidth,
				FontSize: c.Annotation.FontSize,
			},
			EraserRadius: c.Annotation.EraserRadius,
		},
		Resolver:       resource.NewResolver(resolverOptions(c)),
		ClickTolerance: c.Viewer.ClickTolerance,
		Progress:       logProgress(logger.Named("load")),
		Logger:         logger.Named("viewer"),
	}, nil
}

func logProgress(log *zap.Logger) formats.ProgressFunc {
	return func(p formats.Progress) {
		if p.Indeterminate {
			log.Debug("loading", zap.Int64("loaded", p.Loaded))
			return
		}
		log.Debug("loading", zap.Int("percent", p.Percent), zap.Int64("loaded", p.Loaded), zap.Int64("total", p.Total))
	}
}

// locatorFor maps command arguments to a locator. Several arguments form a
// file set read from disk; a single argument is a data URI, a URL or a
// local path.
func locatorFor(args []string) (resource.Locator, error) {
	if len(args) > 1 {
		files := make([]resource.FileBlob, 0, len(args))
		for _, a := range args {
			data, err := os.ReadFile(a)
			if err != nil {
				return nil, err
			}
			files = append(files, resource.FileBlob{Name: filepath.Base(a), Data: data})
		}
		return resource.FileSet{Files: files}, nil
	}

	arg := args[0]
	lower := strings.ToLower(arg)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return resource.DataURI{URI: arg}, nil
	case strings.Contains(arg, "://"):
		return resource.RemoteURL{URL: arg}, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return nil, err
	}
	return resource.LocalPath{Path: abs}, nil
}
