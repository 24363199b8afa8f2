// Command sketch is a headless canvas client. It joins the shared canvas
// like a browser would, follows the Sync Channel for a while and writes the
// viewport it sees to a PNG or PDF file.
package main

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/samirrijal/lplace/internal/adapters/client"
	"github.com/samirrijal/lplace/internal/core/domain"
	"github.com/samirrijal/lplace/internal/engine"
	"github.com/samirrijal/lplace/internal/pkg/config"
	"github.com/samirrijal/lplace/internal/pkg/geospatial"
	"github.com/samirrijal/lplace/internal/pkg/logging"
	"github.com/samirrijal/lplace/internal/render"
)

// surface is a paint surface that can be written out once painted.
type surface interface {
	engine.Surface
	Write(w io.Writer) error
}

type pngSurface struct{ *render.Raster }

func (p pngSurface) Write(w io.Writer) error { return p.WritePNG(w) }

func main() {
	var (
		lat    = pflag.Float64("lat", 43.2630, "viewport centre latitude")
		lon    = pflag.Float64("lon", -2.9350, "viewport centre longitude")
		zoom   = pflag.Float64("zoom", 14, "viewport zoom level")
		width  = pflag.Int("width", 1024, "viewport width in pixels")
		height = pflag.Int("height", 768, "viewport height in pixels")
		out    = pflag.StringP("out", "o", "canvas.png", "output file, .png or .pdf")
		follow = pflag.Duration("follow", 0, "keep applying live edits for this long before writing")
	)
	pflag.Parse()

	cfg, err := config.Load("lplace-sketch")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, "text")

	var surf surface
	switch strings.ToLower(filepath.Ext(*out)) {
	case ".pdf":
		surf = render.NewPDF()
	case ".png":
		surf = pngSurface{render.NewRaster(color.White)}
	default:
		log.Fatalf("unsupported output %q: use .png or .pdf", *out)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	creds := client.CredentialsFrom(cfg.Auth, cfg.Client.Session)
	gateway := client.NewGateway(cfg.Client.BaseURL, creds, cfg.Client.Timeout)
	sync := client.NewSync(client.SyncURL(cfg.Client.BaseURL), creds.HTTPHeader(), cfg.Client.ReconnectWait, 256, logger)

	// Closed once the first fetch is applied. Reconnects refresh again.
	loaded := make(chan struct{})
	refreshed := false
	loop := engine.NewLoop(1024)
	session := engine.NewSession(engine.Options{
		Loop:      loop,
		Projector: geospatial.Mercator{},
		Surface:   surf,
		Gateway:   gateway,
		Sync:      sync,
		Policy: engine.Policy{
			MinDrawZoom:    cfg.Canvas.MinDrawZoom,
			MinSampleDelta: cfg.Canvas.MinSampleDelta,
		},
		View: domain.ViewState{
			Center: domain.Point{Lat: *lat, Lon: *lon},
			Zoom:   *zoom,
			Width:  *width,
			Height: *height,
		},
		Logger:  logger,
		Timeout: cfg.Client.Timeout,
		OnRefresh: func() {
			if !refreshed {
				refreshed = true
				close(loaded)
			}
		},
	})

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()
	loop.Post(session.Start)

	go func() {
		err := sync.Run(ctx,
			func(frame []byte) { loop.Post(func() { session.ApplyFrame(frame) }) },
			func() { loop.Post(session.Reconcile) },
		)
		if err != nil && ctx.Err() == nil {
			logger.Warn("sync channel stopped", "error", err)
		}
	}()

	select {
	case <-loaded:
	case <-ctx.Done():
		log.Fatalf("interrupted before the canvas loaded")
	}
	if *follow > 0 {
		logger.Info("following live edits", "for", *follow)
		select {
		case <-time.After(*follow):
		case <-ctx.Done():
		}
	}

	written := make(chan error, 1)
	loop.Post(func() {
		written <- writeOutput(surf, *out)
		logger.Info("canvas written",
			"file", *out,
			"user", session.Identity(),
			"owners", len(session.Store().Owners()),
			"strokes", session.Store().StrokeCount(),
			"dropped", session.Dropped(),
		)
	})

	var werr error
	select {
	case werr = <-written:
	case err := <-loopDone:
		werr = fmt.Errorf("event loop stopped: %v", err)
	}
	stop()
	loop.Close()
	if werr != nil {
		log.Fatalf("write %s: %v", *out, werr)
	}
}

func writeOutput(surf surface, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := surf.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
