// Package gstcamera captures frames from a V4L2 camera through a GStreamer
// pipeline.
//
// Pipeline structure:
//
//	v4l2src → videoconvert → videoscale → videorate → capsfilter(RGB) → appsink
package gstcamera

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

// Config selects the device and output format.
type Config struct {
	Device string
	Width  int
	Height int
	FPS    int
}

// Camera opens one GStreamer pipeline per stream.
type Camera struct {
	cfg Config
	log zerolog.Logger
}

// compile-time interface assertion
var _ ports.Camera = (*Camera)(nil)

var initOnce sync.Once

// NewCamera constructs a camera for cfg.
func NewCamera(cfg Config, log zerolog.Logger) *Camera {
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}
	return &Camera{cfg: cfg, log: log.With().Str("component", "camera").Logger()}
}

// Open starts a capture pipeline. Device problems are returned as
// *domain.CaptureError.
func (c *Camera) Open(ctx context.Context) (ports.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkDevice(c.cfg.Device); err != nil {
		return nil, err
	}

	initOnce.Do(func() { gst.Init(nil) })

	pipeline, sink, err := createPipeline(c.cfg)
	if err != nil {
		return nil, &domain.CaptureError{Reason: domain.CaptureUnavailable, Err: err}
	}

	s := newStream(uuid.NewString(), pipeline, c.cfg.Width, c.cfg.Height, c.log)
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		_ = pipeline.SetState(gst.StateNull)
		return nil, &domain.CaptureError{Reason: domain.CaptureUnavailable, Err: errors.Wrap(err, "gstcamera: start pipeline")}
	}
	go s.monitorBus()

	c.log.Info().Str("stream", s.id).Str("device", c.cfg.Device).Msg("capture started")
	return s, nil
}

func checkDevice(device string) error {
	if device == "" {
		return nil
	}
	f, err := os.Open(device)
	if err != nil {
		reason := domain.CaptureUnavailable
		if os.IsPermission(err) {
			reason = domain.CaptureDenied
		}
		return &domain.CaptureError{Reason: reason, Err: err}
	}
	return f.Close()
}

func createPipeline(cfg Config) (*gst.Pipeline, *app.Sink, error) {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create pipeline")
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create v4l2src")
	}
	if cfg.Device != "" {
		src.SetProperty("device", cfg.Device)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create videoconvert")
	}
	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create videoscale")
	}
	rate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create videorate")
	}
	rate.SetProperty("drop-only", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create capsfilter")
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(rgbCaps(cfg)))

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create appsink")
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)

	pipeline.AddMany(src, converter, scaler, rate, capsfilter, sink.Element)
	if err := gst.ElementLinkMany(src, converter, scaler, rate, capsfilter, sink.Element); err != nil {
		return nil, nil, errors.Wrap(err, "failed to link pipeline elements")
	}
	return pipeline, sink, nil
}

func rgbCaps(cfg Config) string {
	return fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/1", cfg.Width, cfg.Height, cfg.FPS)
}
