package gstcamera

import (
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

// stream is one running pipeline. Stopping its only track tears the pipeline
// down.
type stream struct {
	id       string
	pipeline *gst.Pipeline
	width    int
	height   int
	log      zerolog.Logger

	frames   chan image.Image
	done     chan struct{}
	stopOnce sync.Once
	track    *videoTrack
}

func newStream(id string, pipeline *gst.Pipeline, width, height int, log zerolog.Logger) *stream {
	s := &stream{
		id:       id,
		pipeline: pipeline,
		width:    width,
		height:   height,
		log:      log.With().Str("stream", id).Logger(),
		frames:   make(chan image.Image, 1),
		done:     make(chan struct{}),
	}
	s.track = &videoTrack{stream: s}
	return s
}

func (s *stream) ID() string { return s.id }
func (s *stream) Tracks() []ports.MediaTrack { return []ports.MediaTrack{s.track} }
func (s *stream) Frames() <-chan image.Image { return s.frames }
func (s *stream) Done() <-chan struct{} { return s.done }

func (s *stream) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if err := s.pipeline.SetState(gst.StateNull); err != nil {
			s.log.Warn().Err(err).Msg("failed to stop pipeline")
		}
		s.log.Debug().Msg("capture stopped")
	})
}

// onSample converts the newest sample and keeps only the latest frame queued.
func (s *stream) onSample(sink *app.Sink) gst.FlowReturn {
	select {
	case <-s.done:
		return gst.FlowEOS
	default:
	}

	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	img, err := rgbToImage(mapInfo.Bytes(), s.width, s.height)
	buffer.Unmap()
	if err != nil {
		s.log.Debug().Err(err).Msg("skipping frame")
		return gst.FlowOK
	}

	select {
	case <-s.frames:
	default:
	}
	select {
	case s.frames <- img:
	default:
	}
	return gst.FlowOK
}

// monitorBus stops the stream on pipeline errors or end of stream, which
// closes Done and lets the surface report the loss.
func (s *stream) monitorBus() {
	bus := s.pipeline.GetPipelineBus()
	for {
		select {
		case <-s.done:
			return
		default:
		}

		msg := bus.TimedPop(100 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			s.log.Warn().Msg("camera end of stream")
			s.stop()
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			s.log.Error().Str("error", gerr.Error()).Str("debug", gerr.DebugString()).Msg("camera pipeline error")
			s.stop()
			return
		}
	}
}

type videoTrack struct {
	stream *stream
}

func (t *videoTrack) Kind() string { return "video" }
func (t *videoTrack) Stop() { t.stream.stop() }
