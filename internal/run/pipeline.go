package run

import (
	"context"
	"time"

	"interviewer/internal/config"
	"interviewer/internal/level"
	"interviewer/internal/media"
	"interviewer/internal/playback"
	"interviewer/internal/recorder"
	"interviewer/internal/session"
	"interviewer/internal/upload"

	"github.com/sirupsen/logrus"
)

// pipeline is the wired capture → upload → playback chain for one session.
type pipeline struct {
	adapter   *media.Adapter
	removeTap func()
	session   *session.Controller
}

func (p *pipeline) release() {
	if p.removeTap != nil {
		p.removeTap()
	}
	p.adapter.Release()
}

func buildPipeline(ctx context.Context, cfg *config.Config, logger *logrus.Logger, obs session.Observer, onTurn func(session.Turn)) *pipeline {
	adapter := media.NewAdapter(media.NewMicSource(cfg, logger), media.NewCameraSource(cfg), logger)
	adapter.Acquire(ctx)
	p := &pipeline{adapter: adapter}

	opts := session.Options{
		Uploader:    upload.NewClient(cfg.Backend.BaseURL, cfg.Backend.UploadPath, cfg.BackendTimeout(), logger),
		Player:      playback.NewController(playback.NewFactory(cfg, logger), logger),
		Logger:      logger,
		Observer:    obs,
		DefaultMime: cfg.Recorder.DefaultMime,
		Frames:      level.FrameScheduler{Interval: time.Duration(cfg.Level.FrameMS) * time.Millisecond},
		OnTurn:      onTurn,
	}
	if v := adapter.Video(); v != nil {
		opts.CameraDevice = v.Device()
	}
	if stream := adapter.Audio(); stream != nil {
		an := level.NewAnalyser(level.Options{
			FFTSize:     cfg.Level.FFTSize,
			MinDecibels: cfg.Level.MinDecibels,
			MaxDecibels: cfg.Level.MaxDecibels,
			Smoothing:   cfg.Level.Smoothing,
		})
		p.removeTap = stream.AddTap(an)
		opts.Sampler = an
		opts.NewSink = sinkFactory(cfg, logger, stream)
	}
	p.session = session.New(opts)
	return p
}

// sinkFactory negotiates the content type once and binds the sink to stream.
func sinkFactory(cfg *config.Config, logger *logrus.Logger, stream recorder.Stream) session.SinkFactory {
	mime := recorder.Negotiate(cfg.Recorder.MimePreferences, recorder.IsTypeSupported)
	if mime == "" {
		logger.Infof("no preferred type supported; using sink default %s", cfg.Recorder.DefaultMime)
	}
	sinkOpts := []recorder.SinkOption{recorder.WithChunkBytes(cfg.Recorder.ChunkBytes)}
	if cfg.Recorder.RequireSpeech {
		det, err := recorder.NewSpeechDetector(cfg.Recorder.VADMode)
		if err != nil {
			logger.Warnf("speech gate disabled: %v", err)
		} else {
			sinkOpts = append(sinkOpts, recorder.WithSpeechGate(det))
		}
	}
	return func(h recorder.Handlers) (recorder.Sink, error) {
		s, err := recorder.NewWAVSink(stream, mime, h, sinkOpts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
