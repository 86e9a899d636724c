package stream

import (
	"context"
	"io"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/traffic-vision/pkg/tracking"
)

//SourceKind tells file playback apart from live camera streams.
type SourceKind string

const (
	SourceFile   SourceKind = "file"
	SourceCamera SourceKind = "camera"
)

//progressEvery is how often, in processed frames, a progress line is logged
const progressEvery = 30

//Opener opens the frame source of a session.
type Opener func(ctx context.Context) (FrameSource, error)

//Config holds the per-session pipeline settings.
type Config struct {
	SessionID string
	Kind      SourceKind
	//DetectEvery applies to file sources; live sources detect on every kept frame.
	DetectEvery int
	Tracker     tracking.TrackerConfig
	LaneCount   int
	//Profile is the detector and JPEG setting of file sources.
	Profile Profile
	//ConstrainedWidth is the live frame width under which ConstrainedProfile applies.
	ConstrainedWidth int
}

//Session runs one viewer's pipeline from source open to complete or error.
type Session struct {
	cfg       Config
	open      Opener
	detector  Detector
	annotator Annotator
	publisher *Publisher
	clock     clock.Clock
	logger    *zap.SugaredLogger
}

//NewSession builds a session. annotator may be nil; clk and logger default to the wall clock and a no-op logger.
func NewSession(cfg Config, open Opener, detector Detector, annotator Annotator, sink EventSink,
	clk clock.Clock, logger *zap.SugaredLogger) *Session {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Kind == "" {
		cfg.Kind = SourceFile
	}
	if cfg.Profile.Name == "" {
		cfg.Profile = FullProfile
	}

	return &Session{
		cfg:       cfg,
		open:      open,
		detector:  detector,
		annotator: annotator,
		publisher: NewPublisher(cfg.SessionID, sink),
		clock:     clk,
		logger:    logger.With("session", cfg.SessionID, "source", string(cfg.Kind)),
	}
}

//Publisher returns the session's event publisher.
func (s *Session) Publisher() *Publisher {
	return s.publisher
}

//Run processes the stream until it ends, fails or ctx is cancelled. Cancellation ends the
//session silently: no further frame and no complete event are published.
func (s *Session) Run(ctx context.Context) error {
	src, err := s.open(ctx)
	if err != nil {
		err = errors.Wrap(ErrSourceUnavailable, err.Error())
		s.logger.Errorw("could not open source", "error", err)
		_ = s.publisher.Error("Could not open video source")
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			s.logger.Warnw("could not close source", "error", err)
		}
	}()

	meta := src.Metadata()
	live := s.cfg.Kind == SourceCamera

	schedCfg := SchedulerConfig{
		Paced:       !live,
		FPS:         meta.FPS,
		DetectEvery: s.cfg.DetectEvery,
		FrameStride: 1,
	}
	if live {
		schedCfg.DetectEvery = 1
	} else if schedCfg.DetectEvery <= 0 {
		schedCfg.DetectEvery = DefaultDetectEvery
	}
	scheduler := NewScheduler(schedCfg, s.clock)

	profile := s.cfg.Profile
	pipeline := NewPipeline(s.logger, s.detector, s.annotator, scheduler, profile,
		s.cfg.Tracker, s.cfg.LaneCount, meta.Width, meta.TotalFrames)

	if err := s.publisher.Start(StartEvent{
		TotalFrames: meta.TotalFrames,
		FPS:         meta.FPS,
		Width:       meta.Width,
		Height:      meta.Height,
		Source:      string(s.cfg.Kind),
	}); err != nil {
		return err
	}
	s.logger.Infow("session started", "fps", meta.FPS, "width", meta.Width, "height", meta.Height, "total_frames", meta.TotalFrames)

	started := s.clock.Now()
	processed := 0

	for {
		if ctx.Err() != nil {
			s.logger.Infow("session cancelled", "frames", processed)
			return ctx.Err()
		}

		if err := scheduler.Wait(ctx); err != nil {
			s.logger.Infow("session cancelled", "frames", processed)
			return err
		}

		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Infow("session cancelled", "frames", processed)
				return ctx.Err()
			}
			err = errors.Wrap(ErrSourceUnavailable, err.Error())
			s.logger.Errorw("could not read frame", "error", err)
			_ = s.publisher.Error("Could not read video source")
			return err
		}

		if live {
			if p := LiveProfile(frame.Bounds().Dx(), s.cfg.ConstrainedWidth); p.Name != pipeline.Profile().Name {
				s.logger.Infow("switching live profile", "profile", p.Name, "width", frame.Bounds().Dx())
				pipeline.SetProfile(p)
				scheduler.SetStride(p.FrameStride)
			}
		}

		d := scheduler.Next()
		if d.Drop {
			closeFrame(frame)
			continue
		}

		ev := pipeline.Process(ctx, frame, d)
		closeFrame(frame)

		if ctx.Err() != nil {
			s.logger.Infow("session cancelled", "frames", processed)
			return ctx.Err()
		}
		if err := s.publisher.Frame(ev); err != nil {
			return err
		}
		processed++

		if processed%progressEvery == 0 {
			s.logger.Debugw("progress", "frame", d.Index, "total_frames", meta.TotalFrames,
				"visible", ev.TotalVehicles, "counted", ev.TotalCounted)
		}
	}

	elapsed := s.clock.Since(started).Seconds()
	duration := elapsed
	if meta.FPS > 0 && meta.TotalFrames > 0 {
		duration = float64(meta.TotalFrames) / meta.FPS
	}

	stats := pipeline.Stats()
	s.logger.Infow("session complete", "frames", processed, "counted", stats.Total(), "elapsed", elapsed)

	return s.publisher.Complete(CompleteEvent{
		TotalVehicles:   stats.Total(),
		VehicleTypes:    stats.ClassCounts(),
		LaneCounts:      stats.LaneCounts(),
		FramesProcessed: processed,
		ElapsedSeconds:  elapsed,
		VideoInfo: VideoInfo{
			FPS:             meta.FPS,
			Width:           meta.Width,
			Height:          meta.Height,
			TotalFrames:     meta.TotalFrames,
			DurationSeconds: duration,
		},
	})
}
