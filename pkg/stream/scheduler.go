package stream

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

//DefaultFPS is used to pace sources that do not declare a frame rate.
const DefaultFPS = 30.0

//DefaultDetectEvery runs the detector on every third processed frame of a file source.
const DefaultDetectEvery = 3

//DefaultConstrainedWidth is the frame width under which a live source is treated as a constrained device.
const DefaultConstrainedWidth = 400

//Profile is a quality/speed trade-off for a class of sources.
type Profile struct {
	Name        string
	Detector    DetectorConfig
	FrameStride int
	JPEGQuality int
}

var (
	//ConstrainedProfile serves small frames pushed by phones: cheaper inference, every second frame.
	ConstrainedProfile = Profile{
		Name:        "constrained",
		Detector:    DetectorConfig{InferenceSize: 320, ConfidenceMin: 0.4},
		FrameStride: 2,
		JPEGQuality: 50,
	}

	//FullProfile serves desktop cameras and files: full inference resolution, every frame.
	FullProfile = Profile{
		Name:        "full",
		Detector:    DetectorConfig{InferenceSize: 640, ConfidenceMin: 0.3},
		FrameStride: 1,
		JPEGQuality: 70,
	}
)

//LiveProfile picks the profile of a live frame from its width.
func LiveProfile(width, constrainedWidth int) Profile {
	if constrainedWidth <= 0 {
		constrainedWidth = DefaultConstrainedWidth
	}
	if width < constrainedWidth {
		return ConstrainedProfile
	}
	return FullProfile
}

//SchedulerConfig controls pacing and detection caching of one session.
type SchedulerConfig struct {
	//Paced throttles frame consumption to FPS (file sources).
	Paced bool
	FPS   float64
	//DetectEvery runs the detector on every Nth processed frame and reuses the last result otherwise.
	DetectEvery int
	//FrameStride keeps one raw frame out of FrameStride.
	FrameStride int
}

//Decision is the scheduler's verdict for one raw frame.
type Decision struct {
	//Raw counts every frame consumed from the source, starting at 1.
	Raw int
	//Index counts kept frames, starting at 1. Zero when the frame is dropped.
	Index  int
	Drop   bool
	Detect bool
}

//Scheduler decides, frame by frame, whether to detect or reuse the cached result and when the next
//raw frame may be consumed. One scheduler per session; not safe for concurrent use.
type Scheduler struct {
	cfg      SchedulerConfig
	clock    clock.Clock
	interval time.Duration

	started   bool
	start     time.Time
	raw       int
	processed int

	cached []Vehicle
}

//NewScheduler returns a scheduler using clk, or the wall clock when clk is nil.
func NewScheduler(cfg SchedulerConfig, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.DetectEvery <= 0 {
		cfg.DetectEvery = 1
	}
	if cfg.FrameStride <= 0 {
		cfg.FrameStride = 1
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}

	return &Scheduler{
		cfg:      cfg,
		clock:    clk,
		interval: time.Duration(float64(time.Second) / fps),
	}
}

//Interval is the pacing period of one frame.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

//SetStride changes the raw frame stride, used when a live source switches profile.
func (s *Scheduler) SetStride(stride int) {
	if stride <= 0 {
		stride = 1
	}
	s.cfg.FrameStride = stride
}

//Delay returns how long to wait before consuming the next raw frame.
//The first call starts the session clock.
func (s *Scheduler) Delay() time.Duration {
	if !s.cfg.Paced {
		return 0
	}
	now := s.clock.Now()
	if !s.started {
		s.started = true
		s.start = now
	}

	expected := s.start.Add(time.Duration(s.raw) * s.interval)
	if d := expected.Sub(now); d > 0 {
		return d
	}
	return 0
}

//Wait suspends until the next raw frame is due or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	d := s.Delay()
	if d <= 0 {
		return ctx.Err()
	}

	timer := s.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

//Next accounts for one raw frame and decides drop and detect-or-reuse.
func (s *Scheduler) Next() Decision {
	s.raw++
	d := Decision{Raw: s.raw}

	if s.raw%s.cfg.FrameStride != 0 {
		d.Drop = true
		return d
	}

	s.processed++
	d.Index = s.processed
	d.Detect = s.processed%s.cfg.DetectEvery == 0
	return d
}

//Store remembers the vehicles of the last detection frame.
func (s *Scheduler) Store(vehicles []Vehicle) {
	s.cached = vehicles
}

//Cached returns a copy of the vehicles of the last detection frame, empty before the first one.
func (s *Scheduler) Cached() []Vehicle {
	out := make([]Vehicle, len(s.cached))
	for i, v := range s.cached {
		v.BBox = append([]int(nil), v.BBox...)
		out[i] = v
	}
	return out
}
