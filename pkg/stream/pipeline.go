package stream

import (
	"context"
	"encoding/base64"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/traffic-vision/pkg/tracking"
)

//Pipeline is the per-frame transform of one session: detect or reuse, track, count, annotate.
//It owns the session's tracker, lane partition and counters.
type Pipeline struct {
	logger    *zap.SugaredLogger
	detector  Detector
	annotator Annotator
	scheduler *Scheduler
	profile   Profile

	tracker   *tracking.CentroidTracker
	stats     *tracking.SessionStats
	laneCount int
	lanes     *tracking.LaneClassifier
	//laneOf is the lane attributed to each live identity at registration
	laneOf map[int]int

	totalFrames int
}

//NewPipeline wires a pipeline around a session scheduler. width may be zero when the source
//does not know its dimensions yet; the lane partition is then taken from the first frame.
func NewPipeline(logger *zap.SugaredLogger, detector Detector, annotator Annotator, scheduler *Scheduler,
	profile Profile, trackerCfg tracking.TrackerConfig, laneCount, width, totalFrames int) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if laneCount <= 0 {
		laneCount = tracking.DefaultLaneCount
	}

	p := &Pipeline{
		logger:      logger,
		detector:    detector,
		annotator:   annotator,
		scheduler:   scheduler,
		profile:     profile,
		tracker:     tracking.NewCentroidTracker(trackerCfg),
		stats:       tracking.NewSessionStats(laneCount),
		laneCount:   laneCount,
		laneOf:      make(map[int]int),
		totalFrames: totalFrames,
	}
	if width > 0 {
		p.lanes = tracking.NewLaneClassifier(width, laneCount)
	}
	return p
}

//Stats exposes the session counters.
func (p *Pipeline) Stats() *tracking.SessionStats {
	return p.stats
}

//Profile returns the active quality profile.
func (p *Pipeline) Profile() Profile {
	return p.profile
}

//SetProfile switches the detector configuration and JPEG quality used for the next frames.
func (p *Pipeline) SetProfile(profile Profile) {
	p.profile = profile
}

//Process turns one kept frame into its frame event.
func (p *Pipeline) Process(ctx context.Context, frame Frame, d Decision) *FrameEvent {
	if p.lanes == nil {
		p.lanes = tracking.NewLaneClassifier(frame.Bounds().Dx(), p.laneCount)
	}

	ev := &FrameEvent{
		FrameNumber: d.Index,
		TotalFrames: p.totalFrames,
	}

	if d.Detect {
		detections, err := p.detector.Detect(ctx, frame, p.profile.Detector)
		if err != nil {
			p.logger.Warnw("detection failed, reusing previous result",
				"frame", d.Index, "error", errors.Wrap(ErrDetectorFailure, err.Error()))
			ev.Vehicles = p.scheduler.Cached()
			ev.Cached = true
		} else {
			ev.Vehicles = p.track(detections)
			p.scheduler.Store(ev.Vehicles)
		}
	} else {
		ev.Vehicles = p.scheduler.Cached()
		ev.Cached = true
	}

	ev.TotalVehicles = len(ev.Vehicles)
	ev.VehicleTypes = p.stats.ClassCounts()
	ev.LaneCounts = p.stats.LaneCounts()
	ev.TotalCounted = p.stats.Total()
	if p.totalFrames > 0 {
		ev.Progress = float64(d.Index) / float64(p.totalFrames) * 100
	}

	if p.annotator != nil {
		jpeg, err := p.annotator.Annotate(frame, ev, p.lanes.Ranges(), p.profile.JPEGQuality)
		if err != nil {
			p.logger.Warnw("could not annotate frame", "frame", d.Index, "error", err)
		} else {
			ev.JPEG = jpeg
			ev.Frame = base64.StdEncoding.EncodeToString(jpeg)
		}
	}

	return ev
}

//track advances the tracker with fresh detections, counts new objects and binds identities to detections.
func (p *Pipeline) track(detections []tracking.Detection) []Vehicle {
	tracks := p.tracker.Update(detections)

	vehicles := make([]Vehicle, len(detections))
	for i, det := range detections {
		vehicles[i] = Vehicle{
			Type:       string(det.Class),
			BBox:       det.Box.Slice(),
			Confidence: det.Confidence,
			ID:         -1,
		}
	}

	live := make(map[int]bool, len(tracks))
	for _, tr := range tracks {
		live[tr.ID] = true
		if tr.New {
			lane := p.lanes.Classify(tr.Centroid.X)
			p.laneOf[tr.ID] = lane
			p.stats.Register(tr.Class, lane)
		}
		if tr.Detection < 0 || tr.Detection >= len(vehicles) {
			continue
		}
		v := &vehicles[tr.Detection]
		v.ID = tr.ID
		v.Plate = tr.Plate
		v.Lane = tracking.LaneKey(p.laneOf[tr.ID])
	}

	for id := range p.laneOf {
		if !live[id] {
			delete(p.laneOf, id)
		}
	}

	return vehicles
}
