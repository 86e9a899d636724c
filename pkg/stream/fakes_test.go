package stream

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/chenBenjamin97/traffic-vision/pkg/tracking"
)

type fakeFrame struct {
	n      int
	rect   image.Rectangle
	mu     sync.Mutex
	closed bool
}

func newFakeFrame(n, width, height int) *fakeFrame {
	return &fakeFrame{n: n, rect: image.Rect(0, 0, width, height)}
}

func (f *fakeFrame) Bounds() image.Rectangle { return f.rect }

func (f *fakeFrame) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFrame) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeSource struct {
	meta   Metadata
	frames []*fakeFrame
	//failAt makes Next fail when reading that frame number
	failAt int
	pos    int

	mu     sync.Mutex
	closed bool
}

func newFakeSource(count, width, height int, fps float64) *fakeSource {
	s := &fakeSource{meta: Metadata{FPS: fps, Width: width, Height: height, TotalFrames: count}}
	for i := 1; i <= count; i++ {
		s.frames = append(s.frames, newFakeFrame(i, width, height))
	}
	return s
}

func (s *fakeSource) Metadata() Metadata { return s.meta }

func (s *fakeSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	if f.n == s.failAt {
		return nil, io.ErrUnexpectedEOF
	}
	return f, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSource) opener() Opener {
	return func(context.Context) (FrameSource, error) { return s, nil }
}

//fakeDetector answers by raw frame number and records every call.
type fakeDetector struct {
	mu       sync.Mutex
	byFrame  map[int][]tracking.Detection
	failures map[int]bool
	calls    []int
	configs  []DetectorConfig
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{byFrame: map[int][]tracking.Detection{}, failures: map[int]bool{}}
}

func (d *fakeDetector) Detect(_ context.Context, frame Frame, cfg DetectorConfig) ([]tracking.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := frame.(*fakeFrame).n
	d.calls = append(d.calls, n)
	d.configs = append(d.configs, cfg)
	if d.failures[n] {
		return nil, io.ErrClosedPipe
	}
	return d.byFrame[n], nil
}

func (d *fakeDetector) Calls() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.calls...)
}

type recordedEvent struct {
	kind    EventKind
	payload interface{}
}

type recordingSink struct {
	mu      sync.Mutex
	events  []recordedEvent
	onEvent func(kind EventKind, payload interface{})
}

func (s *recordingSink) Publish(_ string, kind EventKind, payload interface{}) {
	s.mu.Lock()
	s.events = append(s.events, recordedEvent{kind: kind, payload: payload})
	cb := s.onEvent
	s.mu.Unlock()
	if cb != nil {
		cb(kind, payload)
	}
}

func (s *recordingSink) kinds() []EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventKind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.kind)
	}
	return out
}

func (s *recordingSink) frames() []*FrameEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*FrameEvent
	for _, e := range s.events {
		if e.kind == EventFrame {
			out = append(out, e.payload.(*FrameEvent))
		}
	}
	return out
}

func (s *recordingSink) last() recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type fakeAnnotator struct {
	err error
}

func (a fakeAnnotator) Annotate(Frame, *FrameEvent, []tracking.LaneRange, int) ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	return []byte("jpeg"), nil
}

func vehicleAt(class tracking.Class, cx, cy int) tracking.Detection {
	return tracking.Detection{
		Class:      class,
		Box:        tracking.Box{X1: cx - 20, Y1: cy - 10, X2: cx + 20, Y2: cy + 10},
		Confidence: 0.8,
	}
}

func fixedPlate() string { return "TEST0001" }
