package api

import (
	"sync"

	"github.com/hybridgroup/mjpeg"

	"github.com/chenBenjamin97/traffic-vision/pkg/stream"
)

//PreviewSink republishes the annotated frames of every session as an MJPEG stream
type PreviewSink struct {
	mu      sync.RWMutex
	streams map[string]*mjpeg.Stream
}

func NewPreviewSink() *PreviewSink {
	return &PreviewSink{streams: make(map[string]*mjpeg.Stream)}
}

//Publish implements stream.EventSink
func (p *PreviewSink) Publish(sessionID string, kind stream.EventKind, payload interface{}) {
	switch kind {
	case stream.EventStart:
		p.open(sessionID)
	case stream.EventFrame:
		ev, ok := payload.(*stream.FrameEvent)
		if !ok || len(ev.JPEG) == 0 {
			return
		}
		if s := p.Stream(sessionID); s != nil {
			s.UpdateJPEG(ev.JPEG)
		}
	}
}

func (p *PreviewSink) open(sessionID string) *mjpeg.Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.streams[sessionID]
	if !ok {
		s = mjpeg.NewStream()
		p.streams[sessionID] = s
	}
	return s
}

//Stream returns the preview of a session, nil before its first start event
func (p *PreviewSink) Stream(sessionID string) *mjpeg.Stream {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.streams[sessionID]
}

//Drop forgets the preview of a disconnected viewer
func (p *PreviewSink) Drop(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.streams, sessionID)
}
