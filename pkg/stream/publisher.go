package stream

import (
	"sync"

	"github.com/pkg/errors"
)

type publisherState int

const (
	stateIdle publisherState = iota
	stateStarted
	stateCompleted
	stateFailed
)

//Publisher enforces the session event lifecycle on top of an EventSink:
//start once, frames with strictly increasing numbers, then exactly one of complete or error.
type Publisher struct {
	sessionID string
	sink      EventSink

	mu        sync.Mutex
	state     publisherState
	lastFrame int
}

//NewPublisher returns a publisher for one session.
func NewPublisher(sessionID string, sink EventSink) *Publisher {
	return &Publisher{sessionID: sessionID, sink: sink}
}

//SessionID returns the transport supplied session identifier.
func (p *Publisher) SessionID() string {
	return p.sessionID
}

//Start publishes the stream metadata. Allowed once, before anything else.
func (p *Publisher) Start(ev StartEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateIdle {
		return errors.Wrap(ErrEventOrder, "start already published")
	}
	p.state = stateStarted
	p.sink.Publish(p.sessionID, EventStart, ev)
	return nil
}

//Frame publishes one processed frame.
func (p *Publisher) Frame(ev *FrameEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateStarted {
		return errors.Wrapf(ErrEventOrder, "frame %d outside of a running session", ev.FrameNumber)
	}
	if ev.FrameNumber <= p.lastFrame {
		return errors.Wrapf(ErrEventOrder, "frame %d after frame %d", ev.FrameNumber, p.lastFrame)
	}
	p.lastFrame = ev.FrameNumber
	p.sink.Publish(p.sessionID, EventFrame, ev)
	return nil
}

//Complete publishes the final counts. Not allowed after an error.
func (p *Publisher) Complete(ev CompleteEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateStarted {
		return errors.Wrap(ErrEventOrder, "complete outside of a running session")
	}
	p.state = stateCompleted
	p.sink.Publish(p.sessionID, EventComplete, ev)
	return nil
}

//Error publishes a terminal failure. At most once, and never after complete.
func (p *Publisher) Error(message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateCompleted || p.state == stateFailed {
		return errors.Wrap(ErrEventOrder, "session already terminated")
	}
	p.state = stateFailed
	p.sink.Publish(p.sessionID, EventError, ErrorEvent{Message: message})
	return nil
}

//Terminated reports whether complete or error was published.
func (p *Publisher) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == stateCompleted || p.state == stateFailed
}
