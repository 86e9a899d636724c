package stream

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

//LiveSource is a FrameSource fed by pushed camera frames. It holds a single frame:
//a frame pushed before the previous one was consumed replaces it and counts as a drop.
type LiveSource struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  Frame
	closed bool

	drops  atomic.Uint64
	pushed atomic.Uint64
}

//NewLiveSource returns an empty, open live source.
func NewLiveSource() *LiveSource {
	l := &LiveSource{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

//Metadata implements FrameSource. Live streams declare no rate, size or length.
func (l *LiveSource) Metadata() Metadata {
	return Metadata{TotalFrames: -1}
}

//Push offers a frame without blocking. It returns false once the source is closed.
func (l *LiveSource) Push(f Frame) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		closeFrame(f)
		return false
	}
	if l.frame != nil {
		l.drops.Add(1)
		closeFrame(l.frame)
	}
	l.frame = f
	l.pushed.Add(1)
	l.cond.Signal()
	return true
}

//Next implements FrameSource. It blocks until a frame is pushed, the source is closed (io.EOF)
//or ctx is done.
func (l *LiveSource) Next(ctx context.Context) (Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stop()

	l.mu.Lock()
	defer l.mu.Unlock()

	for l.frame == nil && !l.closed && ctx.Err() == nil {
		l.cond.Wait()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.frame == nil {
		return nil, io.EOF
	}

	f := l.frame
	l.frame = nil
	return f, nil
}

//Close ends the stream. A frame still waiting is discarded.
func (l *LiveSource) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.frame != nil {
		closeFrame(l.frame)
		l.frame = nil
	}
	l.cond.Broadcast()
	return nil
}

//Drops returns how many pushed frames were replaced before being consumed.
func (l *LiveSource) Drops() uint64 {
	return l.drops.Load()
}

//Pushed returns how many frames were accepted.
func (l *LiveSource) Pushed() uint64 {
	return l.pushed.Load()
}

func closeFrame(f Frame) {
	if c, ok := f.(io.Closer); ok {
		_ = c.Close()
	}
}
