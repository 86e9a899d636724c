package video

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/traffic-vision/pkg/stream"
)

//Capture reads frames from a video file or a capture device
type Capture struct {
	cap  *gocv.VideoCapture
	meta stream.Metadata
}

//OpenFile opens a video file, the frame count comes from the container
func OpenFile(path string) (*Capture, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		if cap != nil {
			cap.Close()
		}
		return nil, errors.Wrapf(stream.ErrSourceUnavailable, "open %q: %v", path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, errors.Wrapf(stream.ErrSourceUnavailable, "open %q", path)
	}

	c := &Capture{cap: cap}
	c.meta = c.readMetadata(int(cap.Get(gocv.VideoCaptureFrameCount)))
	return c, nil
}

//OpenDevice opens a local camera, it has no known frame count
func OpenDevice(id int) (*Capture, error) {
	cap, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		if cap != nil {
			cap.Close()
		}
		return nil, errors.Wrapf(stream.ErrSourceUnavailable, "open device %d: %v", id, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, errors.Wrapf(stream.ErrSourceUnavailable, "open device %d", id)
	}

	c := &Capture{cap: cap}
	c.meta = c.readMetadata(-1)
	return c, nil
}

//FileOpener defers opening the file until the session runs
func FileOpener(path string) stream.Opener {
	return func(context.Context) (stream.FrameSource, error) {
		return OpenFile(path)
	}
}

func (c *Capture) readMetadata(total int) stream.Metadata {
	if total <= 0 {
		total = -1
	}
	return stream.Metadata{
		FPS:         c.cap.Get(gocv.VideoCaptureFPS),
		Width:       int(c.cap.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(c.cap.Get(gocv.VideoCaptureFrameHeight)),
		TotalFrames: total,
	}
}

func (c *Capture) Metadata() stream.Metadata {
	return c.meta
}

//Next reads the next frame, io.EOF once the capture runs dry
func (c *Capture) Next(ctx context.Context) (stream.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat := gocv.NewMat()
	if ok := c.cap.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, io.EOF
	}
	return NewFrame(mat), nil
}

func (c *Capture) Close() error {
	return c.cap.Close()
}

//DecodeFrame decodes an encoded image (JPEG or PNG) pushed by a camera client
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(stream.ErrInvalidInput, "empty frame")
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, errors.Wrapf(stream.ErrInvalidInput, "decode frame: %v", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, errors.Wrap(stream.ErrInvalidInput, "decode frame: not an image")
	}
	return NewFrame(mat), nil
}
