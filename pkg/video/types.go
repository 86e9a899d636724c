//Package video adapts gocv to the stream capabilities: capture, decode, detection and overlay.
package video

import (
	"image"

	"gocv.io/x/gocv"
)

//Frame is a decoded BGR frame owned by the pipeline until Close
type Frame struct {
	mat gocv.Mat
}

//NewFrame takes ownership of the given mat
func NewFrame(mat gocv.Mat) *Frame {
	return &Frame{mat: mat}
}

func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.mat.Cols(), f.mat.Rows())
}

//Mat exposes the underlying mat for drawing, it stays owned by the frame
func (f *Frame) Mat() *gocv.Mat {
	return &f.mat
}

func (f *Frame) Close() error {
	return f.mat.Close()
}
