package video

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/traffic-vision/pkg/stream"
	"github.com/chenBenjamin97/traffic-vision/pkg/tracking"
)

var (
	whiteRGB     = color.RGBA{255, 255, 255, 0}
	laneColor    = color.RGBA{255, 255, 0, 0}
	bannerColor  = color.RGBA{0, 0, 0, 0}
	defaultColor = color.RGBA{0, 255, 0, 0}
)

//classColors gives every vehicle type its own box color
var classColors = map[string]color.RGBA{
	string(tracking.Car):        {0, 255, 0, 0},
	string(tracking.Motorcycle): {255, 0, 255, 0},
	string(tracking.Bus):        {0, 0, 255, 0},
	string(tracking.Truck):      {255, 128, 0, 0},
	string(tracking.Bicycle):    {0, 255, 255, 0},
}

//Annotator draws the overlay in place on the frame and encodes it as JPEG
type Annotator struct{}

func NewAnnotator() Annotator {
	return Annotator{}
}

func (Annotator) Annotate(frame stream.Frame, ev *stream.FrameEvent, lanes []tracking.LaneRange, quality int) ([]byte, error) {
	f, ok := frame.(*Frame)
	if !ok {
		return nil, errors.Errorf("unsupported frame type %T", frame)
	}
	mat := f.Mat()
	height := mat.Rows()

	//dividers only, the outer edges are the frame itself
	for i, l := range lanes {
		if i == 0 {
			continue
		}
		gocv.Line(mat, image.Pt(l.Start, 0), image.Pt(l.Start, height), laneColor, 2)
	}
	for i, l := range lanes {
		gocv.PutText(mat, tracking.LaneKey(i), image.Pt(l.Start+5, height-10), gocv.FontHersheyPlain, 1.2, laneColor, 2)
	}

	for _, v := range ev.Vehicles {
		plotVehicle(mat, v)
	}

	banner := fmt.Sprintf("Vehicles: %d  Counted: %d", ev.TotalVehicles, ev.TotalCounted)
	gocv.Rectangle(mat, image.Rect(0, 0, 290, 30), bannerColor, -1) //thickness -1 == filled rectangle
	gocv.PutText(mat, banner, image.Pt(8, 21), gocv.FontHersheyPlain, 1.3, whiteRGB, 2)

	return encodeJPEG(mat, quality)
}

//plotVehicle plots the bounding box and writes the class and id above it
func plotVehicle(mat *gocv.Mat, v stream.Vehicle) {
	if len(v.BBox) != 4 {
		return
	}
	plotColor, ok := classColors[v.Type]
	if !ok {
		plotColor = defaultColor
	}

	box := image.Rect(v.BBox[0], v.BBox[1], v.BBox[2], v.BBox[3])
	gocv.Rectangle(mat, box, plotColor, 2)

	label := v.Type
	if v.ID >= 0 {
		label = fmt.Sprintf("%s #%d", v.Type, v.ID)
	}
	textSize := gocv.GetTextSize(label, gocv.FontHersheyPlain, 1, 1)
	textOrigin := image.Pt(box.Min.X, box.Min.Y-5)
	if textOrigin.Y < textSize.Y+5 {
		textOrigin.Y = box.Min.Y + textSize.Y + 5
	}

	background := image.Rect(textOrigin.X, textOrigin.Y-textSize.Y-4, textOrigin.X+textSize.X+6, textOrigin.Y+4)
	gocv.Rectangle(mat, background, plotColor, -1)
	gocv.PutText(mat, label, image.Pt(textOrigin.X+3, textOrigin.Y), gocv.FontHersheyPlain, 1, whiteRGB, 1)
}

func encodeJPEG(mat *gocv.Mat, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 70
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	defer buf.Close()

	//the native buffer is freed on Close
	return append([]byte(nil), buf.GetBytes()...), nil
}
