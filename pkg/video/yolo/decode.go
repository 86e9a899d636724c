//Package yolo decodes raw YOLOv8 detection heads into vehicle detections.
package yolo

import (
	"image"

	"github.com/chenBenjamin97/traffic-vision/pkg/tracking"
)

//Candidate is a decoded box before suppression
type Candidate struct {
	Class tracking.Class
	Rect  image.Rectangle
	Score float32
}

//Output describes a YOLOv8 head laid out as [4+classes][anchors] (cx, cy, w, h, class scores...)
type Output struct {
	Data    []float32
	Rows    int
	Anchors int
	//ScaleX and ScaleY map inference coordinates back to the source frame
	ScaleX float64
	ScaleY float64
	//Bounds is the source frame, boxes are clamped to it
	Bounds image.Rectangle
}

//Decode extracts vehicle candidates scoring at least minScore
func Decode(out Output, minScore float64) []Candidate {
	if out.Rows < 5 || len(out.Data) < out.Rows*out.Anchors {
		return nil
	}

	at := func(row, anchor int) float32 {
		return out.Data[row*out.Anchors+anchor]
	}

	candidates := make([]Candidate, 0)
	for a := 0; a < out.Anchors; a++ {
		bestClass, bestScore := -1, float32(0)
		for c := 0; c < out.Rows-4; c++ {
			if s := at(4+c, a); s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestClass < 0 || float64(bestScore) < minScore {
			continue
		}

		class, ok := tracking.ClassFromCOCO(bestClass)
		if !ok {
			continue
		}

		cx, cy, w, h := float64(at(0, a)), float64(at(1, a)), float64(at(2, a)), float64(at(3, a))
		rect := image.Rect(
			int((cx-w/2)*out.ScaleX),
			int((cy-h/2)*out.ScaleY),
			int((cx+w/2)*out.ScaleX),
			int((cy+h/2)*out.ScaleY),
		).Intersect(out.Bounds)
		if rect.Empty() {
			continue
		}

		candidates = append(candidates, Candidate{Class: class, Rect: rect, Score: bestScore})
	}

	return candidates
}

//Detections converts candidates into tracker input
func Detections(candidates []Candidate) []tracking.Detection {
	out := make([]tracking.Detection, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, tracking.Detection{
			Class:      c.Class,
			Box:        tracking.Box{X1: c.Rect.Min.X, Y1: c.Rect.Min.Y, X2: c.Rect.Max.X, Y2: c.Rect.Max.Y},
			Confidence: float64(c.Score),
		})
	}
	return out
}
