package yolo

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenBenjamin97/traffic-vision/pkg/tracking"
)

//head builds a [4+classes][anchors] tensor from per-anchor rows.
func head(classes int, anchors [][]float32) []float32 {
	rows := 4 + classes
	data := make([]float32, rows*len(anchors))
	for a, vals := range anchors {
		for r := 0; r < rows; r++ {
			data[r*len(anchors)+a] = vals[r]
		}
	}
	return data
}

func anchor(cx, cy, w, h float32, classes int, class int, score float32) []float32 {
	v := make([]float32, 4+classes)
	v[0], v[1], v[2], v[3] = cx, cy, w, h
	v[4+class] = score
	return v
}

func TestDecode(t *testing.T) {
	t.Parallel()

	const classes = 8
	data := head(classes, [][]float32{
		anchor(100, 100, 40, 20, classes, 2, 0.9), // car
		anchor(300, 300, 60, 60, classes, 0, 0.95), // person, not a vehicle
		anchor(500, 200, 80, 40, classes, 7, 0.2), // truck below threshold
		anchor(200, 50, 40, 40, classes, 5, 0.6),  // bus
	})

	out := Output{Data: data, Rows: 4 + classes, Anchors: 4, ScaleX: 2, ScaleY: 1, Bounds: image.Rect(0, 0, 1280, 640)}
	got := Decode(out, 0.3)

	require.Len(t, got, 2)
	assert.Equal(t, tracking.Car, got[0].Class)
	assert.Equal(t, image.Rect(160, 90, 240, 110), got[0].Rect)
	assert.Equal(t, tracking.Bus, got[1].Class)
	assert.InDelta(t, 0.6, got[1].Score, 1e-6)
}

func TestDecodeClampsToFrame(t *testing.T) {
	t.Parallel()

	const classes = 4
	data := head(classes, [][]float32{anchor(10, 10, 40, 40, classes, 2, 0.8)})
	got := Decode(Output{Data: data, Rows: 4 + classes, Anchors: 1, ScaleX: 1, ScaleY: 1, Bounds: image.Rect(0, 0, 100, 100)}, 0.3)

	require.Len(t, got, 1)
	assert.Equal(t, image.Rect(0, 0, 30, 30), got[0].Rect)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Decode(Output{Data: []float32{1, 2, 3}, Rows: 4, Anchors: 1}, 0.1))
	assert.Nil(t, Decode(Output{Data: []float32{1, 2}, Rows: 6, Anchors: 1}, 0.1))
}

func TestDetections(t *testing.T) {
	t.Parallel()

	dets := Detections([]Candidate{{Class: tracking.Bicycle, Rect: image.Rect(1, 2, 3, 4), Score: 0.5}})
	require.Len(t, dets, 1)
	assert.Equal(t, tracking.Box{X1: 1, Y1: 2, X2: 3, Y2: 4}, dets[0].Box)
	assert.InDelta(t, 0.5, dets[0].Confidence, 1e-9)
}
