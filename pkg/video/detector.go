package video

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/traffic-vision/pkg/stream"
	"github.com/chenBenjamin97/traffic-vision/pkg/tracking"
	"github.com/chenBenjamin97/traffic-vision/pkg/video/yolo"
)

const defaultInferenceSize = 640

//nmsThreshold is the IoU above which the weaker of two overlapping boxes is suppressed
const nmsThreshold = 0.45

//YOLODetector runs a YOLOv8 ONNX export through the OpenCV DNN module.
//A gocv Net is not reentrant, share it across sessions through Serialized.
type YOLODetector struct {
	net gocv.Net
}

//NewYOLODetector loads the model at modelPath on the CPU backend
func NewYOLODetector(modelPath string) (*YOLODetector, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, errors.Errorf("could not load detection model %q", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set dnn backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set dnn target")
	}
	return &YOLODetector{net: net}, nil
}

func (d *YOLODetector) Detect(ctx context.Context, frame stream.Frame, cfg stream.DetectorConfig) ([]tracking.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := frame.(*Frame)
	if !ok {
		return nil, errors.Errorf("unsupported frame type %T", frame)
	}

	size := cfg.InferenceSize
	if size <= 0 {
		size = defaultInferenceSize
	}

	blob := gocv.BlobFromImage(f.mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	//YOLOv8 emits [1, 4+classes, anchors]
	dims := out.Size()
	if len(dims) != 3 {
		return nil, errors.Errorf("unexpected detector output shape %v", dims)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read detector output")
	}

	bounds := f.Bounds()
	candidates := yolo.Decode(yolo.Output{
		Data:    data,
		Rows:    dims[1],
		Anchors: dims[2],
		ScaleX:  float64(bounds.Dx()) / float64(size),
		ScaleY:  float64(bounds.Dy()) / float64(size),
		Bounds:  bounds,
	}, cfg.ConfidenceMin)

	return yolo.Detections(suppress(candidates, float32(cfg.ConfidenceMin))), nil
}

//suppress runs class agnostic non-maximum suppression over the decoded candidates
func suppress(candidates []yolo.Candidate, minScore float32) []yolo.Candidate {
	if len(candidates) == 0 {
		return nil
	}
	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = c.Rect
		scores[i] = c.Score
	}

	indices := gocv.NMSBoxes(boxes, scores, minScore, nmsThreshold)
	kept := make([]yolo.Candidate, 0, len(indices))
	for _, i := range indices {
		kept = append(kept, candidates[i])
	}
	return kept
}

func (d *YOLODetector) Close() error {
	return d.net.Close()
}

type serialized struct {
	mu sync.Mutex
	d  stream.Detector
}

//Serialized guards a detector so concurrent sessions take turns calling it
func Serialized(d stream.Detector) stream.Detector {
	if _, ok := d.(*serialized); ok {
		return d
	}
	return &serialized{d: d}
}

func (s *serialized) Detect(ctx context.Context, frame stream.Frame, cfg stream.DetectorConfig) ([]tracking.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.Detect(ctx, frame, cfg)
}
