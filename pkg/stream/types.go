//Package stream runs the per-session detection, tracking and publishing pipeline.
//
//The frame source, the detector, the annotator and the event sink are capabilities injected
//into a Session. Everything else (pacing, detection caching, tracking, lane counting and the
//event lifecycle) is owned by the session and shares no state with other sessions.
package stream

import (
	"context"
	"image"

	"github.com/chenBenjamin97/traffic-vision/pkg/tracking"
)

//Frame is a decoded raster frame. Frames that also implement io.Closer are closed once processed.
type Frame interface {
	Bounds() image.Rectangle
}

//Metadata describes a stream as reported by its source.
type Metadata struct {
	FPS    float64
	Width  int
	Height int
	//TotalFrames is the frame count estimate, -1 when unknown (live sources).
	TotalFrames int
}

//FrameSource yields successive frames. Next returns io.EOF at the end of the stream.
type FrameSource interface {
	Metadata() Metadata
	Next(ctx context.Context) (Frame, error)
	Close() error
}

//DetectorConfig is the option set passed to a detector call.
type DetectorConfig struct {
	InferenceSize int
	ConfidenceMin float64
}

//Detector reports the vehicles found in a frame. Calls may be slow and block.
type Detector interface {
	Detect(ctx context.Context, frame Frame, cfg DetectorConfig) ([]tracking.Detection, error)
}

//EventKind names a session event.
type EventKind string

const (
	EventStart    EventKind = "start"
	EventFrame    EventKind = "frame"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

//EventSink delivers session events to a transport. Publish is fire-and-forget.
type EventSink interface {
	Publish(sessionID string, kind EventKind, payload interface{})
}

//Annotator renders the overlay of a frame event onto the frame and returns it JPEG encoded.
type Annotator interface {
	Annotate(frame Frame, ev *FrameEvent, lanes []tracking.LaneRange, quality int) ([]byte, error)
}

//Vehicle is one detection as reported to the viewer.
type Vehicle struct {
	Type       string  `json:"type"`
	BBox       []int   `json:"bbox"`
	Confidence float64 `json:"confidence"`
	//ID is the tracked identity bound to the detection, -1 when untracked.
	ID    int    `json:"id"`
	Lane  string `json:"lane,omitempty"`
	Plate string `json:"plate,omitempty"`
}

//StartEvent is the payload of EventStart.
type StartEvent struct {
	TotalFrames int     `json:"total_frames"`
	FPS         float64 `json:"fps"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Source      string  `json:"source"`
}

//FrameEvent is the payload of EventFrame.
type FrameEvent struct {
	FrameNumber   int            `json:"frame_number"`
	TotalFrames   int            `json:"total_frames"`
	Progress      float64        `json:"progress,omitempty"`
	Vehicles      []Vehicle      `json:"vehicles"`
	TotalVehicles int            `json:"total_vehicles"`
	VehicleTypes  map[string]int `json:"vehicle_types"`
	LaneCounts    map[string]int `json:"lane_counts"`
	TotalCounted  int            `json:"total_counted"`
	Cached        bool           `json:"cached"`
	Frame         string         `json:"frame,omitempty"`
	//JPEG holds the encoded annotated frame for in-process sinks. Not serialized.
	JPEG []byte `json:"-"`
}

//VideoInfo summarizes the stream in EventComplete.
type VideoInfo struct {
	FPS             float64 `json:"fps"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	TotalFrames     int     `json:"total_frames"`
	DurationSeconds float64 `json:"duration_seconds"`
}

//CompleteEvent is the payload of EventComplete.
type CompleteEvent struct {
	TotalVehicles   int            `json:"total_vehicles"`
	VehicleTypes    map[string]int `json:"vehicle_types"`
	LaneCounts      map[string]int `json:"lane_counts"`
	FramesProcessed int            `json:"frames_processed"`
	ElapsedSeconds  float64        `json:"elapsed_seconds"`
	VideoInfo       VideoInfo      `json:"video_info"`
}

//ErrorEvent is the payload of EventError.
type ErrorEvent struct {
	Message string `json:"message"`
}
