package tracking

import (
	"sort"
)

//DefaultMaxDisappeared is how many consecutive missed updates an object survives
const DefaultMaxDisappeared = 3

//DefaultMaxDistance is the largest centroid displacement (pixels) accepted as the same object between updates
const DefaultMaxDistance = 120.0

//TrackerConfig holds the survival and matching policy of a CentroidTracker
type TrackerConfig struct {
	MaxDisappeared int
	MaxDistance    float64
	//Labeler produces the immutable opaque label of a newly registered object. Defaults to MockPlate.
	Labeler func() string
}

type trackedObject struct {
	id        int
	centroid  Point
	box       Box
	class     Class
	missed    int
	plate     string
	isNew     bool
	detection int
}

//CentroidTracker links per-frame detections into objects with stable identities.
//It is owned by a single session and is not safe for concurrent use.
type CentroidTracker struct {
	cfg     TrackerConfig
	nextID  int
	objects map[int]*trackedObject
}

//NewCentroidTracker returns an empty tracker, zero config values fall back to the defaults
func NewCentroidTracker(cfg TrackerConfig) *CentroidTracker {
	if cfg.MaxDisappeared <= 0 {
		cfg.MaxDisappeared = DefaultMaxDisappeared
	}
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = DefaultMaxDistance
	}
	if cfg.Labeler == nil {
		cfg.Labeler = MockPlate
	}

	return &CentroidTracker{
		cfg:     cfg,
		objects: make(map[int]*trackedObject),
	}
}

//Len returns the number of live objects
func (t *CentroidTracker) Len() int {
	return len(t.objects)
}

//Plate returns the label assigned to a live object at registration
func (t *CentroidTracker) Plate(id int) (string, bool) {
	obj, ok := t.objects[id]
	if !ok {
		return "", false
	}
	return obj.plate, true
}

func (t *CentroidTracker) register(d Detection, index int) {
	t.objects[t.nextID] = &trackedObject{
		id:        t.nextID,
		centroid:  d.Box.Centroid(),
		box:       d.Box,
		class:     d.Class,
		plate:     t.cfg.Labeler(),
		isNew:     true,
		detection: index,
	}
	t.nextID++
}

//age increments the missed counter and drops the object once it exceeds MaxDisappeared
func (t *CentroidTracker) age(obj *trackedObject) {
	obj.missed++
	obj.detection = -1
	if obj.missed > t.cfg.MaxDisappeared {
		delete(t.objects, obj.id)
	}
}

//Update feeds one frame of detections to the tracker and returns every live object, sorted by identity.
//
//Matching is greedy nearest-neighbour, not an optimal assignment: incoming detections are visited in
//ascending order of their closest existing object and each takes its nearest object not yet taken,
//unless that object is further than MaxDistance. Unmatched objects age. Unmatched detections are only
//registered when the frame has at least as many detections as there are live objects.
func (t *CentroidTracker) Update(detections []Detection) []Track {
	for _, obj := range t.objects {
		obj.isNew = false
	}

	if len(t.objects) == 0 {
		for i, d := range detections {
			t.register(d, i)
		}
		return t.snapshot()
	}

	ids := make([]int, 0, len(t.objects))
	for id := range t.objects {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	if len(detections) == 0 {
		for _, id := range ids {
			t.age(t.objects[id])
		}
		return t.snapshot()
	}

	//distances[row][col]: incoming detection row vs existing object ids[col]
	distances := make([][]float64, len(detections))
	rowMin := make([]float64, len(detections))
	for row, d := range detections {
		c := d.Box.Centroid()
		distances[row] = make([]float64, len(ids))
		for col, id := range ids {
			distances[row][col] = c.Distance(t.objects[id].centroid)
			if col == 0 || distances[row][col] < rowMin[row] {
				rowMin[row] = distances[row][col]
			}
		}
	}

	rows := make([]int, len(detections))
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rowMin[rows[i]] < rowMin[rows[j]]
	})

	usedRows := make(map[int]bool)
	usedCols := make(map[int]bool)

	for _, row := range rows {
		col := -1
		for c := range ids {
			if usedCols[c] {
				continue
			}
			if col == -1 || distances[row][c] < distances[row][col] {
				col = c
			}
		}
		if col == -1 {
			break //every existing object is taken
		}
		if distances[row][col] > t.cfg.MaxDistance {
			continue
		}

		obj := t.objects[ids[col]]
		obj.centroid = detections[row].Box.Centroid()
		obj.box = detections[row].Box
		obj.missed = 0
		obj.detection = row
		usedRows[row] = true
		usedCols[col] = true
	}

	for col, id := range ids {
		if !usedCols[col] {
			t.age(t.objects[id])
		}
	}

	if len(detections) >= len(ids) {
		for row, d := range detections {
			if !usedRows[row] {
				t.register(d, row)
			}
		}
	}

	return t.snapshot()
}

func (t *CentroidTracker) snapshot() []Track {
	tracks := make([]Track, 0, len(t.objects))
	for _, obj := range t.objects {
		tracks = append(tracks, Track{
			ID:        obj.id,
			Centroid:  obj.centroid,
			Class:     obj.class,
			Box:       obj.box,
			Missed:    obj.missed,
			Plate:     obj.plate,
			New:       obj.isNew,
			Detection: obj.detection,
		})
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].ID < tracks[j].ID })
	return tracks
}
