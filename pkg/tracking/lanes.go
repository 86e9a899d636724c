package tracking

import "fmt"

//DefaultLaneCount is the number of lanes used when none is configured
const DefaultLaneCount = 4

//LaneRange is one lane's horizontal pixel range. A centroid at End is attributed to this lane.
type LaneRange struct {
	Start int
	End   int
}

//LaneClassifier partitions the frame width into equal contiguous lanes. Read-only after creation.
type LaneClassifier struct {
	width  int
	count  int
	ranges []LaneRange
}

//NewLaneClassifier computes the lane partition of [0, width) once
func NewLaneClassifier(width, count int) *LaneClassifier {
	if count <= 0 {
		count = DefaultLaneCount
	}
	if width < count {
		width = count
	}

	ranges := make([]LaneRange, count)
	for i := 0; i < count; i++ {
		ranges[i] = LaneRange{Start: i * width / count, End: (i + 1) * width / count}
	}

	return &LaneClassifier{width: width, count: count, ranges: ranges}
}

//Count returns the number of lanes
func (l *LaneClassifier) Count() int {
	return l.count
}

//Ranges returns a copy of the lane partition
func (l *LaneClassifier) Ranges() []LaneRange {
	out := make([]LaneRange, len(l.ranges))
	copy(out, l.ranges)
	return out
}

//Classify returns the lane index of a centroid x coordinate. A centroid sitting exactly on a
//boundary belongs to the lower lane; values outside the frame clamp to the first or last lane.
func (l *LaneClassifier) Classify(x int) int {
	if x <= 0 {
		return 0
	}
	if x >= l.width {
		return l.count - 1
	}

	scaled := x * l.count
	lane := scaled / l.width
	if scaled%l.width == 0 {
		lane--
	}
	return clamp(lane, 0, l.count-1)
}

//LaneKey is the reporting key of a lane index ("L1" for lane 0)
func LaneKey(lane int) string {
	return fmt.Sprintf("L%d", lane+1)
}
