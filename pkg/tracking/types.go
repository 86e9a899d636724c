package tracking

import "math"

//Class is a vehicle category reported by the detector
type Class string

const (
	Car        Class = "car"
	Motorcycle Class = "motorcycle"
	Bus        Class = "bus"
	Truck      Class = "truck"
	Bicycle    Class = "bicycle"
)

//Classes lists the vehicle taxonomy in reporting order
var Classes = []Class{Car, Motorcycle, Bus, Truck, Bicycle}

//cocoClasses maps COCO dataset class ids to the vehicle taxonomy
var cocoClasses = map[int]Class{
	1: Bicycle,
	2: Car,
	3: Motorcycle,
	5: Bus,
	7: Truck,
}

//ClassFromCOCO returns the vehicle class for a COCO class id, false if the id is not a vehicle
func ClassFromCOCO(id int) (Class, bool) {
	c, ok := cocoClasses[id]
	return c, ok
}

//Point is a pixel position in source frame coordinates
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

//Distance returns the euclidean distance between two points
func (p Point) Distance(o Point) float64 {
	return math.Hypot(float64(p.X-o.X), float64(p.Y-o.Y))
}

//Box is an axis-aligned bounding box, X1 < X2 and Y1 < Y2
type Box struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

//Centroid is the integer midpoint of the box
func (b Box) Centroid() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

//Slice returns the box as [x1, y1, x2, y2]
func (b Box) Slice() []int {
	return []int{b.X1, b.Y1, b.X2, b.Y2}
}

//Clamp keeps the box inside a width x height frame
func (b Box) Clamp(width, height int) Box {
	return Box{
		X1: clamp(b.X1, 0, width),
		Y1: clamp(b.Y1, 0, height),
		X2: clamp(b.X2, 0, width),
		Y2: clamp(b.Y2, 0, height),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

//Detection is one object reported by the detector for a single frame
type Detection struct {
	Class      Class
	Box        Box
	Confidence float64
}

//Track is a snapshot of a tracked object right after a tracker update
type Track struct {
	ID       int
	Centroid Point
	Class    Class
	Box      Box
	Missed   int
	Plate    string
	//New is set on the update that registered the object
	New bool
	//Detection is the index of the incoming detection bound to this object on the last update, -1 if missed
	Detection int
}
