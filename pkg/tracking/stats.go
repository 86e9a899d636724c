package tracking

//SessionStats holds the cumulative counters of one session. Counters only move on Register.
type SessionStats struct {
	classes map[Class]int
	lanes   []int
	total   int
}

//NewSessionStats returns zeroed counters for every known class and laneCount lanes
func NewSessionStats(laneCount int) *SessionStats {
	s := &SessionStats{
		classes: make(map[Class]int, len(Classes)),
		lanes:   make([]int, laneCount),
	}
	for _, c := range Classes {
		s.classes[c] = 0
	}
	return s
}

//Register counts a newly registered object once, in its class and lane
func (s *SessionStats) Register(class Class, lane int) {
	s.classes[class]++
	if lane >= 0 && lane < len(s.lanes) {
		s.lanes[lane]++
	}
	s.total++
}

//Total returns how many objects were ever registered
func (s *SessionStats) Total() int {
	return s.total
}

//ClassCount returns the cumulative count of one class
func (s *SessionStats) ClassCount(c Class) int {
	return s.classes[c]
}

//ClassCounts returns a copy of the per-class counters keyed by class name
func (s *SessionStats) ClassCounts() map[string]int {
	out := make(map[string]int, len(s.classes))
	for c, n := range s.classes {
		out[string(c)] = n
	}
	return out
}

//LaneCounts returns a copy of the per-lane counters keyed by lane name
func (s *SessionStats) LaneCounts() map[string]int {
	out := make(map[string]int, len(s.lanes))
	for i, n := range s.lanes {
		out[LaneKey(i)] = n
	}
	return out
}
