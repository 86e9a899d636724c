package tracking

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLaneClassifier(t *testing.T) {
	t.Parallel()

	lanes := NewLaneClassifier(400, 4)

	cases := []struct {
		name string
		x    int
		want int
	}{
		{"origin", 0, 0},
		{"inside first lane", 50, 0},
		{"first boundary goes to lower lane", 100, 0},
		{"just past first boundary", 101, 1},
		{"second boundary", 200, 1},
		{"third boundary", 300, 2},
		{"inside last lane", 399, 3},
		{"frame width clamps to last lane", 400, 3},
		{"beyond frame clamps to last lane", 900, 3},
		{"negative clamps to first lane", -5, 0},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, lanes.Classify(tc.x))
		})
	}
}

func TestLaneClassifierUnevenWidth(t *testing.T) {
	t.Parallel()

	lanes := NewLaneClassifier(1000, 3)
	assert.Equal(t, 3, lanes.Count())
	assert.Equal(t, []LaneRange{{0, 333}, {333, 666}, {666, 1000}}, lanes.Ranges())
	assert.Equal(t, 0, lanes.Classify(333))
	assert.Equal(t, 1, lanes.Classify(334))
	assert.Equal(t, 2, lanes.Classify(667))
}

func TestLaneClassifierDefaults(t *testing.T) {
	t.Parallel()

	lanes := NewLaneClassifier(800, 0)
	assert.Equal(t, DefaultLaneCount, lanes.Count())
	assert.Equal(t, "L1", LaneKey(0))
	assert.Equal(t, "L4", LaneKey(3))
}

func TestSessionStatsLaneCounts(t *testing.T) {
	t.Parallel()

	stats := NewSessionStats(3)
	stats.Register(Car, 0)
	stats.Register(Bus, 2)
	stats.Register(Car, 2)
	stats.Register(Truck, 7) // out of range lanes are ignored, class still counts

	assert.Equal(t, map[string]int{"L1": 1, "L2": 0, "L3": 2}, stats.LaneCounts())
	assert.Equal(t, 4, stats.Total())
	assert.Equal(t, 1, stats.ClassCount(Truck))
}

func TestMockPlateFormat(t *testing.T) {
	t.Parallel()

	re := regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z]{2}[0-9]{4}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, re, MockPlate())
	}
}

func TestClassFromCOCO(t *testing.T) {
	t.Parallel()

	c, ok := ClassFromCOCO(2)
	assert.True(t, ok)
	assert.Equal(t, Car, c)

	_, ok = ClassFromCOCO(0) // person
	assert.False(t, ok)
}

func TestBoxCentroidAndClamp(t *testing.T) {
	t.Parallel()

	b := Box{X1: 10, Y1: 20, X2: 31, Y2: 41}
	assert.Equal(t, Point{X: 20, Y: 30}, b.Centroid())
	assert.Equal(t, Box{X1: 0, Y1: 0, X2: 50, Y2: 40}, Box{X1: -5, Y1: -1, X2: 80, Y2: 40}.Clamp(50, 40))
}
