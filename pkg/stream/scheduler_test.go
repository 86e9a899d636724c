package stream

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerDetectEvery(t *testing.T) {
	t.Parallel()

	s := NewScheduler(SchedulerConfig{DetectEvery: 3}, clock.NewMock())

	var detected []int
	for i := 1; i <= 6; i++ {
		d := s.Next()
		assert.Equal(t, i, d.Raw)
		assert.Equal(t, i, d.Index)
		assert.False(t, d.Drop)
		if d.Detect {
			detected = append(detected, d.Raw)
		}
	}
	assert.Equal(t, []int{3, 6}, detected)
}

func TestSchedulerStride(t *testing.T) {
	t.Parallel()

	s := NewScheduler(SchedulerConfig{FrameStride: 2}, nil)

	want := []Decision{
		{Raw: 1, Drop: true},
		{Raw: 2, Index: 1, Detect: true},
		{Raw: 3, Drop: true},
		{Raw: 4, Index: 2, Detect: true},
	}
	for _, w := range want {
		assert.Equal(t, w, s.Next())
	}

	s.SetStride(1)
	assert.Equal(t, Decision{Raw: 5, Index: 3, Detect: true}, s.Next())
}

func TestSchedulerDelay(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	s := NewScheduler(SchedulerConfig{Paced: true, FPS: 10}, mock)
	require.Equal(t, 100*time.Millisecond, s.Interval())

	assert.Zero(t, s.Delay(), "first frame is due immediately")
	s.Next()

	assert.Equal(t, 100*time.Millisecond, s.Delay())
	mock.Add(30 * time.Millisecond)
	assert.Equal(t, 70*time.Millisecond, s.Delay())

	s.Next()
	assert.Equal(t, 170*time.Millisecond, s.Delay())

	//Slow processing: behind schedule, no wait.
	mock.Add(500 * time.Millisecond)
	assert.Zero(t, s.Delay())
}

func TestSchedulerDefaultFPS(t *testing.T) {
	t.Parallel()

	fps := float64(DefaultFPS)
	s := NewScheduler(SchedulerConfig{Paced: true}, clock.NewMock())
	assert.Equal(t, time.Duration(float64(time.Second)/fps), s.Interval())
}

func TestSchedulerUnpaced(t *testing.T) {
	t.Parallel()

	s := NewScheduler(SchedulerConfig{FPS: 1}, clock.NewMock())
	for i := 0; i < 5; i++ {
		s.Next()
		assert.Zero(t, s.Delay())
	}
}

func TestSchedulerWaitCancelled(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	s := NewScheduler(SchedulerConfig{Paced: true, FPS: 1}, mock)
	require.NoError(t, s.Wait(context.Background()))
	s.Next()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.Canceled)
}

func TestSchedulerWaitFires(t *testing.T) {
	t.Parallel()

	s := NewScheduler(SchedulerConfig{Paced: true, FPS: 50}, nil)
	require.NoError(t, s.Wait(context.Background()))
	s.Next()

	start := time.Now()
	require.NoError(t, s.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestSchedulerCache(t *testing.T) {
	t.Parallel()

	s := NewScheduler(SchedulerConfig{}, nil)
	assert.Empty(t, s.Cached())

	s.Store([]Vehicle{{Type: "car", ID: 4}})
	cached := s.Cached()
	require.Len(t, cached, 1)
	cached[0].ID = 99
	assert.Equal(t, 4, s.Cached()[0].ID, "callers get a copy")
}

func TestLiveProfile(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ConstrainedProfile, LiveProfile(320, 0))
	assert.Equal(t, FullProfile, LiveProfile(400, 0))
	assert.Equal(t, FullProfile, LiveProfile(1280, 400))
	assert.Equal(t, ConstrainedProfile, LiveProfile(640, 800))

	assert.Equal(t, DetectorConfig{InferenceSize: 320, ConfidenceMin: 0.4}, ConstrainedProfile.Detector)
	assert.Equal(t, 2, ConstrainedProfile.FrameStride)
	assert.Equal(t, DetectorConfig{InferenceSize: 640, ConfidenceMin: 0.3}, FullProfile.Detector)
	assert.Equal(t, 1, FullProfile.FrameStride)
}

func TestSchedulerCachedIsDeepCopy(t *testing.T) {
	t.Parallel()

	s := NewScheduler(SchedulerConfig{FPS: 30}, clock.NewMock())
	s.Store([]Vehicle{{Type: "car", BBox: []int{1, 2, 3, 4}, ID: 0}})

	c := s.Cached()
	c[0].BBox[0] = 999
	c[0].Type = "bus"

	again := s.Cached()
	assert.Equal(t, []int{1, 2, 3, 4}, again[0].BBox)
	assert.Equal(t, "car", again[0].Type)
}
