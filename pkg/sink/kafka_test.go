package sink

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenBenjamin97/traffic-vision/pkg/stream"
)

type fakeProducer struct {
	mu       sync.Mutex
	messages []*kafka.Message
	failWith error
	queued   int
	closed   bool
}

func (p *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakeProducer) Flush(int) int { return p.queued }

func (p *fakeProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *fakeProducer) sent() []*kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*kafka.Message(nil), p.messages...)
}

func TestKafkaMirrorsLifecycleOnly(t *testing.T) {
	t.Parallel()

	p := &fakeProducer{}
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	k := newKafka(p, "sessions", clk, nil)

	k.Publish("s1", stream.EventStart, stream.StartEvent{TotalFrames: 10, FPS: 25, Source: "file"})
	k.Publish("s1", stream.EventFrame, &stream.FrameEvent{FrameNumber: 1})
	k.Publish("s1", stream.EventComplete, stream.CompleteEvent{TotalVehicles: 4})
	require.NoError(t, k.Close())

	msgs := p.sent()
	require.Len(t, msgs, 2)
	assert.True(t, p.closed)

	first := msgs[0]
	assert.Equal(t, "sessions", *first.TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, first.TopicPartition.Partition)
	assert.Equal(t, []byte("s1"), first.Key)
	assert.Equal(t, []kafka.Header{
		{Key: "event", Value: []byte("start")},
		{Key: "session_id", Value: []byte("s1")},
	}, first.Headers)

	var rec struct {
		SessionID string          `json:"session_id"`
		Event     string          `json:"event"`
		Timestamp time.Time       `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Value, &rec))
	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, "start", rec.Event)
	assert.True(t, rec.Timestamp.Equal(clk.Now()))
	assert.JSONEq(t, `{"total_frames":10,"fps":25,"width":0,"height":0,"source":"file"}`, string(rec.Data))

	assert.Equal(t, []byte("complete"), msgs[1].Headers[0].Value)

	sent, failed := k.Stats()
	assert.Equal(t, int64(2), sent)
	assert.Zero(t, failed)
}

func TestKafkaProduceFailureIsCounted(t *testing.T) {
	t.Parallel()

	p := &fakeProducer{failWith: errors.New("queue full")}
	k := newKafka(p, "sessions", clock.NewMock(), nil)

	k.Publish("s2", stream.EventError, stream.ErrorEvent{Message: "boom"})

	sent, failed := k.Stats()
	assert.Zero(t, sent)
	assert.Equal(t, int64(1), failed)
	require.NoError(t, k.Close())
}

func TestKafkaCloseReportsUnflushed(t *testing.T) {
	t.Parallel()

	p := &fakeProducer{queued: 3}
	k := newKafka(p, "sessions", clock.NewMock(), nil)

	assert.Error(t, k.Close())
	assert.NoError(t, k.Close(), "second close is a no-op")
}
