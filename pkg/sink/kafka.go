//Package sink holds event sinks that mirror session lifecycles to external systems.
package sink

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/traffic-vision/pkg/stream"
)

const flushTimeout = 10 * time.Second

//KafkaConfig selects the cluster and topic lifecycle records go to.
type KafkaConfig struct {
	BootstrapServers string
	Topic            string
}

//producer is the subset of *kafka.Producer the sink needs.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

//Record is the JSON value written for every mirrored event.
type Record struct {
	SessionID string      `json:"session_id"`
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

//Kafka mirrors start, complete and error events of every session to a topic.
//Frame events stay on the viewer transports. Publish never blocks on the broker.
type Kafka struct {
	producer     producer
	topic        string
	clk          clock.Clock
	logger       *zap.SugaredLogger
	deliveryChan chan kafka.Event

	sent   atomic.Int64
	failed atomic.Int64

	wg        sync.WaitGroup
	closeOnce sync.Once
}

//NewKafka connects an idempotent producer to cfg.BootstrapServers.
func NewKafka(cfg KafkaConfig, logger *zap.SugaredLogger) (*Kafka, error) {
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.BootstrapServers,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          20,
		"compression.type":   "snappy",
	})
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	logger.Infow("kafka mirror ready", "topic", cfg.Topic, "servers", cfg.BootstrapServers)
	return newKafka(p, cfg.Topic, clock.New(), logger), nil
}

func newKafka(p producer, topic string, clk clock.Clock, logger *zap.SugaredLogger) *Kafka {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	k := &Kafka{
		producer:     p,
		topic:        topic,
		clk:          clk,
		logger:       logger,
		deliveryChan: make(chan kafka.Event, 256),
	}
	k.wg.Add(1)
	go k.handleDeliveryReports()
	return k
}

func (k *Kafka) handleDeliveryReports() {
	defer k.wg.Done()
	for e := range k.deliveryChan {
		m, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		if m.TopicPartition.Error != nil {
			k.failed.Add(1)
			k.logger.Warnw("kafka delivery failed", "error", m.TopicPartition.Error, "key", string(m.Key))
		}
	}
}

//Publish implements stream.EventSink.
func (k *Kafka) Publish(sessionID string, kind stream.EventKind, payload interface{}) {
	if !mirrored(kind) {
		return
	}
	msg, err := k.buildMessage(sessionID, kind, payload)
	if err != nil {
		k.logger.Warnw("kafka record not built", "session", sessionID, "event", kind, "error", err)
		return
	}
	if err := k.producer.Produce(msg, k.deliveryChan); err != nil {
		k.failed.Add(1)
		k.logger.Warnw("kafka produce failed", "session", sessionID, "event", kind, "error", err)
		return
	}
	k.sent.Add(1)
}

func mirrored(kind stream.EventKind) bool {
	switch kind {
	case stream.EventStart, stream.EventComplete, stream.EventError:
		return true
	}
	return false
}

func (k *Kafka) buildMessage(sessionID string, kind stream.EventKind, payload interface{}) (*kafka.Message, error) {
	value, err := json.Marshal(Record{
		SessionID: sessionID,
		Event:     string(kind),
		Timestamp: k.clk.Now().UTC(),
		Data:      payload,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal record")
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(sessionID),
		Value:          value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(kind)},
			{Key: "session_id", Value: []byte(sessionID)},
		},
	}, nil
}

//Stats returns produced and failed record counts.
func (k *Kafka) Stats() (sent, failed int64) {
	return k.sent.Load(), k.failed.Load()
}

//Close flushes pending records and releases the producer.
func (k *Kafka) Close() error {
	var err error
	k.closeOnce.Do(func() {
		if remaining := k.producer.Flush(int(flushTimeout.Milliseconds())); remaining > 0 {
			err = errors.Errorf("%d kafka records still queued after flush", remaining)
		}
		k.producer.Close()
		close(k.deliveryChan)
		k.wg.Wait()
	})
	return err
}
