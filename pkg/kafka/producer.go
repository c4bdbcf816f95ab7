package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON or raw payloads and records per-topic metrics.
type Producer struct {
	w    Writer
	comp string
	now  func() time.Time
}

// NewProducer builds a synchronous writer. Async writes are not offered:
// callers need to know whether a result reached the broker.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    1,
		BatchBytes:   8 << 20,
		BatchTimeout: 10 * time.Millisecond,
		HashByKey:    true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers are required")
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
	}
	return NewProducerWithWriter(w, cfg.Compression), nil
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w Writer, compression string) *Producer {
	initProducerMetrics()
	return &Producer{w: w, comp: compression, now: time.Now}
}

// Message is one record to publish. Value is sent as-is when it is []byte or
// string and JSON-encoded otherwise.
type Message struct {
	Key     []byte
	Value   any
	Headers map[string]string
}

// Publish sends a single record to topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value any, headers map[string]string) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value, Headers: headers}})
}

// PublishBatch sends messages in one write.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	start := time.Now()
	msgs := make([]kafka.Message, 0, len(messages))
	var total int64
	for _, m := range messages {
		v, err := encode(m.Value)
		if err != nil {
			return err
		}
		km := kafka.Message{Topic: topic, Key: m.Key, Value: v, Time: p.now()}
		for k, hv := range m.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(hv)})
		}
		msgs = append(msgs, km)
		total += int64(len(v))
	}

	err := p.w.WriteMessages(ctx, msgs...)
	observeProducer(topic, p.comp, total, len(msgs), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.w == nil {
		return nil
	}
	return p.w.Close()
}

func encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

var (
	producerMsgs    *prometheus.CounterVec
	producerBytes   *prometheus.CounterVec
	producerLatency *prometheus.HistogramVec
	producerOnce    sync.Once
)

func initProducerMetrics() {
	producerOnce.Do(func() {
		producerMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sessionlens_kafka_producer_messages_total",
			Help: "Messages published to Kafka by result",
		}, []string{"topic", "result"})
		producerBytes = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sessionlens_kafka_producer_bytes_total",
			Help: "Payload bytes published to Kafka",
		}, []string{"topic", "compression"})
		producerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sessionlens_kafka_producer_publish_seconds",
			Help:    "Kafka write latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}

func observeProducer(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMsgs.WithLabelValues(topic, result).Add(float64(count))
	if err == nil {
		producerBytes.WithLabelValues(topic, comp).Add(float64(bytes))
	}
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
