// README: Audit trail of promotion consumption (Kafka topic or log sink).
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"velo/internal/logger"
	"velo/internal/types"
)

// Event records one successful promotion consumption.
type Event struct {
	PromotionID types.ID  `json:"promotion_id"`
	RideID      string    `json:"ride_id"`
	Timestamp   time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes events as JSON keyed by promotion id, carrying the
// caller's trace context in the message headers.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.PromotionID),
		Value: body,
		Time:  e.Timestamp,
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{headers: &msg.Headers})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// LogPublisher writes events to the service log when no broker is configured.
type LogPublisher struct {
	log logger.ILogger
}

func NewLogPublisher(log logger.ILogger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Info("promotion consumed",
		logger.String("promotion_id", string(e.PromotionID)),
		logger.String("ride_id", e.RideID),
		logger.Time("timestamp", e.Timestamp),
	)
	return nil
}

type headerCarrier struct {
	headers *[]kafka.Header
}

var _ propagation.TextMapCarrier = headerCarrier{}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}
