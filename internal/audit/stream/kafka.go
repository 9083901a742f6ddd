// Package stream publishes audit entries to Kafka for downstream search (see cmd/worker).
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"authguard/internal/audit/domain"
)

// WriteTimeout bounds each asynchronous Kafka write.
const WriteTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink implements audit.Sink by publishing JSON entries to a topic.
// Append never blocks on the broker: writes run in the background.
type KafkaSink struct {
	writer messageWriter
	wg     sync.WaitGroup
}

// NewKafkaSink returns a sink writing to topic on brokers, or nil when either is empty.
// Call Close when shutting down.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// Append serializes e and writes it asynchronously, keyed by user id so a user's
// entries stay ordered within a partition. Only encoding errors are returned.
func (s *KafkaSink) Append(_ context.Context, e *domain.Entry) error {
	if s == nil || s.writer == nil || e == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{Value: payload}
	if e.UserID != "" {
		msg.Key = []byte(e.UserID)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
		defer cancel()
		if err := s.writer.WriteMessages(ctx, msg); err != nil {
			log.Error().Err(err).Str("action", e.Action).Str("id", e.ID).Msg("audit: kafka write failed")
		}
	}()
	return nil
}

// Close waits for in-flight writes and closes the writer. Safe on a nil sink.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	s.wg.Wait()
	return s.writer.Close()
}
