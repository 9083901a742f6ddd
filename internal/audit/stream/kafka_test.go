package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"authguard/internal/audit/domain"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestNewKafkaSink_EmptyConfigReturnsNil(t *testing.T) {
	if s := NewKafkaSink(nil, "topic"); s != nil {
		t.Error("expected nil sink without brokers")
	}
	if s := NewKafkaSink([]string{"localhost:9092"}, ""); s != nil {
		t.Error("expected nil sink without topic")
	}
	var s *KafkaSink
	if err := s.Append(context.Background(), &domain.Entry{}); err != nil {
		t.Errorf("nil sink Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil sink Close: %v", err)
	}
}

func TestKafkaSink_AppendPublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	s := &KafkaSink{writer: w}
	e := &domain.Entry{ID: "a1", Action: "login", UserID: "u1", Success: true, CreatedAt: time.Now().UTC()}

	if err := s.Append(context.Background(), e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !w.closed {
		t.Error("writer should be closed")
	}
	if len(w.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "u1" {
		t.Errorf("key = %q, want u1", w.msgs[0].Key)
	}
	var got domain.Entry
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "a1" || got.Action != "login" || !got.Success {
		t.Errorf("decoded = %+v", got)
	}
}

func TestKafkaSink_WriteFailureIsNotReturned(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	s := &KafkaSink{writer: w}
	if err := s.Append(context.Background(), &domain.Entry{ID: "a1", Action: "logout"}); err != nil {
		t.Fatalf("Append returned %v; broker failures must stay in the background", err)
	}
	_ = s.Close()
}
