package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/i474232898/weather-tracker/internal/weather"
	"github.com/segmentio/kafka-go"
)

// mockWriter records messages instead of talking to a broker.
type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
	return m.err
}

func (m *mockWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestPublisherSendsTerminalResults(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w, 0)

	p.Notify("oslo", weather.Loading{})
	p.Notify("oslo", weather.Success{Record: weather.Record{ID: 3143244, Name: "Oslo"}, Cached: true})
	p.Notify("atlantis", weather.Failure{Message: weather.ErrNoDataAvailable.Error()})

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		t.Error("writer should be closed")
	}
	if len(w.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.messages))
	}
	if string(w.messages[0].Key) != "oslo" {
		t.Errorf("first key = %q", w.messages[0].Key)
	}

	var env weather.Envelope
	if err := json.Unmarshal(w.messages[0].Value, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != weather.StatusSuccess || !env.Cached || env.Record == nil || env.Record.ID != 3143244 {
		t.Errorf("unexpected envelope %+v", env)
	}

	if err := json.Unmarshal(w.messages[1].Value, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != weather.StatusError {
		t.Errorf("status = %s, want error", env.Status)
	}
}

func TestPublisherSurvivesWriteErrors(t *testing.T) {
	w := &mockWriter{err: errors.New("broker down")}
	p := NewPublisher(w, 0)

	p.Notify("oslo", weather.Failure{Message: "x"})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Notify after close is a no-op, and Close is idempotent.
	p.Notify("oslo", weather.Failure{Message: "y"})
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.messages) != 1 {
		t.Fatalf("expected 1 attempted message, got %d", len(w.messages))
	}
}
