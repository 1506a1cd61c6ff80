package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/i474232898/weather-tracker/internal/weather"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
// It allows the writer to be replaced in tests.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends terminal weather results to a Kafka topic, keyed by location.
// Writes happen on a background goroutine so resolution never waits on the broker.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
	queue   chan kafka.Message

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewKafkaPublisher creates a Publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *Publisher {
	return NewPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}, 10*time.Second)
}

// NewPublisher starts a Publisher over writer.
func NewPublisher(writer MessageWriter, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &Publisher{
		writer:  writer,
		timeout: timeout,
		queue:   make(chan kafka.Message, 100),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Notify implements weather.Notifier. Loading results are not published.
func (p *Publisher) Notify(key string, result weather.Result) {
	if !weather.Terminal(result) {
		return
	}

	value, err := json.Marshal(weather.NewEnvelope(key, result, time.Now()))
	if err != nil {
		log.Printf("events: marshal result for %s: %v", key, err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- kafka.Message{Key: []byte(key), Value: value}:
	default:
		log.Printf("events: queue full, dropping result for %s", key)
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			log.Printf("events: kafka write error for %s: %v", msg.Key, err)
		}
		cancel()
	}
}

// Close flushes queued messages and closes the writer.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		p.wg.Wait()
		err = p.writer.Close()
	})
	return err
}
