package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// LogSink writes notifications to the log. It is the sink used when no
// broker is configured.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

// Send logs n.
func (s *LogSink) Send(_ context.Context, n Notification) error {
	s.log.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("recipient_id", n.Recipient.UserID),
		zap.String("recipient_email", n.Recipient.Email),
		zap.Any("payload", n.Payload),
	)
	return nil
}

// Publisher publishes raw message bodies to a broker.
type Publisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// QueueSink publishes notifications as JSON to a broker queue.
type QueueSink struct {
	pub   Publisher
	queue string
}

// NewQueueSink creates a QueueSink publishing to queue through pub.
func NewQueueSink(pub Publisher, queue string) *QueueSink {
	return &QueueSink{pub: pub, queue: queue}
}

// Send marshals n and publishes it.
func (s *QueueSink) Send(_ context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := s.pub.Publish("", s.queue, body); err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", n.Kind, err)
	}
	return nil
}

// AsyncSink hands notifications to a background worker so callers never wait
// on delivery. When the buffer is full the notification is dropped and logged.
type AsyncSink struct {
	next  Sink
	log   *zap.Logger
	queue chan Notification
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncSink starts a worker delivering to next with a buffer of size buffer.
func NewAsyncSink(next Sink, buffer int, log *zap.Logger) *AsyncSink {
	s := &AsyncSink{
		next:  next,
		log:   log,
		queue: make(chan Notification, buffer),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for n := range s.queue {
		if err := s.next.Send(context.Background(), n); err != nil {
			s.log.Warn("notification delivery failed",
				zap.String("kind", string(n.Kind)),
				zap.String("recipient_id", n.Recipient.UserID),
				zap.Error(err))
		}
	}
}

// Send enqueues n without blocking.
func (s *AsyncSink) Send(_ context.Context, n Notification) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("notification sink closed")
	}
	select {
	case s.queue <- n:
		return nil
	default:
		s.log.Warn("notification buffer full, dropping",
			zap.String("kind", string(n.Kind)),
			zap.String("recipient_id", n.Recipient.UserID))
		return fmt.Errorf("notification buffer full")
	}
}

// Close stops accepting notifications and waits for queued ones to be delivered.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}
