package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Mailer delivers a notification to its recipient.
type Mailer interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogMailer stands in for a real email provider and only logs deliveries.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

// Deliver logs n.
func (m *LogMailer) Deliver(_ context.Context, n Notification) error {
	m.log.Info("delivering notification",
		zap.String("kind", string(n.Kind)),
		zap.String("to", n.Recipient.Email))
	return nil
}

// DeliveryHandler decodes queued notifications and passes them to the mailer.
func DeliveryHandler(m Mailer) func(amqp.Delivery) error {
	return func(d amqp.Delivery) error {
		var n Notification
		if err := json.Unmarshal(d.Body, &n); err != nil {
			return fmt.Errorf("failed to decode notification: %w", err)
		}
		if n.Recipient.Email == "" {
			return fmt.Errorf("notification %s has no recipient address", n.Kind)
		}
		return m.Deliver(context.Background(), n)
	}
}
