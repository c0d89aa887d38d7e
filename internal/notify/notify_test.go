package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"lendloop/internal/notify"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPublisher is a mock implementation of notify.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(exchange, routingKey string, body []byte) error {
	args := m.Called(exchange, routingKey, body)
	return args.Error(0)
}

// recordingSink collects notifications in memory.
type recordingSink struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingSink) Send(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// MockMailer is a mock implementation of notify.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Deliver(ctx context.Context, n notify.Notification) error {
	args := m.Called(n)
	return args.Error(0)
}

func sample() notify.Notification {
	return notify.Notification{
		Recipient: notify.Recipient{UserID: "u-1", Email: "ana@example.com", Name: "Ana"},
		Kind:      notify.KindLoanApproved,
		Payload:   map[string]any{"item_name": "Drill"},
		CreatedAt: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	}
}

func TestQueueSink_Send(t *testing.T) {
	pub := new(MockPublisher)
	sink := notify.NewQueueSink(pub, "notification_queue")

	pub.On("Publish", "", "notification_queue", mock.MatchedBy(func(body []byte) bool {
		var n notify.Notification
		return json.Unmarshal(body, &n) == nil && n.Kind == notify.KindLoanApproved && n.Recipient.Email == "ana@example.com"
	})).Return(nil).Once()

	assert.NoError(t, sink.Send(context.Background(), sample()))
	pub.AssertExpectations(t)

	pub.On("Publish", "", "notification_queue", mock.Anything).Return(errors.New("channel closed")).Once()
	err := sink.Send(context.Background(), sample())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
	pub.AssertExpectations(t)
}

func TestAsyncSink_DeliversAndDrainsOnClose(t *testing.T) {
	rec := &recordingSink{}
	sink := notify.NewAsyncSink(rec, 10, zap.NewNop())

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Send(context.Background(), sample()))
	}
	sink.Close()

	assert.Equal(t, 5, rec.count())
	assert.Error(t, sink.Send(context.Background(), sample()))
	sink.Close()
}

func TestLogSink_Send(t *testing.T) {
	assert.NoError(t, notify.NewLogSink(zap.NewNop()).Send(context.Background(), sample()))
}

func TestDeliveryHandler(t *testing.T) {
	mailer := new(MockMailer)
	handler := notify.DeliveryHandler(mailer)

	body, err := json.Marshal(sample())
	require.NoError(t, err)

	mailer.On("Deliver", mock.MatchedBy(func(n notify.Notification) bool {
		return n.Recipient.Email == "ana@example.com"
	})).Return(nil).Once()
	assert.NoError(t, handler(amqp.Delivery{Body: body}))
	mailer.AssertExpectations(t)

	assert.Error(t, handler(amqp.Delivery{Body: []byte("{not json")}))

	noAddr := sample()
	noAddr.Recipient.Email = ""
	body, _ = json.Marshal(noAddr)
	assert.Error(t, handler(amqp.Delivery{Body: body}))
}
