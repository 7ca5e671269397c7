package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bus-stop-inventory/internal/model"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, msg)
	return args.Error(0)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

func TestPublishAuditEncodesEntry(t *testing.T) {
	t.Parallel()

	ch := &mockChannel{}
	p := &AMQPPublisher{queue: "audit.entries", ch: ch}

	entry := model.AuditEntry{ID: 7, UserEmail: "admin@busstops.local", Action: model.AuditDelete, ResourceType: "bus_stop"}

	ch.On("PublishWithContext", "", "audit.entries", mock.MatchedBy(func(msg amqp.Publishing) bool {
		var decoded model.AuditEntry
		if err := json.Unmarshal(msg.Body, &decoded); err != nil {
			return false
		}
		return msg.ContentType == "application/json" &&
			msg.DeliveryMode == amqp.Persistent &&
			msg.Type == "delete" &&
			decoded.ID == 7
	})).Return(nil)

	require.NoError(t, p.publish(context.Background(), entry))
	ch.AssertExpectations(t)
}

func TestPublishAuditWrapsError(t *testing.T) {
	t.Parallel()

	ch := &mockChannel{}
	p := &AMQPPublisher{queue: "audit.entries", ch: ch}
	ch.On("PublishWithContext", "", "audit.entries", mock.Anything).Return(errors.New("channel closed"))

	err := p.publish(context.Background(), model.AuditEntry{Action: model.AuditCreate})
	require.ErrorContains(t, err, "publish audit entry")
}

func TestNop(t *testing.T) {
	t.Parallel()

	var p Publisher = Nop{}
	require.NoError(t, p.PublishAudit(context.Background(), model.AuditEntry{}))
	require.NoError(t, p.Close())
}
