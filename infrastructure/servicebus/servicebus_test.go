package servicebus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"brokerage-gateway/domain/model"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   []*azservicebus.Message
	err    error
	closed bool
}

func (f *fakeSender) SendMessage(_ context.Context, message *azservicebus.Message, _ *azservicebus.SendMessageOptions) error {
	f.sent = append(f.sent, message)
	return f.err
}

func (f *fakeSender) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestAuditSender_Append(t *testing.T) {
	fake := &fakeSender{}
	s := &AuditSender{sender: fake}

	rec := model.AuditRecord{Action: "REVOKE_TOKEN", StatusCode: 500, Attempts: 1, ErrorMessage: "revoke access token failed: status=500"}
	require.NoError(t, s.Append(context.Background(), rec))

	require.Len(t, fake.sent, 1)
	msg := fake.sent[0]
	assert.Equal(t, "REVOKE_TOKEN", *msg.Subject)
	assert.Equal(t, "application/json", *msg.ContentType)
	assert.Equal(t, 500, msg.ApplicationProperties["status_code"])

	var got model.AuditRecord
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, rec.ErrorMessage, got.ErrorMessage)

	s.Close(context.Background())
	assert.True(t, fake.closed)
}

func TestAuditSender_AppendError(t *testing.T) {
	s := &AuditSender{sender: &fakeSender{err: errors.New("amqp link detached")}}
	err := s.Append(context.Background(), model.AuditRecord{Action: "REQUEST_TOKEN"})
	require.ErrorContains(t, err, "amqp link detached")
}

func TestNewServiceBus_RequiresNamespace(t *testing.T) {
	_, err := NewServiceBus(context.Background(), "")
	require.Error(t, err)
}
