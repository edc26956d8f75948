package servicebus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"brokerage-gateway/domain/model"
	"brokerage-gateway/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// NewServiceBus accepts either a connection string or a fully qualified
// namespace; the latter authenticates with DefaultAzureCredential.
func NewServiceBus(ctx context.Context, namespace string) (*azservicebus.Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("service bus namespace is not configured")
	}
	if strings.HasPrefix(namespace, "Endpoint=") {
		return azservicebus.NewClientFromConnectionString(namespace, nil)
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// AuditSender sends every audit record to a queue as a JSON message.
type AuditSender struct {
	sender messageSender
}

func NewAuditSender(client *azservicebus.Client, queue string) (*AuditSender, error) {
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return nil, err
	}
	return &AuditSender{sender: sender}, nil
}

func (s *AuditSender) Append(ctx context.Context, rec model.AuditRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	contentType := "application/json"
	subject := rec.Action
	msg := &azservicebus.Message{
		Body:        payload,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]interface{}{
			"status_code": rec.StatusCode,
			"attempts":    rec.Attempts,
		},
	}
	if err := s.sender.SendMessage(ctx, msg, nil); err != nil {
		return fmt.Errorf("send audit record: %w", err)
	}
	return nil
}

func (s *AuditSender) Close(ctx context.Context) {
	if err := s.sender.Close(ctx); err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while closing sender.")
	}
}
