package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"brokerage-gateway/domain/model"
	"brokerage-gateway/infrastructure/logger"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

func NewPubSub(ctx context.Context, projectID string, opts ...option.ClientOption) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project id is not configured")
	}
	return pubsub.NewClient(ctx, projectID, opts...)
}

// AuditPublisher publishes every audit record as a JSON message.
type AuditPublisher struct {
	topic *pubsub.Topic
}

// NewAuditPublisher binds to topicName, creating the topic when it does not exist.
func NewAuditPublisher(ctx context.Context, client *pubsub.Client, topicName string) (*AuditPublisher, error) {
	topic := client.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", topicName, err)
	}
	if !exists {
		logger.GetLogger().WithField("topic", topicName).Info("Audit topic doesn't exist - creating it")
		if topic, err = client.CreateTopic(ctx, topicName); err != nil {
			return nil, fmt.Errorf("create topic %s: %w", topicName, err)
		}
	}
	return &AuditPublisher{topic: topic}, nil
}

func (p *AuditPublisher) Append(ctx context.Context, rec model.AuditRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"action":      rec.Action,
			"status_code": strconv.Itoa(rec.StatusCode),
		},
	}
	serverID, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish audit record: %w", err)
	}
	logger.GetLogger().WithField("server ID", serverID).Debug("Audit record published")
	return nil
}

// Stop flushes pending messages.
func (p *AuditPublisher) Stop() {
	p.topic.Stop()
}
