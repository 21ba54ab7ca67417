package sqs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

// RemoteMessage is a remote notification payload pulled off the queue.
type RemoteMessage struct {
	Payload       map[string]any
	ReceiptHandle string
}

type receiveAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Consumer reads remote notification payloads.
type Consumer struct {
	client   receiveAPI
	queueURL string
	logger   *zap.Logger
}

// NewConsumer creates a consumer for cfg.RemoteQueueURL.
func NewConsumer(ctx context.Context, cfg Config, logger *zap.Logger) (*Consumer, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("sqs consumer initialized", zap.String("queue_url", cfg.RemoteQueueURL))

	return &Consumer{
		client:   client,
		queueURL: cfg.RemoteQueueURL,
		logger:   logger,
	}, nil
}

// Receive long-polls for up to limit payloads. Bodies that are not JSON
// objects are deleted and skipped.
func (c *Consumer) Receive(ctx context.Context, limit int32) ([]RemoteMessage, error) {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: limit,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   60,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive failed: %w", err)
	}

	messages := make([]RemoteMessage, 0, len(result.Messages))
	for _, m := range result.Messages {
		handle := aws.ToString(m.ReceiptHandle)

		var payload map[string]any
		if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &payload); err != nil {
			c.logger.Warn("dropping malformed remote payload",
				zap.Error(err),
				zap.String("message_id", aws.ToString(m.MessageId)),
			)
			if err := c.Delete(ctx, handle); err != nil {
				c.logger.Warn("failed to delete malformed message", zap.Error(err))
			}
			continue
		}
		messages = append(messages, RemoteMessage{Payload: payload, ReceiptHandle: handle})
	}
	return messages, nil
}

// Delete removes a handled message.
func (c *Consumer) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete failed: %w", err)
	}
	return nil
}
