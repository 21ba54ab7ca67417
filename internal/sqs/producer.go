// Package sqs carries host events out over SQS and remote notification
// payloads in.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds SQS configuration.
type Config struct {
	Region         string
	Endpoint       string // optional, e.g. LocalStack
	EventsQueueURL string // host events out
	RemoteQueueURL string // remote payloads in
}

// Event types published for the host.
const (
	EventWillPresent  = "will_present"
	EventUserResponse = "user_response"
)

// Event is the envelope sent for every forwarded delegate event.
type Event struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Identifier string `json:"identifier,omitempty"`
	Action     string `json:"action,omitempty"`
	OccurredAt int64  `json:"occurred_at"`
}

type sendAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Producer publishes host events.
type Producer struct {
	client   sendAPI
	queueURL string
	now      func() time.Time
	logger   *zap.Logger
}

func newClient(ctx context.Context, cfg Config) (*sqs.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// NewProducer creates a producer for cfg.EventsQueueURL.
func NewProducer(ctx context.Context, cfg Config, logger *zap.Logger) (*Producer, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("sqs producer initialized", zap.String("queue_url", cfg.EventsQueueURL))

	return &Producer{
		client:   client,
		queueURL: cfg.EventsQueueURL,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Publish sends one event and returns the SQS message id.
func (p *Producer) Publish(ctx context.Context, ev Event) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt == 0 {
		ev.OccurredAt = p.now().UnixMilli()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	result, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.Type),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("sqs send failed: %w", err)
	}

	return aws.ToString(result.MessageId), nil
}

// WillPresentHandler returns a handler suitable for the will-present hook.
// Publishing failures are logged; the handler never blocks presentation for
// longer than timeout.
func (p *Producer) WillPresentHandler(timeout time.Duration) func(identifier string) {
	return func(identifier string) {
		p.publishDetached(timeout, Event{Type: EventWillPresent, Identifier: identifier})
	}
}

// UserResponseHandler is the response-hook counterpart of WillPresentHandler.
func (p *Producer) UserResponseHandler(timeout time.Duration) func(actionIdentifier string) {
	return func(action string) {
		p.publishDetached(timeout, Event{Type: EventUserResponse, Action: action})
	}
}

func (p *Producer) publishDetached(timeout time.Duration, ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if _, err := p.Publish(ctx, ev); err != nil {
		p.logger.Warn("failed to publish host event",
			zap.Error(err),
			zap.String("type", ev.Type),
		)
	}
}
