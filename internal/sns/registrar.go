// Package sns registers the application for remote delivery by creating an
// SNS platform endpoint for its device token.
package sns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/platform"
)

var ErrNoDeviceToken = errors.New("no device token configured")

// Config selects the platform application and the token to register.
type Config struct {
	Region                 string
	Endpoint               string // optional, e.g. LocalStack
	PlatformApplicationARN string
	DeviceToken            string
}

// Listener is told how registration went. bridge.Hooks satisfies it.
type Listener interface {
	DidRegisterForRemoteNotifications(ctx context.Context, deviceToken string)
	DidFailToRegisterForRemoteNotifications(ctx context.Context, err error)
}

type endpointAPI interface {
	CreatePlatformEndpoint(ctx context.Context, in *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
}

// Registrar implements platform.RemoteRegistrar. The call returns nothing;
// the outcome is reported to the listener.
type Registrar struct {
	client   endpointAPI
	appARN   string
	token    string
	listener Listener
	logger   *zap.Logger
}

var _ platform.RemoteRegistrar = (*Registrar)(nil)

// NewRegistrar loads the default AWS config for cfg.Region.
func NewRegistrar(ctx context.Context, cfg Config, listener Listener, logger *zap.Logger) (*Registrar, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	logger.Info("sns registrar initialized",
		zap.String("platform_application_arn", cfg.PlatformApplicationARN),
	)

	return &Registrar{
		client:   client,
		appARN:   cfg.PlatformApplicationARN,
		token:    cfg.DeviceToken,
		listener: listener,
		logger:   logger,
	}, nil
}

// RegisterForRemoteNotifications creates (or finds) the platform endpoint
// for the configured device token.
func (r *Registrar) RegisterForRemoteNotifications(ctx context.Context) {
	endpointARN, err := r.register(ctx)
	if err != nil {
		r.logger.Warn("remote registration failed", zap.Error(err))
		r.listener.DidFailToRegisterForRemoteNotifications(ctx, err)
		return
	}

	r.logger.Info("registered for remote notifications", zap.String("endpoint_arn", endpointARN))
	r.listener.DidRegisterForRemoteNotifications(ctx, r.token)
}

func (r *Registrar) register(ctx context.Context) (string, error) {
	if r.token == "" {
		return "", ErrNoDeviceToken
	}

	// CreatePlatformEndpoint is idempotent for an unchanged token.
	out, err := r.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(r.appARN),
		Token:                  aws.String(r.token),
	})
	if err != nil {
		return "", fmt.Errorf("create platform endpoint: %w", err)
	}
	return aws.ToString(out.EndpointArn), nil
}
