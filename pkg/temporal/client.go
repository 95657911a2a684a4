package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	"google.golang.org/protobuf/types/known/durationpb"
)

type Client struct {
	TClient   client.Client
	TSClient  client.ScheduleClient
	HostPort  string
	Namespace string

	logger *zap.Logger

	// Task Queues
	StatsQueue string // stats - refresh workflow and activities

	// Schedule IDs
	RefreshScheduleID string
}

// NewClient dials Temporal and checks the connection.
func NewClient(ctx context.Context, logger *zap.Logger, hostPort, namespace string) (*Client, error) {
	logger.Info("Connecting to Temporal", zap.String("host", hostPort), zap.String("namespace", namespace))
	tClient, err := Dial(ctx, hostPort, namespace, NewZapAdapter(logger))
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		tClient.Close()
		return nil, err
	}

	return &Client{
		TClient:   tClient,
		TSClient:  tClient.ScheduleClient(),
		HostPort:  hostPort,
		Namespace: namespace,
		logger:    logger,
		// hardcoded, could be configurable if we need it
		StatsQueue:        "stats",
		RefreshScheduleID: "stats:refresh",
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// GetScheduleSpec returns a schedule spec for the given interval.
func GetScheduleSpec(interval time.Duration) client.ScheduleSpec {
	return client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}}
}

// EnsureNamespace creates the namespace when it does not exist yet.
func (c *Client) EnsureNamespace(ctx context.Context, retention time.Duration) error {
	nsClient, err := client.NewNamespaceClient(client.Options{
		HostPort: c.HostPort,
		Logger:   NewZapAdapter(c.logger),
	})
	if err != nil {
		return fmt.Errorf("failed to create namespace client: %w", err)
	}
	defer nsClient.Close()

	for attempt := 0; attempt < 5; attempt++ {
		_, err = nsClient.Describe(ctx, c.Namespace)
		if err == nil {
			return nil
		}

		var notFound *serviceerror.NamespaceNotFound
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to describe namespace: %w", err)
		}

		if attempt == 0 {
			err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
				Namespace:                        c.Namespace,
				WorkflowExecutionRetentionPeriod: durationpb.New(retention),
			})
			if err != nil {
				var exists *serviceerror.NamespaceAlreadyExists
				if !errors.As(err, &exists) {
					return fmt.Errorf("failed to register namespace: %w", err)
				}
			}
		}

		// registration takes a moment to propagate
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return fmt.Errorf("namespace %s not available after registration", c.Namespace)
}

// Close closes the Temporal connection.
func (c *Client) Close() {
	c.TClient.Close()
}
