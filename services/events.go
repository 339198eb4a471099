package services

import (
	"context"
	"encoding/json"

	aws_pkg "github.com/Xebarter/Tina-s-Bakery-sub000/pkg/aws"
	"go.uber.org/zap"
)

// MetricsRecorder records business counters. *aws_pkg.MetricsClient satisfies it.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// EventPublisher publishes checkout domain events to SNS. A zero topic or nil
// client turns publishing into a logged no-op.
type EventPublisher struct {
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(snsClient aws_pkg.SNSPublisher, snsTopicArn string, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{snsClient: snsClient, snsTopicArn: snsTopicArn, logger: logger}
}

// Publish marshals an event and publishes it to SNS (non-fatal on error).
func (p *EventPublisher) Publish(ctx context.Context, event interface{}) {
	if p == nil {
		return
	}
	if p.snsClient == nil || p.snsTopicArn == "" {
		p.logger.Debug("SNS not configured, skipping event publish")
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal SNS event", zap.Error(err))
		return
	}
	if err := p.snsClient.Publish(ctx, p.snsTopicArn, b); err != nil {
		p.logger.Error("Failed to publish SNS event", zap.Error(err))
		return
	}
	p.logger.Info("Published SNS event", zap.String("topic", p.snsTopicArn))
}

func recordCount(ctx context.Context, m MetricsRecorder, logger *zap.Logger, name string, dims map[string]string) {
	if m == nil {
		return
	}
	if err := m.RecordCount(ctx, name, dims); err != nil {
		logger.Warn("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}
