package events

import (
	"context"

	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
	"github.com/zeitwerk/zeitwerk-backend/pkg/messaging"
)

// Publisher publishes timesheet domain events to the timesheet exchange
type Publisher struct {
	*messaging.Publisher
}

// NewPublisher creates a publisher bound to the timesheet events exchange
func NewPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*Publisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeTimesheetEvents, "timesheet-service", log)
	if err != nil {
		return nil, err
	}

	return &Publisher{Publisher: publisher}, nil
}

// NopPublisher drops all events. Used by CLI invocations that run without a
// message broker.
type NopPublisher struct{}

// Publish discards the event
func (NopPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	return nil
}
