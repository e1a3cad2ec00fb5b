package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"helpdesk-service/internal/rabbitmq"
)

// PublisherMock stands in for the domain event publisher in socket and
// handler tests, asserting on the notification-created publishes.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ rabbitmq.Publisher = (*PublisherMock)(nil)
