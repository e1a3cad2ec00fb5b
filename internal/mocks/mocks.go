package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"helpdesk-service/internal/models"
	"helpdesk-service/internal/repositories"
)

type ChatMessageRepositoryMock struct {
	mock.Mock
}

func (m *ChatMessageRepositoryMock) AppendMessage(ctx context.Context, room, name, sender, role, message string) (models.ChatMessage, error) {
	args := m.Called(ctx, room, name, sender, role, message)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *ChatMessageRepositoryMock) ListMessages(ctx context.Context, room string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, room)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

type TimelineRepositoryMock struct {
	mock.Mock
}

func (m *TimelineRepositoryMock) AppendEntry(ctx context.Context, ticket, title, subtitle string) (models.TimelineEntry, error) {
	args := m.Called(ctx, ticket, title, subtitle)
	var entry models.TimelineEntry
	if val := args.Get(0); val != nil {
		entry = val.(models.TimelineEntry)
	}
	return entry, args.Error(1)
}

func (m *TimelineRepositoryMock) ListEntries(ctx context.Context, ticket string) ([]models.TimelineEntry, error) {
	args := m.Called(ctx, ticket)
	var entries []models.TimelineEntry
	if val := args.Get(0); val != nil {
		entries = val.([]models.TimelineEntry)
	}
	return entries, args.Error(1)
}

func (m *TimelineRepositoryMock) DeleteEntry(ctx context.Context, ticket string, id int64) error {
	args := m.Called(ctx, ticket, id)
	return args.Error(0)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) AppendNotification(ctx context.Context, receiver, message, ticket string) (models.Notification, error) {
	args := m.Called(ctx, receiver, message, ticket)
	var n models.Notification
	if val := args.Get(0); val != nil {
		n = val.(models.Notification)
	}
	return n, args.Error(1)
}

func (m *NotificationRepositoryMock) ListRecent(ctx context.Context, receiver string, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, receiver, limit)
	var ns []models.Notification
	if val := args.Get(0); val != nil {
		ns = val.([]models.Notification)
	}
	return ns, args.Error(1)
}

var _ repositories.ChatMessageRepository = (*ChatMessageRepositoryMock)(nil)
var _ repositories.TimelineRepository = (*TimelineRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
