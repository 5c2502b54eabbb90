package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-bookchat-be/internal/model"
	"ai-bookchat-be/internal/pkg/logger"
	"ai-bookchat-be/internal/repository"
	"ai-bookchat-be/pkg/events"
	pktNats "ai-bookchat-be/pkg/nats"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationDelivery defines how to push real-time updates.
// Typically implemented by the WebSocket Hub.
type NotificationDelivery interface {
	Send(userID uuid.UUID, notification model.Notification)
	Broadcast(notification model.Notification)
}

type NotificationService struct {
	repo       repository.NotificationRepository
	subscriber *pktNats.Subscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
}

func NewNotificationService(repo repository.NotificationRepository, sub *pktNats.Subscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		repo:       repo,
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start() {
	err := s.subscriber.Subscribe("events.>", "notif-service-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("NotificationService", "Failed to start notification subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("NotificationService", "Notification service started, listening to events.>", nil)
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	typeCode := strings.TrimPrefix(event.EventType(), "events.")

	s.logger.Info("NotificationService", fmt.Sprintf("Processing event: %s", typeCode), map[string]interface{}{"type": typeCode})

	title, message, ok := s.render(typeCode, event.Payload())
	if !ok {
		// Not every bus event becomes a user notification.
		s.logger.Debug("NotificationService", fmt.Sprintf("No notification mapped for '%s'", typeCode), nil)
		return nil
	}

	userID, ok := payloadUserID(event.Payload())
	if !ok {
		s.logger.Warn("NotificationService", fmt.Sprintf("Event '%s' has no user_id, skipping", typeCode), nil)
		return nil
	}

	notif := s.buildNotification(userID, typeCode, title, message, event)

	if err := s.repo.CreateNotification(ctx, &notif); err != nil {
		s.logger.Error("NotificationService", fmt.Sprintf("Error saving notification for user %s", userID), map[string]interface{}{"error": err})
		return err // NATS will redeliver
	}

	if s.delivery != nil {
		s.delivery.Send(userID, notif)
	}

	return nil
}

// render maps an event type to a notification title and body. Unmapped
// types produce no notification.
func (s *NotificationService) render(typeCode string, payload map[string]interface{}) (string, string, bool) {
	title, _ := payload["title"].(string)

	switch typeCode {
	case events.TypeBookCreated:
		return "Book uploaded", fmt.Sprintf("\"%s\" was uploaded and is queued for processing.", title), true
	case events.TypeBookProcessed:
		return "Book ready", fmt.Sprintf("\"%s\" is ready. Start chatting with it!", title), true
	case events.TypeBookProcessingFailed:
		reason, _ := payload["reason"].(string)
		return "Book processing failed", fmt.Sprintf("Processing of \"%s\" failed: %s", title, reason), true
	case events.TypeBookDeleted:
		return "Book deleted", fmt.Sprintf("\"%s\" and its chat history were removed.", title), true
	default:
		return "", "", false
	}
}

func (s *NotificationService) buildNotification(userID uuid.UUID, typeCode, title, message string, event events.Event) model.Notification {
	metaJSON, _ := json.Marshal(event.Payload())

	return model.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		TypeCode:  typeCode,
		Title:     title,
		Message:   message,
		Metadata:  datatypes.JSON(metaJSON),
		CreatedAt: time.Now(),
		IsRead:    false,
	}
}

func payloadUserID(payload map[string]interface{}) (uuid.UUID, bool) {
	uidStr, ok := payload["user_id"].(string)
	if !ok {
		return uuid.Nil, false
	}
	uid, err := uuid.Parse(uidStr)
	if err != nil {
		return uuid.Nil, false
	}
	return uid, true
}

// GetNotifications fetches notifications for a user.
func (s *NotificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Notification, int64, error) {
	return s.repo.GetNotificationsByUserID(ctx, userID, limit, offset)
}

// GetUnreadCount fetches unread count.
func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

// MarkAsRead marks a notification as read.
func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read for a user.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}
