package services

import (
	"context"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
)

type NotificationService struct {
	repo domain.NotificationRepository
	log  logger.Logger
}

func NewNotificationService(repo domain.NotificationRepository, log logger.Logger) *NotificationService {
	return &NotificationService{repo: repo, log: log}
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	if userID == "" {
		return nil, validationError("user id is required")
	}
	notifications, err := s.repo.ListNotifications(ctx, userID)
	if err != nil {
		return nil, classify("list notifications", err)
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, validationError("user id is required")
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, classify("count unread", err)
	}
	return count, nil
}

// MarkRead is idempotent; marking an already read notification succeeds.
// Only the recipient may flip the flag.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	if notificationID == "" {
		return validationError("notification id is required")
	}
	if userID == "" {
		return validationError("user id is required")
	}
	if err := s.repo.MarkRead(ctx, notificationID, userID); err != nil {
		return classify("mark read", err)
	}
	s.log.Debug("Notification marked read", "notification_id", notificationID, "user_id", userID)
	return nil
}
