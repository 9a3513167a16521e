package notifications

import (
	"context"

	"github.com/BearBump/FabOrders/internal/models"
)

func (s *Service) MarkRead(ctx context.Context, userID, id uint64) error {
	return s.inbox.MarkRead(ctx, userID, id, s.clock().UTC())
}

// MarkAllRead returns how many notifications changed state.
func (s *Service) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	return s.inbox.MarkAllRead(ctx, userID, s.clock().UTC())
}

func (s *Service) ListUnread(ctx context.Context, userID uint64, limit int) ([]*models.NotificationRecord, error) {
	return s.inbox.ListUnread(ctx, userID, limit)
}
