package app

import (
	"context"
	"log/slog"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/domain"
)

// ItemRepository is the store surface for direct item maintenance.
type ItemRepository interface {
	GetItem(ctx context.Context, itemID string) (domain.ListingItem, error)
	GetItemIncludingDeleted(ctx context.Context, itemID string) (domain.ListingItem, error)
	SoftDeleteItem(ctx context.Context, itemID string) error
	RestoreItem(ctx context.Context, itemID string) error
}

// ItemService covers owner-facing item maintenance. Items are tombstoned,
// never physically removed, so their provenance chain survives an archive.
type ItemService struct {
	repo   ItemRepository
	logger *slog.Logger
}

func NewItemService(repo ItemRepository, logger *slog.Logger) *ItemService {
	return &ItemService{
		repo:   repo,
		logger: logger.With(slog.String("component", "items")),
	}
}

// Archive soft-deletes an item. Only the current owner may archive.
func (s *ItemService) Archive(ctx context.Context, itemID, actorID string) error {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.SellerID != actorID {
		return domain.ErrNotSeller
	}
	if err := s.repo.SoftDeleteItem(ctx, itemID); err != nil {
		return err
	}
	s.logger.Info("item archived", slog.String("item_id", itemID))
	return nil
}

// Restore clears an item's tombstone. Only the current owner may restore.
func (s *ItemService) Restore(ctx context.Context, itemID, actorID string) error {
	item, err := s.repo.GetItemIncludingDeleted(ctx, itemID)
	if err != nil {
		return err
	}
	if item.SellerID != actorID {
		return domain.ErrNotSeller
	}
	if err := s.repo.RestoreItem(ctx, itemID); err != nil {
		return err
	}
	s.logger.Info("item restored", slog.String("item_id", itemID))
	return nil
}
