package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/domain"
)

const itemColumns = `
id, seller_id, status,
COALESCE(player_name, ''), COALESCE(team, ''), COALESCE(year, 0),
COALESCE(manufacturer, ''), COALESCE(series_name, ''), COALESCE(card_number, ''),
COALESCE(variation, ''), COALESCE(serial_number, ''), is_rookie, is_autograph,
COALESCE(description, ''), COALESCE(condition_rating, ''), images,
COALESCE(price, 0), COALESCE(origin_order_id::text, ''), moment_history,
created_at, updated_at, deleted_at`

// scanItem is the single normalization point between row shapes and the
// domain type.
func scanItem(row pgx.Row) (domain.ListingItem, error) {
	var (
		i       domain.ListingItem
		status  string
		images  []byte
		history []byte
	)
	err := row.Scan(
		&i.ID, &i.SellerID, &status,
		&i.PlayerName, &i.Team, &i.Year,
		&i.Manufacturer, &i.SeriesName, &i.CardNumber,
		&i.Variation, &i.SerialNumber, &i.IsRookie, &i.IsAutograph,
		&i.Description, &i.ConditionRating, &images,
		&i.Price, &i.OriginOrderID, &history,
		&i.CreatedAt, &i.UpdatedAt, &i.DeletedAt,
	)
	if err != nil {
		return domain.ListingItem{}, err
	}
	i.Status = domain.ItemStatus(status)
	if len(images) > 0 {
		if err := json.Unmarshal(images, &i.Images); err != nil {
			return domain.ListingItem{}, fmt.Errorf("decode images: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &i.MomentHistory); err != nil {
			return domain.ListingItem{}, fmt.Errorf("decode moment history: %w", err)
		}
	}
	return i, nil
}

func (s *Store) GetItem(ctx context.Context, itemID string) (domain.ListingItem, error) {
	query := `SELECT ` + itemColumns + ` FROM listing_items WHERE id = $1 AND deleted_at IS NULL`
	return s.getItem(ctx, query, itemID)
}

// GetItemIncludingDeleted also returns tombstoned rows, for restore.
func (s *Store) GetItemIncludingDeleted(ctx context.Context, itemID string) (domain.ListingItem, error) {
	query := `SELECT ` + itemColumns + ` FROM listing_items WHERE id = $1`
	return s.getItem(ctx, query, itemID)
}

func (s *Store) getItem(ctx context.Context, query, itemID string) (domain.ListingItem, error) {
	item, err := scanItem(s.pool.QueryRow(ctx, query, itemID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ListingItem{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.ListingItem{}, domain.ErrItemNotFound
		}
		return domain.ListingItem{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *Store) FindItemByOriginOrder(ctx context.Context, orderID string) (*domain.ListingItem, error) {
	query := `SELECT ` + itemColumns + ` FROM listing_items WHERE origin_order_id = $1 AND deleted_at IS NULL`

	item, err := scanItem(s.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find item by origin order: %w", err)
	}
	return &item, nil
}

// TransferItem moves ownership to the buyer in one statement: owner, status,
// and origin-order link change together or not at all.
func (s *Store) TransferItem(ctx context.Context, itemID, buyerID, orderID string) error {
	const stmt = `
UPDATE listing_items
SET seller_id = $2, status = $3, origin_order_id = $4, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`

	tag, err := s.pool.Exec(ctx, stmt, itemID, buyerID,
		string(domain.ItemStatusAwaitingShipment), orderID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateOrigin
		}
		return fmt.Errorf("transfer item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (s *Store) UpdateItemHistory(ctx context.Context, itemID string, history []domain.ProvenanceEntry) error {
	payload, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode moment history: %w", err)
	}

	const stmt = `
UPDATE listing_items
SET moment_history = $2, updated_at = NOW()
WHERE id = $1`

	tag, err := s.pool.Exec(ctx, stmt, itemID, payload)
	if err != nil {
		return fmt.Errorf("update moment history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (s *Store) CreateItem(ctx context.Context, item domain.ListingItem) error {
	images, err := json.Marshal(emptyIfNil(item.Images))
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	history, err := json.Marshal(emptyHistoryIfNil(item.MomentHistory))
	if err != nil {
		return fmt.Errorf("encode moment history: %w", err)
	}

	const stmt = `
INSERT INTO listing_items (
	id, seller_id, status,
	player_name, team, year, manufacturer, series_name, card_number,
	variation, serial_number, is_rookie, is_autograph, description,
	condition_rating, images, price, origin_order_id, moment_history,
	created_at, updated_at
) VALUES (
	$1, $2, $3,
	NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, 0), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''),
	NULLIF($10, ''), NULLIF($11, ''), $12, $13, NULLIF($14, ''),
	NULLIF($15, ''), $16, $17, NULLIF($18, '')::uuid, $19,
	NOW(), NOW()
)`

	_, err = s.pool.Exec(ctx, stmt,
		item.ID, item.SellerID, string(item.Status),
		item.PlayerName, item.Team, item.Year, item.Manufacturer, item.SeriesName, item.CardNumber,
		item.Variation, item.SerialNumber, item.IsRookie, item.IsAutograph, item.Description,
		item.ConditionRating, images, item.Price, item.OriginOrderID, history,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateOrigin
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// ReleaseItemToBuyer flips the item into the buyer's workspace. The status
// predicate is the double-release guard: an item the buyer already
// repurposed no longer matches and the update is a no-op.
func (s *Store) ReleaseItemToBuyer(ctx context.Context, itemID, orderID string) error {
	const stmt = `
UPDATE listing_items
SET status = $2, origin_order_id = $3, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL AND status = ANY($4)`

	statuses := make([]string, 0, len(domain.ReleasableStatuses))
	for _, st := range domain.ReleasableStatuses {
		statuses = append(statuses, string(st))
	}

	_, err := s.pool.Exec(ctx, stmt, itemID,
		string(domain.ItemStatusDraft), orderID, statuses)
	if err != nil {
		return fmt.Errorf("release item: %w", err)
	}
	return nil
}

func (s *Store) SoftDeleteItem(ctx context.Context, itemID string) error {
	const stmt = `UPDATE listing_items SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	if _, err := s.pool.Exec(ctx, stmt, itemID); err != nil {
		return fmt.Errorf("soft delete item: %w", err)
	}
	return nil
}

func (s *Store) RestoreItem(ctx context.Context, itemID string) error {
	const stmt = `UPDATE listing_items SET deleted_at = NULL WHERE id = $1`

	if _, err := s.pool.Exec(ctx, stmt, itemID); err != nil {
		return fmt.Errorf("restore item: %w", err)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyHistoryIfNil(h []domain.ProvenanceEntry) []domain.ProvenanceEntry {
	if h == nil {
		return []domain.ProvenanceEntry{}
	}
	return h
}
