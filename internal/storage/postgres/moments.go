package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Yoshida-JJJ/tc-app-sub001/internal/domain"
)

// ListRecentMoments returns live moments created at or after the cutoff,
// newest first. This is the fallback provenance source for orders without a
// checkout snapshot.
func (s *Store) ListRecentMoments(ctx context.Context, since time.Time) ([]domain.LiveMoment, error) {
	const query = `
SELECT id, title, COALESCE(player_name, ''), COALESCE(intensity, 0),
       COALESCE(description, ''), COALESCE(match_result, ''), is_finalized, created_at
FROM live_moments
WHERE created_at > $1
ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("list recent moments: %w", err)
	}
	defer rows.Close()

	var out []domain.LiveMoment
	for rows.Next() {
		var m domain.LiveMoment
		if err := rows.Scan(
			&m.ID, &m.Title, &m.PlayerName, &m.Intensity,
			&m.Description, &m.MatchResult, &m.IsFinalized, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan moment: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recent moments: %w", err)
	}
	return out, nil
}

// LookupUserEmail resolves a user id to its profile email and display name
// for notification dispatch.
func (s *Store) LookupUserEmail(ctx context.Context, userID string) (email, name string, err error) {
	const query = `
SELECT email, COALESCE(display_name, COALESCE(name, ''))
FROM profiles
WHERE id = $1`

	if err := s.pool.QueryRow(ctx, query, userID).Scan(&email, &name); err != nil {
		return "", "", fmt.Errorf("lookup profile %s: %w", userID, err)
	}
	return email, name, nil
}
