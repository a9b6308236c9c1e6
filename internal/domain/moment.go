package domain

import (
	"strings"
	"time"
)

// LiveMoment is a real-world occurrence (a home run, a walk-off) broadcast by
// the operator tooling. This service only reads them, as the fallback source
// for provenance sync when an order carries no snapshot.
type LiveMoment struct {
	ID          string
	Title       string
	PlayerName  string
	Intensity   int
	Description string
	MatchResult string
	IsFinalized bool
	CreatedAt   time.Time
}

// MatchesPlayer reports whether the moment plausibly belongs to the named
// player. The match is a bidirectional case-insensitive substring test, so
// "S. Ohtani" and "Shohei Ohtani" pair up either way. It is a best-effort
// heuristic and can over-match on short name fragments; snapshot capture at
// checkout is the primary mechanism.
func (m LiveMoment) MatchesPlayer(player string) bool {
	mp := strings.ToLower(strings.TrimSpace(m.PlayerName))
	lp := strings.ToLower(strings.TrimSpace(player))
	if mp == "" || lp == "" {
		return false
	}
	return strings.Contains(mp, lp) || strings.Contains(lp, mp)
}
