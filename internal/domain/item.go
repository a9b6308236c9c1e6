package domain

import "time"

type ItemStatus string

const (
	ItemStatusDraft            ItemStatus = "Draft"
	ItemStatusActive           ItemStatus = "Active"
	ItemStatusDisplay          ItemStatus = "Display"
	ItemStatusIncoming         ItemStatus = "Incoming"
	ItemStatusAwaitingShipment ItemStatus = "AwaitingShipment"
	ItemStatusCompleted        ItemStatus = "Completed"
)

// ReleasableStatuses are the item states MarkReceived may flip to Draft when
// handing the card to the buyer. Anything else means the buyer has already
// repurposed the item and it must not be touched again.
var ReleasableStatuses = []ItemStatus{
	ItemStatusIncoming,
	ItemStatusAwaitingShipment,
	ItemStatusActive,
}

// ListingItem is a single physical card. The row is persistent: ownership
// changes mutate SellerID in place rather than cloning the row per sale, so
// the item id stays stable across its whole provenance chain.
type ListingItem struct {
	ID string
	// SellerID is the current owner. Who held the card when is reconstructed
	// from MomentHistory's OwnerAtTime, not from this field.
	SellerID string
	Status   ItemStatus

	PlayerName      string
	Team            string
	Year            int
	Manufacturer    string
	SeriesName      string
	CardNumber      string
	Variation       string
	SerialNumber    string
	IsRookie        bool
	IsAutograph     bool
	Description     string
	ConditionRating string
	Images          []string
	Price           int64

	// OriginOrderID links the item to the order that moved it to its current
	// owner. Overwritten, never appended, on each transfer; at most one item
	// carries a given order id.
	OriginOrderID string
	// MomentHistory is append-only; entries are unique by MomentID.
	MomentHistory []ProvenanceEntry

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Deleted reports whether the item has been tombstoned.
func (i ListingItem) Deleted() bool {
	return i.DeletedAt != nil
}

// GenesisOwner marks provenance entries attached before the card ever traded
// on the marketplace.
const GenesisOwner = "genesis"

type ProvenanceStatus string

const (
	ProvenanceStatusFinalized ProvenanceStatus = "finalized"
	ProvenanceStatusPending   ProvenanceStatus = "pending"
)

// ProvenanceEntry records one real-world moment attached to an item while a
// given owner held it.
type ProvenanceEntry struct {
	MomentID    string `json:"moment_id"`
	Title       string `json:"title"`
	PlayerName  string `json:"player_name"`
	Intensity   int    `json:"intensity"`
	Description string `json:"description"`
	MatchResult string `json:"match_result"`
	// OwnerAtTime is the order id during which the entry was attached, or
	// GenesisOwner for pre-marketplace entries.
	OwnerAtTime string           `json:"owner_at_time"`
	Status      ProvenanceStatus `json:"status"`
	Timestamp   time.Time        `json:"timestamp"`
}

// HasMoment reports whether the item's history already carries the moment.
func (i ListingItem) HasMoment(momentID string) bool {
	for _, e := range i.MomentHistory {
		if e.MomentID == momentID {
			return true
		}
	}
	return false
}
