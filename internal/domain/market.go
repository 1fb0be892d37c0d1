package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "active"
	MarketStatusClosed   MarketStatus = "closed"
	MarketStatusResolved MarketStatus = "resolved"
)

// Market holds the metadata this service needs about a prediction market:
// the ordered outcome labels and their matching outcome token ids.
type Market struct {
	ID          string
	ConditionID string
	Question    string
	Slug        string
	Outcomes    []string // ordered; Outcomes[i] is the label for TokenIDs[i]
	TokenIDs    []string
	Status      MarketStatus
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
