// Package store is the logical repository for auctions, bids, and
// users. It owns entity records exclusively; all other
// components hold transient references obtained per operation.
package store

import "time"

// AuctionStatus is the lifecycle state of an auction.
type AuctionStatus string

const (
	StatusPending AuctionStatus = "PENDING"
	StatusActive  AuctionStatus = "ACTIVE"
	StatusEnded   AuctionStatus = "ENDED"
	StatusUnsold  AuctionStatus = "UNSOLD"
)

// Auction is the auction entity.
type Auction struct {
	ID                   string
	Title                string
	Description          string
	StartingPrice        int64
	CurrentPrice         int64
	MinimumBidIncrement  int64
	ReservePrice         *int64
	BuyNowPrice          *int64
	StartTime            time.Time
	EndTime              time.Time
	HasTimeLimit         bool
	Status               AuctionStatus
	CreatedBy            string
	WinnerID             *string
	BidCount             int
	CreatedAt            time.Time
}

// ReserveMet is derived: true iff there is no reserve, or the current
// price has reached it.
func (a *Auction) ReserveMet() bool {
	return a.ReservePrice == nil || a.CurrentPrice >= *a.ReservePrice
}

// RetractionReason enumerates the allowed reasons for a bid retraction.
type RetractionReason string

const (
	ReasonTypo               RetractionReason = "TYPO"
	ReasonItemChanged        RetractionReason = "ITEM_DESCRIPTION_CHANGED"
	ReasonCannotContactSeller RetractionReason = "CANNOT_CONTACT_SELLER"
	ReasonOther              RetractionReason = "OTHER"
)

// ValidRetractionReason reports whether r is one of the enumerated reasons.
func ValidRetractionReason(r RetractionReason) bool {
	switch r {
	case ReasonTypo, ReasonItemChanged, ReasonCannotContactSeller, ReasonOther:
		return true
	}
	return false
}

// Bid is the bid entity.
type Bid struct {
	ID                string
	AuctionID         string
	UserID            string
	Amount            int64
	MaxBid            *int64
	AutoBidStep       *int64
	Timestamp         time.Time
	IsWinning         bool
	IsProxyBid        bool
	IsRetracted       bool
	RetractedAt       *time.Time
	RetractionReason  *RetractionReason
	Message           string
	IsMaxBidReached   bool
}

// User is the user entity.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
