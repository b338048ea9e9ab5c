package store

import "context"

// Store is the logical repository interface. All methods
// are single-entity atomic; cross-entity atomicity is the caller's
// responsibility via the keyed lock.
type Store interface {
	CreateAuction(ctx context.Context, a *Auction) error
	GetAuction(ctx context.Context, id string) (*Auction, error)
	UpdateAuction(ctx context.Context, a *Auction) error
	DeleteAuction(ctx context.Context, id string) error
	GetAuctionsByStatus(ctx context.Context, status AuctionStatus) ([]*Auction, error)
	GetAllAuctions(ctx context.Context) ([]*Auction, error)

	AddBid(ctx context.Context, b *Bid) error
	UpdateBid(ctx context.Context, b *Bid) error
	GetBids(ctx context.Context, auctionID string, includeRetracted bool) ([]*Bid, error)
	GetBid(ctx context.Context, bidID string) (*Bid, error)
	GetBidsByUser(ctx context.Context, userID string) ([]*Bid, error)

	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetAllUsers(ctx context.Context) ([]*User, error)
}

// Error codes used across Store implementations.
const (
	CodeNotFound        = "not_found"
	CodeDuplicate       = "duplicate"
	CodeValidationError = "validation_error"
)
