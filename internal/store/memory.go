package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rivalapexmediation/auctionhouse/internal/apperr"
)

// MemoryStore is the default, single-instance Store implementation:
// sync.RWMutex-guarded maps. Safe for concurrent use; mutation of a
// single entity is atomic, but cross-entity sequences still need the
// caller's keyed lock for read-modify-write safety.
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[string]*Auction
	bids     map[string]*Bid
	users    map[string]*User
	// bidsByAuction indexes bid IDs per auction for fast listing.
	bidsByAuction map[string][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions:      make(map[string]*Auction),
		bids:          make(map[string]*Bid),
		users:         make(map[string]*User),
		bidsByAuction: make(map[string][]string),
	}
}

func copyAuction(a *Auction) *Auction {
	cp := *a
	if a.ReservePrice != nil {
		v := *a.ReservePrice
		cp.ReservePrice = &v
	}
	if a.BuyNowPrice != nil {
		v := *a.BuyNowPrice
		cp.BuyNowPrice = &v
	}
	if a.WinnerID != nil {
		v := *a.WinnerID
		cp.WinnerID = &v
	}
	return &cp
}

func copyBid(b *Bid) *Bid {
	cp := *b
	if b.MaxBid != nil {
		v := *b.MaxBid
		cp.MaxBid = &v
	}
	if b.AutoBidStep != nil {
		v := *b.AutoBidStep
		cp.AutoBidStep = &v
	}
	if b.RetractedAt != nil {
		v := *b.RetractedAt
		cp.RetractedAt = &v
	}
	if b.RetractionReason != nil {
		v := *b.RetractionReason
		cp.RetractionReason = &v
	}
	return &cp
}

func (s *MemoryStore) CreateAuction(ctx context.Context, a *Auction) error {
	if a.ID == "" || a.Title == "" || a.CreatedBy == "" {
		return apperr.Validation(CodeValidationError, "auction missing required fields", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.auctions[a.ID]; exists {
		return apperr.State(CodeDuplicate, "auction already exists", map[string]any{"id": a.ID})
	}
	s.auctions[a.ID] = copyAuction(a)
	return nil
}

func (s *MemoryStore) GetAuction(ctx context.Context, id string) (*Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return nil, apperr.NotFound(CodeNotFound, "auction not found")
	}
	return copyAuction(a), nil
}

func (s *MemoryStore) UpdateAuction(ctx context.Context, a *Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[a.ID]; !ok {
		return apperr.NotFound(CodeNotFound, "auction not found")
	}
	s.auctions[a.ID] = copyAuction(a)
	return nil
}

func (s *MemoryStore) DeleteAuction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[id]; !ok {
		return apperr.NotFound(CodeNotFound, "auction not found")
	}
	delete(s.auctions, id)
	for _, bidID := range s.bidsByAuction[id] {
		delete(s.bids, bidID)
	}
	delete(s.bidsByAuction, id)
	return nil
}

func (s *MemoryStore) GetAuctionsByStatus(ctx context.Context, status AuctionStatus) ([]*Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Auction
	for _, a := range s.auctions {
		if a.Status == status {
			out = append(out, copyAuction(a))
		}
	}
	return out, nil
}

func (s *MemoryStore) GetAllAuctions(ctx context.Context) ([]*Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		out = append(out, copyAuction(a))
	}
	return out, nil
}

func (s *MemoryStore) AddBid(ctx context.Context, b *Bid) error {
	if b.ID == "" || b.AuctionID == "" || b.UserID == "" {
		return apperr.Validation(CodeValidationError, "bid missing required fields", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bids[b.ID]; exists {
		return apperr.State(CodeDuplicate, "bid already exists", map[string]any{"id": b.ID})
	}
	s.bids[b.ID] = copyBid(b)
	s.bidsByAuction[b.AuctionID] = append(s.bidsByAuction[b.AuctionID], b.ID)
	return nil
}

func (s *MemoryStore) UpdateBid(ctx context.Context, b *Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bids[b.ID]; !ok {
		return apperr.NotFound(CodeNotFound, "bid not found")
	}
	s.bids[b.ID] = copyBid(b)
	return nil
}

func (s *MemoryStore) GetBids(ctx context.Context, auctionID string, includeRetracted bool) ([]*Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Bid
	for _, id := range s.bidsByAuction[auctionID] {
		b := s.bids[id]
		if b == nil {
			continue
		}
		if !includeRetracted && b.IsRetracted {
			continue
		}
		out = append(out, copyBid(b))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *MemoryStore) GetBid(ctx context.Context, bidID string) (*Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[bidID]
	if !ok {
		return nil, apperr.NotFound(CodeNotFound, "bid not found")
	}
	return copyBid(b), nil
}

func (s *MemoryStore) GetBidsByUser(ctx context.Context, userID string) ([]*Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Bid
	for _, b := range s.bids {
		if b.UserID == userID {
			out = append(out, copyBid(b))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" || u.Email == "" {
		return apperr.Validation(CodeValidationError, "user missing required fields", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; exists {
		return apperr.State(CodeDuplicate, "user already exists", map[string]any{"id": u.ID})
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return apperr.State(CodeDuplicate, "email already registered", map[string]any{"email": u.Email})
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound(CodeNotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetAllUsers(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
