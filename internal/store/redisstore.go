package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/rivalapexmediation/auctionhouse/internal/apperr"
)

// RedisStore is the Redis-backed Store implementation: every entity is
// a JSON blob under a namespaced key, with sets used as secondary
// indices. Grounded on waterfall.Manager's Get/Set JSON-blob pattern
// against the same client. Used when multiple engine instances share
// state across a load balancer.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func auctionKey(id string) string        { return fmt.Sprintf("auctionhouse:auction:%s", id) }
func bidKey(id string) string             { return fmt.Sprintf("auctionhouse:bid:%s", id) }
func userKey(id string) string            { return fmt.Sprintf("auctionhouse:user:%s", id) }
func auctionBidsKey(auctionID string) string { return fmt.Sprintf("auctionhouse:auction:%s:bids", auctionID) }
func statusIndexKey(status AuctionStatus) string { return fmt.Sprintf("auctionhouse:index:status:%s", status) }
func auctionIndexKey() string             { return "auctionhouse:index:auctions" }
func userEmailIndexKey(email string) string { return fmt.Sprintf("auctionhouse:index:email:%s", email) }
func userIndexKey() string                { return "auctionhouse:index:users" }
func userBidsKey(userID string) string    { return fmt.Sprintf("auctionhouse:user:%s:bids", userID) }

func (s *RedisStore) CreateAuction(ctx context.Context, a *Auction) error {
	if a.ID == "" || a.Title == "" || a.CreatedBy == "" {
		return apperr.Validation(CodeValidationError, "auction missing required fields", nil)
	}
	exists, err := s.client.Exists(ctx, auctionKey(a.ID)).Result()
	if err != nil {
		return apperr.Internal("redis_error", err.Error())
	}
	if exists == 1 {
		return apperr.State(CodeDuplicate, "auction already exists", map[string]any{"id": a.ID})
	}
	return s.putAuction(ctx, a, true)
}

func (s *RedisStore) putAuction(ctx context.Context, a *Auction, isCreate bool) error {
	data, err := json.Marshal(a)
	if err != nil {
		return apperr.Internal("encode_error", err.Error())
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, auctionKey(a.ID), data, 0)
	if isCreate {
		pipe.SAdd(ctx, auctionIndexKey(), a.ID)
	}
	for _, st := range []AuctionStatus{StatusPending, StatusActive, StatusEnded, StatusUnsold} {
		if st == a.Status {
			pipe.SAdd(ctx, statusIndexKey(st), a.ID)
		} else {
			pipe.SRem(ctx, statusIndexKey(st), a.ID)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Internal("redis_error", err.Error())
	}
	return nil
}

func (s *RedisStore) GetAuction(ctx context.Context, id string) (*Auction, error) {
	data, err := s.client.Get(ctx, auctionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, apperr.NotFound(CodeNotFound, "auction not found")
	} else if err != nil {
		return nil, apperr.Internal("redis_error", err.Error())
	}
	var a Auction
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, apperr.Internal("decode_error", err.Error())
	}
	return &a, nil
}

func (s *RedisStore) UpdateAuction(ctx context.Context, a *Auction) error {
	exists, err := s.client.Exists(ctx, auctionKey(a.ID)).Result()
	if err != nil {
		return apperr.Internal("redis_error", err.Error())
	}
	if exists == 0 {
		return apperr.NotFound(CodeNotFound, "auction not found")
	}
	return s.putAuction(ctx, a, false)
}

func (s *RedisStore) DeleteAuction(ctx context.Context, id string) error {
	a, err := s.GetAuction(ctx, id)
	if err != nil {
		return err
	}
	bidIDs, err := s.client.LRange(ctx, auctionBidsKey(id), 0, -1).Result()
	if err != nil {
		return apperr.Internal("redis_error", err.Error())
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, auctionKey(id))
	pipe.Del(ctx, auctionBidsKey(id))
	pipe.SRem(ctx, auctionIndexKey(), id)
	pipe.SRem(ctx, statusIndexKey(a.Status), id)
	for _, bidID := range bidIDs {
		pipe.Del(ctx, bidKey(bidID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Internal("redis_error", err.Error())
	}
	return nil
}

func (s *RedisStore) GetAuctionsByStatus(ctx context.Context, status AuctionStatus) ([]*Auction, error) {
	ids, err := s.client.SMembers(ctx, statusIndexKey(status)).Result()
	if err != nil {
		return nil, apperr.Internal("redis_error", err.Error())
	}
	return s.loadAuctions(ctx, ids)
}

func (s *RedisStore) GetAllAuctions(ctx context.Context) ([]*Auction, error) {
	ids, err := s.client.SMembers(ctx, auctionIndexKey()).Result()
	if err != nil {
		return nil, apperr.Internal("redis_error", err.Error())
	}
	return s.loadAuctions(ctx, ids)
}

func (s *RedisStore) loadAuctions(ctx context.Context, ids []string) ([]*Auction, error) {
	out := make([]*Auction, 0, len(ids))
	for _, id := range ids {
		a, err := s.GetAuction(ctx, id)
		if err != nil {
			if ae, ok := apperr.As(err); ok && ae.Kind == apperr.KindNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *RedisStore) AddBid(ctx context.Context, b *Bid) error {
	if b.ID == "" || b.AuctionID == "" || b.UserID == "" {
		return apperr.Validation(CodeValidationError, "bid missing required fields", nil)
	}
	exists, err := s.client.Exists(ctx, bidKey(b.ID)).Result()
	if err != nil {
		return apperr.Internal("redis_error", err.Error())
	}
	if exists == 1 {
		return apperr.State(CodeDuplicate, "bid already exists", map[string]any{"id": b.ID})
	}
	data, err := json.Marshal(b)
	if err != nil {
		return apperr.Internal("encode_error", err.Error())
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, bidKey(b.ID), data, 0)
	pipe.RPush(ctx, auctionBidsKey(b.AuctionID), b.ID)
	pipe.RPush(ctx, userBidsKey(b.UserID), b.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Internal("redis_error", err.Error())
	}
	return nil
}

func (s *RedisStore) UpdateBid(ctx context.Context, b *Bid) error {
	exists, err := s.client.Exists(ctx, bidKey(b.ID)).Result()
	if err != nil {
		return apperr.Internal("redis_error", err.Error())
	}
	if exists == 0 {
		return apperr.NotFound(CodeNotFound, "bid not found")
	}
	data, err := json.Marshal(b)
	if err != nil {
		return apperr.Internal("encode_error", err.Error())
	}
	if err := s.client.Set(ctx, bidKey(b.ID), data, 0).Err(); err != nil {
		return apperr.Internal("redis_error", err.Error())
	}
	return nil
}

func (s *RedisStore) GetBids(ctx context.Context, auctionID string, includeRetracted bool) ([]*Bid, error) {
	ids, err := s.client.LRange(ctx, auctionBidsKey(auctionID), 0, -1).Result()
	if err != nil {
		return nil, apperr.Internal("redis_error", err.Error())
	}
	var out []*Bid
	for _, id := range ids {
		b, err := s.GetBid(ctx, id)
		if err != nil {
			continue
		}
		if !includeRetracted && b.IsRetracted {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *RedisStore) GetBid(ctx context.Context, bidID string) (*Bid, error) {
	data, err := s.client.Get(ctx, bidKey(bidID)).Bytes()
	if err == redis.Nil {
		return nil, apperr.NotFound(CodeNotFound, "bid not found")
	} else if err != nil {
		return nil, apperr.Internal("redis_error", err.Error())
	}
	var b Bid
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, apperr.Internal("decode_error", err.Error())
	}
	return &b, nil
}

func (s *RedisStore) GetBidsByUser(ctx context.Context, userID string) ([]*Bid, error) {
	ids, err := s.client.LRange(ctx, userBidsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, apperr.Internal("redis_error", err.Error())
	}
	var out []*Bid
	for _, id := range ids {
		b, err := s.GetBid(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *RedisStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" || u.Email == "" {
		return apperr.Validation(CodeValidationError, "user missing required fields", nil)
	}
	set, err := s.client.SetNX(ctx, userEmailIndexKey(u.Email), u.ID, 0).Result()
	if err != nil {
		return apperr.Internal("redis_error", err.Error())
	}
	if !set {
		return apperr.State(CodeDuplicate, "email already registered", map[string]any{"email": u.Email})
	}
	data, err := json.Marshal(u)
	if err != nil {
		return apperr.Internal("encode_error", err.Error())
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userKey(u.ID), data, 0)
	pipe.SAdd(ctx, userIndexKey(), u.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Internal("redis_error", err.Error())
	}
	return nil
}

func (s *RedisStore) GetUser(ctx context.Context, id string) (*User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err == redis.Nil {
		return nil, apperr.NotFound(CodeNotFound, "user not found")
	} else if err != nil {
		return nil, apperr.Internal("redis_error", err.Error())
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, apperr.Internal("decode_error", err.Error())
	}
	return &u, nil
}

func (s *RedisStore) GetAllUsers(ctx context.Context) ([]*User, error) {
	ids, err := s.client.SMembers(ctx, userIndexKey()).Result()
	if err != nil {
		return nil, apperr.Internal("redis_error", err.Error())
	}
	out := make([]*User, 0, len(ids))
	for _, id := range ids {
		u, err := s.GetUser(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

var _ Store = (*RedisStore)(nil)
