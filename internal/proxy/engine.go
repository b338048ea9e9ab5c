// Package proxy implements the second-price proxy bidding algorithm:
// a pure function from current auction state plus an incoming max bid
// to the resulting price decision. It performs no I/O and holds no
// state, so it can be property-tested in isolation from the store and
// the keyed lock.
package proxy

import (
	"time"

	"github.com/rivalapexmediation/auctionhouse/internal/ladder"
)

// Competitor is the current highest competing max-bid record: the
// bidder the incoming bid must beat to take the lead.
type Competitor struct {
	UserID        string
	MaxBid        int64
	FirstTimestamp time.Time
}

// Input is everything ProxyEngine needs to compute one decision.
type Input struct {
	CurrentPrice int64
	ReservePrice *int64 // nil if no reserve
	Ladder       *ladder.Table

	UserID      string
	UserMax     int64
	CustomStep  *int64 // optional autoBidStep override

	// Competitor is the highest other live max-bid, or nil if there is
	// none (e.g. first bid, or all other bids are direct non-proxy
	// bids without a recorded max).
	Competitor *Competitor
}

// CompetitorAutoBid is a bid the engine records on behalf of a
// displaced leader.
type CompetitorAutoBid struct {
	UserID          string
	Amount          int64
	IsMaxBidReached bool
	Message         string
}

// Decision is the outcome of one ProxyEngine evaluation.
type Decision struct {
	UserBidAmount      int64
	WouldWin           bool
	CompetitorAutoBids []CompetitorAutoBid
	NewVisiblePrice    int64
	IsMaxBidReached    bool
	Message            string
}

// Evaluate runs the four second-price cases and returns the decision.
// in.UserMax must already have been validated positive and sane by
// the caller; Evaluate does not re-validate it.
func Evaluate(in Input) Decision {
	tbl := in.Ladder
	inc := tbl.Increment(in.CurrentPrice)
	if in.CustomStep != nil && *in.CustomStep > 0 {
		inc = *in.CustomStep
	}
	formulaFloor := in.CurrentPrice + inc

	if in.Competitor == nil {
		return evalNoCompetitor(in, formulaFloor)
	}

	h := in.Competitor
	switch {
	case in.UserMax > h.MaxBid:
		return evalUserWinsAgainst(in, h, inc)
	case in.UserMax == h.MaxBid:
		return Decision{
			UserBidAmount:   in.UserMax,
			WouldWin:        false,
			NewVisiblePrice: in.CurrentPrice,
			IsMaxBidReached: true,
			Message:         "tie: earlier bidder keeps leadership",
		}
	default: // in.UserMax < h.MaxBid
		return Decision{
			UserBidAmount:   in.UserMax,
			WouldWin:        false,
			NewVisiblePrice: in.CurrentPrice,
			IsMaxBidReached: true,
			Message:         "outbid by existing max",
		}
	}
}

// evalNoCompetitor is case 1: no competing bid with a recorded max.
func evalNoCompetitor(in Input, formulaFloor int64) Decision {
	amount := in.UserMax
	if amount > formulaFloor {
		amount = formulaFloor
	}
	wouldWin := amount >= formulaFloor
	maxReached := amount == in.UserMax && in.UserMax < formulaFloor
	msg := ""
	if !wouldWin {
		msg = "below minimum next bid"
	}
	return Decision{
		UserBidAmount:   amount,
		WouldWin:        wouldWin,
		NewVisiblePrice: amount,
		IsMaxBidReached: maxReached,
		Message:         msg,
	}
}

// evalUserWinsAgainst is case 2: userMax > competitor's max.
func evalUserWinsAgainst(in Input, h *Competitor, inc int64) Decision {
	amount := h.MaxBid + inc

	// Reserve jump: only when the formula result is strictly below
	// the reserve and the user's ceiling reaches it.
	if in.ReservePrice != nil {
		r := *in.ReservePrice
		if in.UserMax >= r && amount < r {
			amount = r
		}
	}

	return Decision{
		UserBidAmount: amount,
		WouldWin:      true,
		CompetitorAutoBids: []CompetitorAutoBid{
			{UserID: h.UserID, Amount: h.MaxBid, IsMaxBidReached: true, Message: "max reached"},
		},
		NewVisiblePrice: amount,
		IsMaxBidReached: false,
		Message:         "new leader",
	}
}
