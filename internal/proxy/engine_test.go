package proxy

import (
	"testing"
	"time"

	"github.com/rivalapexmediation/auctionhouse/internal/ladder"
)

func ptr(v int64) *int64 { return &v }

func TestEvaluate_NoCompetitor_FirstBidBelowMinimum(t *testing.T) {
	// Boundary case: first bidder, no competitors, userMax
	// below startingPrice + increment(startingPrice).
	d := Evaluate(Input{
		CurrentPrice: 10_000,
		Ladder:       ladder.Default,
		UserID:       "A",
		UserMax:      10_050, // increment at 10000 is 1000, so min next bid is 11000
	})
	if d.WouldWin {
		t.Errorf("expected WouldWin=false")
	}
	if !d.IsMaxBidReached {
		t.Errorf("expected IsMaxBidReached=true")
	}
	if d.UserBidAmount != 10_050 {
		t.Errorf("UserBidAmount = %d, want 10050", d.UserBidAmount)
	}
}

func TestEvaluate_NoCompetitor_Wins(t *testing.T) {
	d := Evaluate(Input{
		CurrentPrice: 10_000,
		Ladder:       ladder.Default,
		UserID:       "A",
		UserMax:      20_000,
	})
	if !d.WouldWin {
		t.Fatalf("expected WouldWin=true")
	}
	if d.UserBidAmount != 11_000 {
		t.Errorf("UserBidAmount = %d, want 11000", d.UserBidAmount)
	}
	if d.IsMaxBidReached {
		t.Errorf("expected IsMaxBidReached=false when user has headroom")
	}
}

func TestEvaluate_S1_SecondPriceNoReserve(t *testing.T) {
	// A max 20000, then C max 30000 beats A's max.
	d := Evaluate(Input{
		CurrentPrice: 11_000, // after A took lead at 11000 (10000 + 1000 inc)
		Ladder:       ladder.Default,
		UserID:       "C",
		UserMax:      30_000,
		Competitor:   &Competitor{UserID: "A", MaxBid: 20_000, FirstTimestamp: time.Unix(0, 0)},
	})
	if !d.WouldWin {
		t.Fatalf("expected C to win")
	}
	if d.UserBidAmount != 21_000 {
		t.Errorf("UserBidAmount = %d, want 21000 (20000 + increment(11000)=1000)", d.UserBidAmount)
	}
	if len(d.CompetitorAutoBids) != 1 || d.CompetitorAutoBids[0].UserID != "A" || d.CompetitorAutoBids[0].Amount != 20_000 {
		t.Errorf("unexpected competitor auto-bids: %+v", d.CompetitorAutoBids)
	}
}

func TestEvaluate_S3_TieKeepsEarlierLeader(t *testing.T) {
	d := Evaluate(Input{
		CurrentPrice: 11_000,
		Ladder:       ladder.Default,
		UserID:       "B",
		UserMax:      20_000,
		Competitor:   &Competitor{UserID: "A", MaxBid: 20_000, FirstTimestamp: time.Unix(0, 0)},
	})
	if d.WouldWin {
		t.Fatalf("expected tie to not change leadership")
	}
	if d.NewVisiblePrice != 11_000 {
		t.Errorf("NewVisiblePrice = %d, want unchanged 11000", d.NewVisiblePrice)
	}
	if !d.IsMaxBidReached {
		t.Errorf("expected IsMaxBidReached=true on tie")
	}
}

func TestEvaluate_Loses(t *testing.T) {
	d := Evaluate(Input{
		CurrentPrice: 21_000,
		Ladder:       ladder.Default,
		UserID:       "B",
		UserMax:      12_000,
		Competitor:   &Competitor{UserID: "C", MaxBid: 30_000, FirstTimestamp: time.Unix(0, 0)},
	})
	if d.WouldWin {
		t.Fatalf("expected loss")
	}
	if len(d.CompetitorAutoBids) != 0 {
		t.Errorf("expected no competitor auto-bids on a loss")
	}
	if d.UserBidAmount != 12_000 {
		t.Errorf("UserBidAmount = %d, want 12000 (visible = userMax)", d.UserBidAmount)
	}
}

func TestEvaluate_S5_ReserveJump(t *testing.T) {
	reserve := int64(30_000)
	d := Evaluate(Input{
		CurrentPrice: 20_000 + ladder.Default.Increment(20_000), // A's leading price
		ReservePrice: &reserve,
		Ladder:       ladder.Default,
		UserID:       "B",
		UserMax:      40_000,
		Competitor:   &Competitor{UserID: "A", MaxBid: 20_000, FirstTimestamp: time.Unix(0, 0)},
	})
	if d.UserBidAmount != 30_000 {
		t.Errorf("UserBidAmount = %d, want reserve jump to 30000", d.UserBidAmount)
	}
}

func TestEvaluate_ReserveExactlyAtFormula_NoJump(t *testing.T) {
	// Boundary case: reserve equal to the formula outcome triggers no jump.
	h := &Competitor{UserID: "A", MaxBid: 20_000, FirstTimestamp: time.Unix(0, 0)}
	inc := ladder.Default.Increment(11_000)
	reserve := h.MaxBid + inc
	d := Evaluate(Input{
		CurrentPrice: 11_000,
		ReservePrice: &reserve,
		Ladder:       ladder.Default,
		UserID:       "B",
		UserMax:      40_000,
		Competitor:   h,
	})
	if d.UserBidAmount != reserve {
		t.Errorf("UserBidAmount = %d, want %d (formula already equals reserve, no jump needed)", d.UserBidAmount, reserve)
	}
}

func TestEvaluate_CustomStep(t *testing.T) {
	step := int64(7)
	d := Evaluate(Input{
		CurrentPrice: 10_000,
		Ladder:       ladder.Default,
		UserID:       "A",
		UserMax:      20_000,
		CustomStep:   &step,
	})
	if d.UserBidAmount != 10_007 {
		t.Errorf("UserBidAmount = %d, want 10007 with custom step", d.UserBidAmount)
	}
}
