package bidding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"carbid/internal/config"
	"carbid/internal/events"
	"carbid/internal/models"
	memoryrepository "carbid/internal/repository/memory"
	"carbid/internal/wallet"
)

func newEngine(store *memoryrepository.Store) *Engine {
	return &Engine{
		Repo:   store,
		Ledger: &wallet.Ledger{Repo: store},
		Config: config.AuctionConfig{
			SnipeWindow:    2 * time.Minute,
			SnipeExtension: 2 * time.Minute,
		},
	}
}

func seedBidder(store *memoryrepository.Store, id uint64, available int64, kyc bool) {
	store.PutUser(models.User{
		ID:               id,
		Email:            fmt.Sprintf("bidder%d@example.com", id),
		AvailableBalance: decimal.NewFromInt(available),
		HeldAmount:       decimal.Zero,
		KYCVerified:      kyc,
	})
}

func seedLiveAuction(store *memoryrepository.Store, id uint64, startPrice, increment, depositPct int64, endsIn time.Duration) {
	now := time.Now().UTC()
	store.PutAuction(models.Auction{
		ID:           id,
		VehicleID:    id,
		SellerID:     99,
		StartPrice:   decimal.NewFromInt(startPrice),
		CurrentPrice: decimal.NewFromInt(startPrice),
		BidIncrement: decimal.NewFromInt(increment),
		DepositPct:   depositPct,
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(endsIn),
		Status:       models.AuctionStatusLive,
	})
}

func mustBalances(t *testing.T, store *memoryrepository.Store, userID uint64) (decimal.Decimal, decimal.Decimal) {
	t.Helper()
	user, err := store.GetUser(context.Background(), userID)
	if err != nil || user == nil {
		t.Fatalf("get user %d: %v", userID, err)
	}
	return user.AvailableBalance, user.HeldAmount
}

func TestPlaceBid_HoldsDeposit(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	seedBidder(store, 1, 200000, true)
	seedLiveAuction(store, 10, 500000, 50000, 20, time.Hour)

	bid, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(550000))
	if err != nil {
		t.Fatalf("place bid: %v", err)
	}
	if !bid.IsWinning {
		t.Fatalf("bid not marked winning")
	}

	// 20% of 550000.
	available, held := mustBalances(t, store, 1)
	if available.Cmp(decimal.NewFromInt(90000)) != 0 {
		t.Fatalf("available=%s want=90000", available.String())
	}
	if held.Cmp(decimal.NewFromInt(110000)) != 0 {
		t.Fatalf("held=%s want=110000", held.String())
	}

	auction, err := store.GetAuction(context.Background(), 10)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if auction.CurrentPrice.Cmp(decimal.NewFromInt(550000)) != 0 {
		t.Fatalf("current_price=%s want=550000", auction.CurrentPrice.String())
	}
	if auction.WinnerID == nil || *auction.WinnerID != 1 {
		t.Fatalf("winner=%v want=1", auction.WinnerID)
	}
	if auction.BidCount != 1 {
		t.Fatalf("bid_count=%d want=1", auction.BidCount)
	}
}

func TestPlaceBid_OutbidReleasesPreviousHold(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	seedBidder(store, 1, 200000, true)
	seedBidder(store, 2, 200000, true)
	seedLiveAuction(store, 10, 500000, 50000, 20, time.Hour)

	if _, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(550000)); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if _, err := engine.PlaceBid(context.Background(), 2, 10, decimal.NewFromInt(600000)); err != nil {
		t.Fatalf("second bid: %v", err)
	}

	// Bidder 1 is outbid: the full deposit returns to available.
	available1, held1 := mustBalances(t, store, 1)
	if available1.Cmp(decimal.NewFromInt(200000)) != 0 || !held1.IsZero() {
		t.Fatalf("outbid bidder: available=%s held=%s want 200000/0", available1.String(), held1.String())
	}

	// Bidder 2 holds 20% of 600000.
	available2, held2 := mustBalances(t, store, 2)
	if available2.Cmp(decimal.NewFromInt(80000)) != 0 || held2.Cmp(decimal.NewFromInt(120000)) != 0 {
		t.Fatalf("leader: available=%s held=%s want 80000/120000", available2.String(), held2.String())
	}

	auction, _ := store.GetAuction(context.Background(), 10)
	if auction.WinnerID == nil || *auction.WinnerID != 2 {
		t.Fatalf("winner=%v want=2", auction.WinnerID)
	}
	if auction.BidCount != 2 {
		t.Fatalf("bid_count=%d want=2", auction.BidCount)
	}

	bids, err := store.ListBidsByAuction(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	winning := 0
	for _, b := range bids {
		if b.IsWinning {
			winning++
		}
	}
	if winning != 1 {
		t.Fatalf("got %d winning bids, want exactly 1", winning)
	}
}

func TestPlaceBid_LeaderRaisesOwnBid(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	// 130000 covers the 110000 hold but not 110000+130000 at once: raising
	// must reuse the released deposit, not demand both up front.
	seedBidder(store, 1, 130000, true)
	seedLiveAuction(store, 10, 500000, 50000, 20, time.Hour)

	if _, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(550000)); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if _, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(650000)); err != nil {
		t.Fatalf("raise own bid: %v", err)
	}

	available, held := mustBalances(t, store, 1)
	if held.Cmp(decimal.NewFromInt(130000)) != 0 {
		t.Fatalf("held=%s want=130000", held.String())
	}
	if !available.IsZero() {
		t.Fatalf("available=%s want=0", available.String())
	}
}

func TestPlaceBid_TooLow(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	seedBidder(store, 1, 1000000, true)
	seedLiveAuction(store, 10, 500000, 50000, 20, time.Hour)

	_, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(549999))
	if !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("err=%v want ErrBidTooLow", err)
	}
}

func TestPlaceBid_NotLive(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	seedBidder(store, 1, 1000000, true)

	now := time.Now().UTC()
	store.PutAuction(models.Auction{
		ID:           10,
		SellerID:     99,
		CurrentPrice: decimal.NewFromInt(500000),
		BidIncrement: decimal.NewFromInt(50000),
		DepositPct:   20,
		StartTime:    now.Add(-2 * time.Hour),
		EndTime:      now.Add(-time.Hour),
		Status:       models.AuctionStatusEnded,
	})

	_, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(550000))
	if !errors.Is(err, ErrAuctionNotLive) {
		t.Fatalf("err=%v want ErrAuctionNotLive", err)
	}
}

func TestPlaceBid_PastEndTimeWhileStatusLive(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	seedBidder(store, 1, 1000000, true)
	seedLiveAuction(store, 10, 500000, 50000, 20, -time.Minute)

	_, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(550000))
	if !errors.Is(err, ErrAuctionNotLive) {
		t.Fatalf("err=%v want ErrAuctionNotLive", err)
	}
}

func TestPlaceBid_InsufficientFunds(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	seedBidder(store, 1, 100000, true)
	seedLiveAuction(store, 10, 500000, 50000, 20, time.Hour)

	_, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(550000))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}

	// Rejection must leave the auction untouched.
	auction, _ := store.GetAuction(context.Background(), 10)
	if auction.WinnerID != nil || auction.BidCount != 0 {
		t.Fatalf("auction mutated by rejected bid: winner=%v bid_count=%d", auction.WinnerID, auction.BidCount)
	}
}

func TestPlaceBid_KYCRequired(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	engine.Config.KYCDepositThreshold = 100000
	seedBidder(store, 1, 1000000, false)
	seedLiveAuction(store, 10, 500000, 50000, 20, time.Hour)

	// Deposit 110000 exceeds the 100000 threshold and the bidder is unverified.
	_, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(550000))
	if !errors.Is(err, ErrKYCRequired) {
		t.Fatalf("err=%v want ErrKYCRequired", err)
	}

	// A verified bidder passes the same bid.
	seedBidder(store, 2, 1000000, true)
	if _, err := engine.PlaceBid(context.Background(), 2, 10, decimal.NewFromInt(550000)); err != nil {
		t.Fatalf("verified bidder rejected: %v", err)
	}
}

func TestPlaceBid_SnipeExtension(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	seedBidder(store, 1, 1000000, true)
	seedLiveAuction(store, 10, 500000, 50000, 20, 90*time.Second)

	before, _ := store.GetAuction(context.Background(), 10)
	if _, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(550000)); err != nil {
		t.Fatalf("place bid: %v", err)
	}
	after, _ := store.GetAuction(context.Background(), 10)

	if got := after.EndTime.Sub(before.EndTime); got != 2*time.Minute {
		t.Fatalf("end_time extended by %s, want 2m", got)
	}
	if after.SnipeExtensionCount != 1 {
		t.Fatalf("snipe_extension_count=%d want=1", after.SnipeExtensionCount)
	}

	// A second late bid extends again; there is no cap.
	if _, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(600000)); err != nil {
		t.Fatalf("second bid: %v", err)
	}
	final, _ := store.GetAuction(context.Background(), 10)
	if final.SnipeExtensionCount != 2 {
		t.Fatalf("snipe_extension_count=%d want=2", final.SnipeExtensionCount)
	}
}

func TestPlaceBid_NoExtensionOutsideWindow(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	seedBidder(store, 1, 1000000, true)
	seedLiveAuction(store, 10, 500000, 50000, 20, time.Hour)

	before, _ := store.GetAuction(context.Background(), 10)
	if _, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(550000)); err != nil {
		t.Fatalf("place bid: %v", err)
	}
	after, _ := store.GetAuction(context.Background(), 10)
	if !after.EndTime.Equal(before.EndTime) {
		t.Fatalf("end_time moved outside snipe window: %s -> %s", before.EndTime, after.EndTime)
	}
	if after.SnipeExtensionCount != 0 {
		t.Fatalf("snipe_extension_count=%d want=0", after.SnipeExtensionCount)
	}
}

func TestPlaceBid_PublishesCommittedState(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	engine.Hub = events.NewHub(nil)
	seedBidder(store, 1, 1000000, true)
	seedLiveAuction(store, 10, 500000, 50000, 20, time.Hour)

	ch, cancel := engine.Hub.Subscribe(10, 4)
	defer cancel()

	bid, err := engine.PlaceBid(context.Background(), 1, 10, decimal.NewFromInt(550000))
	if err != nil {
		t.Fatalf("place bid: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.BidID != bid.ID || ev.AuctionID != 10 {
			t.Fatalf("event=%+v want bid_id=%d auction_id=10", ev, bid.ID)
		}
		if ev.CurrentPrice.Cmp(decimal.NewFromInt(550000)) != 0 {
			t.Fatalf("event current_price=%s want=550000", ev.CurrentPrice.String())
		}
		if ev.BidCount != 1 {
			t.Fatalf("event bid_count=%d want=1", ev.BidCount)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event published")
	}
}

func TestPlaceBid_ConcurrentBidders(t *testing.T) {
	store := memoryrepository.New()
	engine := newEngine(store)
	seedLiveAuction(store, 10, 0, 1, 10, time.Hour)

	const bidders = 20
	for i := uint64(1); i <= bidders; i++ {
		seedBidder(store, i, 1000000, true)
	}

	var wg sync.WaitGroup
	for i := uint64(1); i <= bidders; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			// Each bidder retries until its bid lands or is permanently low.
			for amount := int64(1); amount <= bidders+1; amount++ {
				_, err := engine.PlaceBid(context.Background(), userID, 10, decimal.NewFromInt(amount))
				if err == nil {
					return
				}
				if !errors.Is(err, ErrBidTooLow) {
					t.Errorf("user %d: %v", userID, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	auction, _ := store.GetAuction(context.Background(), 10)
	bids, _ := store.ListBidsByAuction(context.Background(), 10, 0)
	if int64(len(bids)) != auction.BidCount {
		t.Fatalf("bid rows=%d bid_count=%d, lost update", len(bids), auction.BidCount)
	}

	winning := 0
	var winningBid models.Bid
	for _, b := range bids {
		if b.IsWinning {
			winning++
			winningBid = b
		}
	}
	if winning != 1 {
		t.Fatalf("got %d winning bids, want exactly 1", winning)
	}
	if auction.WinnerID == nil || *auction.WinnerID != winningBid.UserID {
		t.Fatalf("winner=%v disagrees with winning bid user=%d", auction.WinnerID, winningBid.UserID)
	}
	if auction.CurrentPrice.Cmp(winningBid.Amount) != 0 {
		t.Fatalf("current_price=%s disagrees with winning bid amount=%s",
			auction.CurrentPrice.String(), winningBid.Amount.String())
	}

	// Only the final leader holds a deposit; everyone else is whole.
	for i := uint64(1); i <= bidders; i++ {
		user, _ := store.GetUser(context.Background(), i)
		if i == winningBid.UserID {
			continue
		}
		if !user.HeldAmount.IsZero() {
			t.Fatalf("user %d still holds %s after being outbid", i, user.HeldAmount.String())
		}
		if user.AvailableBalance.Cmp(decimal.NewFromInt(1000000)) != 0 {
			t.Fatalf("user %d available=%s want=1000000", i, user.AvailableBalance.String())
		}
	}
}
