package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BidPlaced is broadcast to auction observers after a bid commits. It
// carries only committed state, so observers never see a price that did
// not correspond to a committed bid.
type BidPlaced struct {
	AuctionID           uint64          `json:"auction_id"`
	BidID               uint64          `json:"bid_id"`
	UserID              uint64          `json:"user_id"`
	Amount              decimal.Decimal `json:"amount"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	BidCount            int64           `json:"bid_count"`
	EndTime             time.Time       `json:"end_time"`
	SnipeExtensionCount int64           `json:"snipe_extension_count"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Hub fans committed bid events out to per-auction subscribers. Publishing
// never blocks: slow subscribers drop events and a counter records it. The
// hub is called strictly after commit, outside any transaction.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64][]chan BidPlaced
	logger *zap.Logger

	droppedFanout uint64
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   map[uint64][]chan BidPlaced{},
		logger: logger,
	}
}

// Subscribe returns a buffered channel of committed bid events for one
// auction, plus a cancel func that detaches and closes it.
func (h *Hub) Subscribe(auctionID uint64, buf int) (<-chan BidPlaced, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan BidPlaced, buf)
	h.mu.Lock()
	h.subs[auctionID] = append(h.subs[auctionID], ch)
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		chans := h.subs[auctionID]
		for i, c := range chans {
			if c == ch {
				h.subs[auctionID] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
		if len(h.subs[auctionID]) == 0 {
			delete(h.subs, auctionID)
		}
	}
	return ch, cancel
}

func (h *Hub) Publish(ev BidPlaced) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[ev.AuctionID] {
		select {
		case ch <- ev:
		default:
			// Drop when a subscriber is slow; the hub must not block the
			// bidding path.
			atomic.AddUint64(&h.droppedFanout, 1)
		}
	}
}

func (h *Hub) DroppedFanout() uint64 {
	return atomic.LoadUint64(&h.droppedFanout)
}
