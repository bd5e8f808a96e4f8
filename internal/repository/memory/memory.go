package memoryrepository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"carbid/internal/models"
	"carbid/internal/repository"
)

// Store is an in-memory repository.Repository used by engine tests. One
// mutex guards all state, so InTx gives the same serialization the row
// locks give in Postgres: transactions against the store never interleave.
// On error the pre-transaction snapshot is restored, matching the
// all-or-nothing contract of the gorm implementation.
type Store struct {
	mu sync.Mutex

	users          map[uint64]models.User
	vehicles       map[uint64]models.Vehicle
	auctions       map[uint64]models.Auction
	bids           map[uint64]models.Bid
	escrows        map[uint64]models.Escrow
	certifications map[uint64]models.Certification
	walletTxs      map[uint64]models.WalletTransaction

	nextBidID      uint64
	nextEscrowID   uint64
	nextWalletTxID uint64
}

func New() *Store {
	return &Store{
		users:          map[uint64]models.User{},
		vehicles:       map[uint64]models.Vehicle{},
		auctions:       map[uint64]models.Auction{},
		bids:           map[uint64]models.Bid{},
		escrows:        map[uint64]models.Escrow{},
		certifications: map[uint64]models.Certification{},
		walletTxs:      map[uint64]models.WalletTransaction{},
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshotState struct {
	users          map[uint64]models.User
	vehicles       map[uint64]models.Vehicle
	auctions       map[uint64]models.Auction
	bids           map[uint64]models.Bid
	escrows        map[uint64]models.Escrow
	walletTxs      map[uint64]models.WalletTransaction
	nextBidID      uint64
	nextEscrowID   uint64
	nextWalletTxID uint64
}

func (s *Store) snapshot() snapshotState {
	return snapshotState{
		users:          copyMap(s.users),
		vehicles:       copyMap(s.vehicles),
		auctions:       copyMap(s.auctions),
		bids:           copyMap(s.bids),
		escrows:        copyMap(s.escrows),
		walletTxs:      copyMap(s.walletTxs),
		nextBidID:      s.nextBidID,
		nextEscrowID:   s.nextEscrowID,
		nextWalletTxID: s.nextWalletTxID,
	}
}

func (s *Store) restore(snap snapshotState) {
	s.users = snap.users
	s.vehicles = snap.vehicles
	s.auctions = snap.auctions
	s.bids = snap.bids
	s.escrows = snap.escrows
	s.walletTxs = snap.walletTxs
	s.nextBidID = snap.nextBidID
	s.nextEscrowID = snap.nextEscrowID
	s.nextWalletTxID = snap.nextWalletTxID
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// --- seed helpers ------------------------------------------------------------

func (s *Store) PutUser(item models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[item.ID] = item
}

func (s *Store) PutVehicle(item models.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[item.ID] = item
}

func (s *Store) PutAuction(item models.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[item.ID] = item
}

func (s *Store) PutEscrow(item models.Escrow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID >= s.nextEscrowID {
		s.nextEscrowID = item.ID
	}
	s.escrows[item.ID] = item
}

func (s *Store) PutCertification(item models.Certification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certifications[item.ID] = item
}

// --- users / wallet ----------------------------------------------------------

func (s *Store) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getUserLocked(id), nil
}

func (s *Store) GetUserTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.User, error) {
	return s.getUserLocked(id), nil
}

func (s *Store) getUserLocked(id uint64) *models.User {
	if item, ok := s.users[id]; ok {
		u := item
		return &u
	}
	return nil
}

func (s *Store) AdjustBalanceTx(ctx context.Context, tx *gorm.DB, userID uint64, availableDelta, heldDelta decimal.Decimal, requireAvailable bool) (bool, error) {
	item, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	next := item.AvailableBalance.Add(availableDelta)
	if requireAvailable && next.IsNegative() {
		return false, nil
	}
	item.AvailableBalance = next
	item.HeldAmount = item.HeldAmount.Add(heldDelta)
	item.UpdatedAt = time.Now().UTC()
	s.users[userID] = item
	return true, nil
}

func (s *Store) InsertWalletTransactionTx(ctx context.Context, tx *gorm.DB, item *models.WalletTransaction) error {
	if item.ExternalRef != nil {
		for _, existing := range s.walletTxs {
			if existing.ExternalRef != nil && *existing.ExternalRef == *item.ExternalRef {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	s.nextWalletTxID++
	item.ID = s.nextWalletTxID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.walletTxs[item.ID] = *item
	return nil
}

func (s *Store) ListWalletTransactions(ctx context.Context, params repository.ListWalletTransactionsParams) ([]models.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.WalletTransaction
	for _, item := range s.walletTxs {
		if params.UserID != nil && item.UserID != *params.UserID {
			continue
		}
		if params.Type != nil && strings.TrimSpace(*params.Type) != "" && item.Type != *params.Type {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

// --- auctions ----------------------------------------------------------------

func (s *Store) GetAuction(ctx context.Context, id uint64) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.auctions[id]; ok {
		a := item
		return &a, nil
	}
	return nil, nil
}

func (s *Store) LockAuctionTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Auction, error) {
	if item, ok := s.auctions[id]; ok {
		a := item
		return &a, nil
	}
	return nil, nil
}

func (s *Store) SaveAuctionTx(ctx context.Context, tx *gorm.DB, item *models.Auction) error {
	item.UpdatedAt = time.Now().UTC()
	s.auctions[item.ID] = *item
	return nil
}

func (s *Store) ListAuctions(ctx context.Context, params repository.ListAuctionsParams) ([]models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.Auction
	for _, item := range s.auctions {
		if params.Status != nil && item.Status != *params.Status {
			continue
		}
		if params.SellerID != nil && item.SellerID != *params.SellerID {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) ListScheduledDue(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	return s.listAuctionIDs(func(a models.Auction) bool {
		return a.Status == models.AuctionStatusScheduled && !a.StartTime.After(now)
	})
}

func (s *Store) ListLiveDue(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	return s.listAuctionIDs(func(a models.Auction) bool {
		return a.Status == models.AuctionStatusLive && !a.EndTime.After(now)
	})
}

func (s *Store) ListSettlementOverdue(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	pending := map[string]struct{}{
		models.AuctionStatusEnded:                 {},
		models.AuctionStatusSoldPending70:         {},
		models.AuctionStatusSoldPendingValidation: {},
	}
	return s.listAuctionIDs(func(a models.Auction) bool {
		_, ok := pending[a.Status]
		return ok && a.EndTime.Before(cutoff)
	})
}

func (s *Store) listAuctionIDs(match func(models.Auction) bool) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, item := range s.auctions {
		if match(item) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// --- bids --------------------------------------------------------------------

func (s *Store) InsertBidTx(ctx context.Context, tx *gorm.DB, item *models.Bid) error {
	s.nextBidID++
	item.ID = s.nextBidID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.bids[item.ID] = *item
	return nil
}

func (s *Store) GetWinningBidTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (*models.Bid, error) {
	for _, item := range s.bids {
		if item.AuctionID == auctionID && item.IsWinning {
			b := item
			return &b, nil
		}
	}
	return nil, nil
}

func (s *Store) ClearWinningBidTx(ctx context.Context, tx *gorm.DB, bidID uint64) error {
	if item, ok := s.bids[bidID]; ok {
		item.IsWinning = false
		s.bids[bidID] = item
	}
	return nil
}

func (s *Store) ListBidsByAuction(ctx context.Context, auctionID uint64, limit int) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.Bid
	for _, item := range s.bids {
		if item.AuctionID == auctionID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

// --- escrows -----------------------------------------------------------------

func (s *Store) InsertEscrowTx(ctx context.Context, tx *gorm.DB, item *models.Escrow) error {
	for _, existing := range s.escrows {
		if existing.AuctionID == item.AuctionID {
			return gorm.ErrDuplicatedKey
		}
	}
	s.nextEscrowID++
	item.ID = s.nextEscrowID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.escrows[item.ID] = *item
	return nil
}

func (s *Store) GetEscrow(ctx context.Context, id uint64) (*models.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.escrows[id]; ok {
		e := item
		return &e, nil
	}
	return nil, nil
}

func (s *Store) GetEscrowTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Escrow, error) {
	if item, ok := s.escrows[id]; ok {
		e := item
		return &e, nil
	}
	return nil, nil
}

func (s *Store) LockEscrowTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Escrow, error) {
	if item, ok := s.escrows[id]; ok {
		e := item
		return &e, nil
	}
	return nil, nil
}

func (s *Store) GetEscrowByAuctionTx(ctx context.Context, tx *gorm.DB, auctionID uint64) (*models.Escrow, error) {
	for _, item := range s.escrows {
		if item.AuctionID == auctionID {
			e := item
			return &e, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveEscrowTx(ctx context.Context, tx *gorm.DB, item *models.Escrow) error {
	item.UpdatedAt = time.Now().UTC()
	s.escrows[item.ID] = *item
	return nil
}

// --- vehicles / certifications -----------------------------------------------

func (s *Store) GetVehicleTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Vehicle, error) {
	if item, ok := s.vehicles[id]; ok {
		v := item
		return &v, nil
	}
	return nil, nil
}

func (s *Store) SetVehicleStatusTx(ctx context.Context, tx *gorm.DB, vehicleID uint64, status string) error {
	if item, ok := s.vehicles[vehicleID]; ok {
		item.Status = status
		item.UpdatedAt = time.Now().UTC()
		s.vehicles[vehicleID] = item
	}
	return nil
}

func (s *Store) GetCertificationByVehicleTx(ctx context.Context, tx *gorm.DB, vehicleID uint64) (*models.Certification, error) {
	for _, item := range s.certifications {
		if item.VehicleID == vehicleID {
			c := item
			return &c, nil
		}
	}
	return nil, nil
}
