package lifecycle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carbid/internal/config"
	"carbid/internal/escrow"
	"carbid/internal/models"
	"carbid/internal/repository"
	"carbid/internal/wallet"
)

// Manager advances auctions through their state machine on wall-clock
// sweeps. Candidate rows come from plain reads; each transition re-locks
// the auction row and re-checks its state, so a sweep never races a live
// bid into a lost update.
type Manager struct {
	Repo   repository.Repository
	Ledger *wallet.Ledger
	Escrow *escrow.Engine
	Config config.SettlementConfig
	Logger *zap.Logger
}

type SweepResult struct {
	Activated int `json:"activated"`
	Ended     int `json:"ended"`
}

type TimeoutSweepResult struct {
	Forfeited int `json:"forfeited"`
}

// SweepLifecycle promotes scheduled auctions to live and closes out live
// auctions past their end time.
func (m *Manager) SweepLifecycle(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := time.Now().UTC()
	limit := m.sweepSize()

	dueStart, err := m.Repo.ListScheduledDue(ctx, now, limit)
	if err != nil {
		return res, err
	}
	for _, id := range dueStart {
		activated, err := m.activate(ctx, id, now)
		if err != nil {
			m.logWarn("activate auction failed", id, err)
			continue
		}
		if activated {
			res.Activated++
		}
	}

	dueEnd, err := m.Repo.ListLiveDue(ctx, now, limit)
	if err != nil {
		return res, err
	}
	for _, id := range dueEnd {
		ended, err := m.end(ctx, id, now)
		if err != nil {
			m.logWarn("end auction failed", id, err)
			continue
		}
		if ended {
			res.Ended++
		}
	}
	return res, nil
}

func (m *Manager) activate(ctx context.Context, auctionID uint64, now time.Time) (bool, error) {
	var activated bool
	err := m.Repo.InTx(ctx, func(tx *gorm.DB) error {
		auction, err := m.Repo.LockAuctionTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if auction == nil || auction.Status != models.AuctionStatusScheduled || auction.StartTime.After(now) {
			return nil
		}
		auction.Status = models.AuctionStatusLive
		if err := m.Repo.SaveAuctionTx(ctx, tx, auction); err != nil {
			return err
		}
		if err := m.Repo.SetVehicleStatusTx(ctx, tx, auction.VehicleID, models.VehicleStatusInAuction); err != nil {
			return err
		}
		activated = true
		return nil
	})
	return activated, err
}

// end closes one live auction: no winner or an unmet reserve means unsold;
// otherwise the winner's bid-hold converts into the escrow commitment and
// settlement begins.
func (m *Manager) end(ctx context.Context, auctionID uint64, now time.Time) (bool, error) {
	var ended bool
	err := m.Repo.InTx(ctx, func(tx *gorm.DB) error {
		auction, err := m.Repo.LockAuctionTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		// A snipe extension may have moved end_time since the candidate read.
		if auction == nil || auction.Status != models.AuctionStatusLive || auction.EndTime.After(now) {
			return nil
		}
		auction.Status = models.AuctionStatusEnded

		reserveMet := auction.ReservePrice == nil || !auction.CurrentPrice.LessThan(*auction.ReservePrice)
		if auction.WinnerID == nil || !reserveMet {
			auction.Status = models.AuctionStatusUnsold
			if err := m.Repo.SaveAuctionTx(ctx, tx, auction); err != nil {
				return err
			}
			if err := m.releaseWinnerHold(ctx, tx, auction); err != nil {
				return err
			}
			if err := m.Repo.SetVehicleStatusTx(ctx, tx, auction.VehicleID, models.VehicleStatusAvailable); err != nil {
				return err
			}
			ended = true
			return nil
		}

		// Convert the winner's bid deposit into the escrow commitment: the
		// bid hold is released and the escrow hold is taken in the same
		// transaction, so the buyer is never double-held.
		if err := m.releaseWinnerHold(ctx, tx, auction); err != nil {
			return err
		}
		if _, err := m.Escrow.InitiateTx(ctx, tx, auction, *auction.WinnerID, auction.CurrentPrice); err != nil {
			return err
		}
		auction.Status = models.AuctionStatusSoldPending70
		if err := m.Repo.SaveAuctionTx(ctx, tx, auction); err != nil {
			return err
		}
		if err := m.Repo.SetVehicleStatusTx(ctx, tx, auction.VehicleID, models.VehicleStatusPendingSettlement); err != nil {
			return err
		}
		ended = true
		return nil
	})
	return ended, err
}

func (m *Manager) releaseWinnerHold(ctx context.Context, tx *gorm.DB, auction *models.Auction) error {
	win, err := m.Repo.GetWinningBidTx(ctx, tx, auction.ID)
	if err != nil {
		return err
	}
	if win == nil {
		return nil
	}
	deposit := win.Amount.Mul(decimal.NewFromInt(auction.DepositPct)).Div(decimal.NewFromInt(100))
	_, err = m.Ledger.Apply(ctx, tx, win.UserID, wallet.Entry{
		Type:   wallet.EntryBidRelease,
		Amount: deposit,
	})
	return err
}

// SweepSettlementTimeouts forfeits escrows whose auction ended more than
// the settlement deadline ago without completing: the buyer's held funds
// are lost, the auction is cancelled and the vehicle returns to market.
func (m *Manager) SweepSettlementTimeouts(ctx context.Context) (TimeoutSweepResult, error) {
	var res TimeoutSweepResult
	cutoff := time.Now().UTC().Add(-m.deadline())

	overdue, err := m.Repo.ListSettlementOverdue(ctx, cutoff, m.sweepSize())
	if err != nil {
		return res, err
	}
	for _, id := range overdue {
		forfeited, err := m.forfeit(ctx, id, cutoff)
		if err != nil {
			m.logWarn("forfeit auction failed", id, err)
			continue
		}
		if forfeited {
			res.Forfeited++
		}
	}
	return res, nil
}

func (m *Manager) forfeit(ctx context.Context, auctionID uint64, cutoff time.Time) (bool, error) {
	var forfeited bool
	err := m.Repo.InTx(ctx, func(tx *gorm.DB) error {
		auction, err := m.Repo.LockAuctionTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if auction == nil || !auction.EndTime.Before(cutoff) {
			return nil
		}
		switch auction.Status {
		case models.AuctionStatusEnded, models.AuctionStatusSoldPending70, models.AuctionStatusSoldPendingValidation:
		default:
			return nil
		}

		esc, err := m.Repo.GetEscrowByAuctionTx(ctx, tx, auction.ID)
		if err != nil {
			return err
		}
		if esc != nil {
			if esc.Stage == models.EscrowStageCompleted {
				return nil
			}
			esc, err = m.Repo.LockEscrowTx(ctx, tx, esc.ID)
			if err != nil {
				return err
			}
			if esc.HeldAmount.IsPositive() {
				if _, err := m.Ledger.Apply(ctx, tx, esc.BuyerID, wallet.Entry{
					Type:   wallet.EntryForfeit,
					Amount: esc.HeldAmount,
				}); err != nil {
					return err
				}
			}
			esc.HeldAmount = decimal.Zero
			esc.Status = models.EscrowStatusForfeited
			if err := m.Repo.SaveEscrowTx(ctx, tx, esc); err != nil {
				return err
			}
		}

		auction.Status = models.AuctionStatusCancelled
		if err := m.Repo.SaveAuctionTx(ctx, tx, auction); err != nil {
			return err
		}
		if err := m.Repo.SetVehicleStatusTx(ctx, tx, auction.VehicleID, models.VehicleStatusAvailable); err != nil {
			return err
		}
		forfeited = true
		return nil
	})
	return forfeited, err
}

func (m *Manager) deadline() time.Duration {
	if m.Config.Deadline > 0 {
		return m.Config.Deadline
	}
	return 48 * time.Hour
}

func (m *Manager) sweepSize() int {
	if m.Config.SweepSize > 0 {
		return m.Config.SweepSize
	}
	return 200
}

func (m *Manager) logWarn(msg string, auctionID uint64, err error) {
	if m.Logger != nil {
		m.Logger.Warn(msg, zap.Uint64("auction_id", auctionID), zap.Error(err))
	}
}
