package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carbid/internal/config"
	"carbid/internal/models"
	"carbid/internal/repository"
	"carbid/internal/wallet"
)

var (
	ErrAuctionNotFound = errors.New("escrow: auction not found")
	ErrEscrowNotFound  = errors.New("escrow: escrow not found")
	ErrNoSeller        = errors.New("escrow: auction has no recorded seller")
	ErrNotActive       = errors.New("escrow: escrow is not active")
	ErrStageOrder      = errors.New("escrow: stage transition out of order")
)

// Engine drives the three-stage custody protocol: a 10% commitment at win,
// a top-up to 70%, then the final top-up to 100% followed by release to the
// seller. Each stage transition is one transaction (the held-amount bump
// and the stage write commit together), and re-invoking an already-advanced
// stage returns the current state instead of moving money twice.
type Engine struct {
	Repo   repository.Repository
	Ledger *wallet.Ledger
	Config config.EscrowConfig
	Logger *zap.Logger
}

// Initiate opens custody for a won auction, holding the commitment
// percentage of amount from the buyer. Idempotent per auction: if custody
// already exists it is returned unchanged.
func (e *Engine) Initiate(ctx context.Context, auctionID, buyerID uint64, amount decimal.Decimal) (*models.Escrow, error) {
	var esc *models.Escrow
	err := e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		auction, err := e.Repo.LockAuctionTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return ErrAuctionNotFound
		}
		esc, err = e.InitiateTx(ctx, tx, auction, buyerID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return esc, nil
}

// InitiateTx is the in-transaction form used by the lifecycle sweep, which
// already holds the auction row lock.
func (e *Engine) InitiateTx(ctx context.Context, tx *gorm.DB, auction *models.Auction, buyerID uint64, amount decimal.Decimal) (*models.Escrow, error) {
	if auction.SellerID == 0 {
		return nil, ErrNoSeller
	}
	existing, err := e.Repo.GetEscrowByAuctionTx(ctx, tx, auction.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	commitment := pctOf(amount, e.commitmentPct())
	if _, err := e.Ledger.Apply(ctx, tx, buyerID, wallet.Entry{
		Type:   wallet.EntryEscrowHold,
		Amount: commitment,
	}); err != nil {
		return nil, fmt.Errorf("escrow: hold commitment: %w", err)
	}

	esc := &models.Escrow{
		AuctionID:       auction.ID,
		BuyerID:         buyerID,
		SellerID:        auction.SellerID,
		TotalDealAmount: amount,
		HeldAmount:      commitment,
		Stage:           models.EscrowStageCommitment10,
		Status:          models.EscrowStatusActive,
	}
	if err := e.Repo.InsertEscrowTx(ctx, tx, esc); err != nil {
		return nil, err
	}
	if e.Logger != nil {
		e.Logger.Info("escrow initiated",
			zap.Uint64("auction_id", auction.ID),
			zap.Uint64("buyer_id", buyerID),
			zap.String("commitment", commitment.String()),
		)
	}
	return esc, nil
}

// UpgradeTo70 tops the buyer's held funds up to the upgrade percentage of
// the deal and flips the auction to sold_pending_validation.
func (e *Engine) UpgradeTo70(ctx context.Context, escrowID uint64) (*models.Escrow, error) {
	var esc *models.Escrow
	err := e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		esc, err = e.lockEscrowAuctionFirst(ctx, tx, escrowID)
		if err != nil {
			return err
		}
		if esc.Stage == models.EscrowStage70 || esc.Stage == models.EscrowStageCompleted {
			return nil // already advanced
		}
		if esc.Status != models.EscrowStatusActive {
			return ErrNotActive
		}

		target := pctOf(esc.TotalDealAmount, e.upgradePct())
		delta := target.Sub(esc.HeldAmount)
		if delta.IsPositive() {
			if _, err := e.Ledger.Apply(ctx, tx, esc.BuyerID, wallet.Entry{
				Type:   wallet.EntryEscrowHold,
				Amount: delta,
			}); err != nil {
				return fmt.Errorf("escrow: hold upgrade delta: %w", err)
			}
			esc.HeldAmount = target
		}
		esc.Stage = models.EscrowStage70
		if err := e.Repo.SaveEscrowTx(ctx, tx, esc); err != nil {
			return err
		}

		auction, err := e.Repo.LockAuctionTx(ctx, tx, esc.AuctionID)
		if err != nil {
			return err
		}
		if auction != nil && auction.Status == models.AuctionStatusSoldPending70 {
			auction.Status = models.AuctionStatusSoldPendingValidation
			if err := e.Repo.SaveAuctionTx(ctx, tx, auction); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return esc, nil
}

// Complete holds the remaining delta to 100%, releases the full deal amount
// from the buyer's held funds, credits the seller net of commission, and
// settles the auction. Returns the seller payout.
func (e *Engine) Complete(ctx context.Context, escrowID uint64) (decimal.Decimal, error) {
	var payout decimal.Decimal
	err := e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		esc, err := e.lockEscrowAuctionFirst(ctx, tx, escrowID)
		if err != nil {
			return err
		}
		if esc.Stage == models.EscrowStageCompleted {
			payout = netOfCommission(esc.TotalDealAmount, e.commissionRate())
			return nil // already settled
		}
		if esc.Status != models.EscrowStatusActive {
			return ErrNotActive
		}

		delta := esc.TotalDealAmount.Sub(esc.HeldAmount)
		if delta.IsPositive() {
			if _, err := e.Ledger.Apply(ctx, tx, esc.BuyerID, wallet.Entry{
				Type:   wallet.EntryEscrowHold,
				Amount: delta,
			}); err != nil {
				return fmt.Errorf("escrow: hold final delta: %w", err)
			}
			esc.HeldAmount = esc.TotalDealAmount
		}

		// Custody resolves: the full amount leaves the buyer, the seller is
		// credited gross and then debited the platform commission, keeping
		// both legs visible in the ledger.
		if _, err := e.Ledger.Apply(ctx, tx, esc.BuyerID, wallet.Entry{
			Type:   wallet.EntryEscrowRelease,
			Amount: esc.TotalDealAmount,
		}); err != nil {
			return fmt.Errorf("escrow: release buyer funds: %w", err)
		}
		if _, err := e.Ledger.Apply(ctx, tx, esc.SellerID, wallet.Entry{
			Type:   wallet.EntryPayout,
			Amount: esc.TotalDealAmount,
		}); err != nil {
			return fmt.Errorf("escrow: credit seller: %w", err)
		}
		fee := esc.TotalDealAmount.Sub(netOfCommission(esc.TotalDealAmount, e.commissionRate()))
		if fee.IsPositive() {
			if _, err := e.Ledger.Apply(ctx, tx, esc.SellerID, wallet.Entry{
				Type:   wallet.EntryCommission,
				Amount: fee,
			}); err != nil {
				return fmt.Errorf("escrow: withhold commission: %w", err)
			}
		}
		payout = netOfCommission(esc.TotalDealAmount, e.commissionRate())

		esc.HeldAmount = decimal.Zero
		esc.Stage = models.EscrowStageCompleted
		esc.Status = models.EscrowStatusReleased
		if err := e.Repo.SaveEscrowTx(ctx, tx, esc); err != nil {
			return err
		}

		auction, err := e.Repo.LockAuctionTx(ctx, tx, esc.AuctionID)
		if err != nil {
			return err
		}
		if auction != nil {
			auction.Status = models.AuctionStatusSettled
			if err := e.Repo.SaveAuctionTx(ctx, tx, auction); err != nil {
				return err
			}
			if err := e.Repo.SetVehicleStatusTx(ctx, tx, auction.VehicleID, models.VehicleStatusSold); err != nil {
				return err
			}
		}
		if e.Logger != nil {
			e.Logger.Info("escrow completed",
				zap.Uint64("escrow_id", esc.ID),
				zap.String("payout", payout.String()),
			)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return payout, nil
}

// lockEscrowAuctionFirst takes the auction row lock before the escrow row
// lock. Every writer that touches both rows uses this order, so stage
// transitions cannot deadlock against the lifecycle sweeps. The escrow is
// re-read under its lock after the auction lock is held.
func (e *Engine) lockEscrowAuctionFirst(ctx context.Context, tx *gorm.DB, escrowID uint64) (*models.Escrow, error) {
	peek, err := e.Repo.GetEscrowTx(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	if peek == nil {
		return nil, ErrEscrowNotFound
	}
	if _, err := e.Repo.LockAuctionTx(ctx, tx, peek.AuctionID); err != nil {
		return nil, err
	}
	esc, err := e.Repo.LockEscrowTx(ctx, tx, escrowID)
	if err != nil {
		return nil, err
	}
	if esc == nil {
		return nil, ErrEscrowNotFound
	}
	return esc, nil
}

func (e *Engine) commitmentPct() int64 {
	if e.Config.CommitmentPct > 0 {
		return e.Config.CommitmentPct
	}
	return 10
}

func (e *Engine) upgradePct() int64 {
	if e.Config.UpgradePct > 0 {
		return e.Config.UpgradePct
	}
	return 70
}

func (e *Engine) commissionRate() decimal.Decimal {
	if e.Config.CommissionRate > 0 {
		return decimal.NewFromFloat(e.Config.CommissionRate)
	}
	return decimal.NewFromFloat(0.05)
}

func pctOf(amount decimal.Decimal, pct int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100))
}

func netOfCommission(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Sub(amount.Mul(rate))
}
