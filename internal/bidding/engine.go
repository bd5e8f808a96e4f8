package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carbid/internal/config"
	"carbid/internal/events"
	"carbid/internal/models"
	"carbid/internal/repository"
	"carbid/internal/wallet"
)

var (
	ErrAuctionNotFound = errors.New("bidding: auction not found")
	ErrAuctionNotLive  = errors.New("bidding: auction is not live")
	ErrBidTooLow       = errors.New("bidding: bid below current price plus increment")
	ErrKYCRequired     = errors.New("bidding: deposit exceeds threshold, identity verification required")
	ErrUserNotFound    = errors.New("bidding: user not found")

	// Re-exported so handlers map one sentinel for the whole bid path.
	ErrInsufficientFunds = wallet.ErrInsufficientFunds
)

// Engine serializes bid placement per auction. All read-modify-write of the
// auction row happens under its row lock inside one transaction; the
// broadcast to observers happens after commit.
type Engine struct {
	Repo   repository.Repository
	Ledger *wallet.Ledger
	Hub    *events.Hub
	Config config.AuctionConfig
	Logger *zap.Logger
}

func (e *Engine) PlaceBid(ctx context.Context, userID, auctionID uint64, amount decimal.Decimal) (*models.Bid, error) {
	if e == nil || e.Repo == nil || e.Ledger == nil {
		return nil, errors.New("bidding: engine not initialized")
	}

	var (
		bid *models.Bid
		ev  events.BidPlaced
	)
	err := e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()

		auction, err := e.Repo.LockAuctionTx(ctx, tx, auctionID)
		if err != nil {
			return fmt.Errorf("bidding: lock auction %d: %w", auctionID, err)
		}
		if auction == nil {
			return ErrAuctionNotFound
		}
		if auction.Status != models.AuctionStatusLive {
			return ErrAuctionNotLive
		}
		if now.Before(auction.StartTime) || !now.Before(auction.EndTime) {
			return ErrAuctionNotLive
		}

		minBid := auction.CurrentPrice.Add(auction.BidIncrement)
		if amount.LessThan(minBid) {
			return fmt.Errorf("%w: minimum is %s", ErrBidTooLow, minBid.String())
		}

		deposit := amount.Mul(decimal.NewFromInt(auction.DepositPct)).Div(decimal.NewFromInt(100))

		user, err := e.Repo.GetUserTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		threshold := decimal.NewFromFloat(e.Config.KYCDepositThreshold)
		if threshold.IsPositive() && deposit.GreaterThan(threshold) && !user.KYCVerified {
			return ErrKYCRequired
		}
		// Release the outgoing leader's deposit before taking the new hold,
		// so a bidder raising their own bid reuses the freed funds.
		prev, err := e.Repo.GetWinningBidTx(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if (prev == nil || prev.UserID != userID) && user.AvailableBalance.LessThan(deposit) {
			return ErrInsufficientFunds
		}
		if prev != nil {
			prevDeposit := prev.Amount.Mul(decimal.NewFromInt(auction.DepositPct)).Div(decimal.NewFromInt(100))
			if _, err := e.Ledger.Apply(ctx, tx, prev.UserID, wallet.Entry{
				Type:   wallet.EntryBidRelease,
				Amount: prevDeposit,
			}); err != nil {
				return fmt.Errorf("bidding: release previous hold: %w", err)
			}
			if err := e.Repo.ClearWinningBidTx(ctx, tx, prev.ID); err != nil {
				return err
			}
		}

		if _, err := e.Ledger.Apply(ctx, tx, userID, wallet.Entry{
			Type:   wallet.EntryBidHold,
			Amount: deposit,
		}); err != nil {
			return err
		}

		bid = &models.Bid{
			AuctionID: auctionID,
			UserID:    userID,
			Amount:    amount,
			IsWinning: true,
			CreatedAt: now,
		}
		if err := e.Repo.InsertBidTx(ctx, tx, bid); err != nil {
			return err
		}

		auction.CurrentPrice = amount
		auction.WinnerID = &userID
		auction.BidCount++
		if auction.EndTime.Sub(now) < e.snipeWindow() {
			auction.EndTime = auction.EndTime.Add(e.snipeExtension())
			auction.SnipeExtensionCount++
		}
		if err := e.Repo.SaveAuctionTx(ctx, tx, auction); err != nil {
			return err
		}

		ev = events.BidPlaced{
			AuctionID:           auctionID,
			BidID:               bid.ID,
			UserID:              userID,
			Amount:              amount,
			CurrentPrice:        auction.CurrentPrice,
			BidCount:            auction.BidCount,
			EndTime:             auction.EndTime,
			SnipeExtensionCount: auction.SnipeExtensionCount,
			CreatedAt:           now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.Hub != nil {
		e.Hub.Publish(ev)
	}
	if e.Logger != nil {
		e.Logger.Info("bid placed",
			zap.Uint64("auction_id", auctionID),
			zap.Uint64("user_id", userID),
			zap.String("amount", amount.String()),
		)
	}
	return bid, nil
}

func (e *Engine) snipeWindow() time.Duration {
	if e.Config.SnipeWindow > 0 {
		return e.Config.SnipeWindow
	}
	return 2 * time.Minute
}

func (e *Engine) snipeExtension() time.Duration {
	if e.Config.SnipeExtension > 0 {
		return e.Config.SnipeExtension
	}
	return 2 * time.Minute
}
