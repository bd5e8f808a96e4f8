package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"carbid/internal/models"
	"carbid/internal/repository"
)

var (
	ErrInvalidAmount      = errors.New("wallet: amount must be positive")
	ErrUnknownEntryType   = errors.New("wallet: unknown entry type")
	ErrUserNotFound       = errors.New("wallet: user not found")
	ErrInsufficientFunds  = errors.New("wallet: insufficient available balance")
	ErrDuplicateReference = errors.New("wallet: external reference already applied")
)

// EntryType is the closed set of ledger entry kinds. Each type maps to a
// fixed effect on the user's available/held balances via effectTable; there
// is no string dispatch beyond this table.
type EntryType string

const (
	EntryFunding       EntryType = "funding"
	EntryBidHold       EntryType = "bid_hold"
	EntryBidRelease    EntryType = "bid_release"
	EntryEscrowHold    EntryType = "escrow_hold"
	EntryEscrowRelease EntryType = "escrow_release"
	EntryPayout        EntryType = "payout"
	EntryCommission    EntryType = "commission"
	EntryRefund        EntryType = "refund"
	EntryForfeit       EntryType = "forfeit"
)

// effect describes, in units of the entry amount, how a type moves money
// between the available and held balances. checkAvailable marks debit-like
// types that must not overdraw.
type effect struct {
	available      int // -1, 0, +1
	held           int
	checkAvailable bool
}

var effectTable = map[EntryType]effect{
	// Gateway-confirmed top-up.
	EntryFunding: {available: +1},
	// Deposit moves from spendable to held while a bid leads.
	EntryBidHold: {available: -1, held: +1, checkAvailable: true},
	// Outbid: the held deposit returns to the available balance.
	EntryBidRelease: {available: +1, held: -1},
	// Escrow stage funding, same custody semantics as a bid hold.
	EntryEscrowHold: {available: -1, held: +1, checkAvailable: true},
	// Settlement: held funds leave the buyer entirely.
	EntryEscrowRelease: {held: -1},
	// Seller receives the deal amount.
	EntryPayout: {available: +1},
	// Platform fee withheld from the seller's payout.
	EntryCommission: {available: -1, checkAvailable: true},
	// Administrative reversal back to available.
	EntryRefund: {available: +1, held: -1},
	// Missed settlement deadline: held deposit is lost.
	EntryForfeit: {held: -1},
}

type Entry struct {
	Type        EntryType
	Amount      decimal.Decimal
	ExternalRef *string
}

// Ledger is the only writer of user balances. Apply runs inside the
// caller's transaction: the balance mutation, the balance_after checkpoint
// and the transaction row commit together or not at all.
type Ledger struct {
	Repo repository.Repository
}

func (l *Ledger) Apply(ctx context.Context, tx *gorm.DB, userID uint64, entry Entry) (*models.WalletTransaction, error) {
	if l == nil || l.Repo == nil {
		return nil, errors.New("wallet: ledger not initialized")
	}
	if !entry.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	eff, ok := effectTable[entry.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntryType, entry.Type)
	}

	availableDelta := entry.Amount.Mul(decimal.NewFromInt(int64(eff.available)))
	heldDelta := entry.Amount.Mul(decimal.NewFromInt(int64(eff.held)))

	applied, err := l.Repo.AdjustBalanceTx(ctx, tx, userID, availableDelta, heldDelta, eff.checkAvailable)
	if err != nil {
		return nil, fmt.Errorf("wallet: adjust balance for user %d: %w", userID, err)
	}
	if !applied {
		user, uerr := l.Repo.GetUserTx(ctx, tx, userID)
		if uerr != nil {
			return nil, uerr
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		return nil, ErrInsufficientFunds
	}

	user, err := l.Repo.GetUserTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	item := &models.WalletTransaction{
		UserID:       userID,
		Type:         string(entry.Type),
		Amount:       entry.Amount,
		BalanceAfter: user.AvailableBalance,
		Status:       models.WalletTransactionStatusCompleted,
		ExternalRef:  entry.ExternalRef,
	}
	if err := l.Repo.InsertWalletTransactionTx(ctx, tx, item); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// The unique index on external_ref is the idempotency anchor:
			// a retried gateway callback lands here and must be treated as
			// already applied, not re-applied.
			return nil, ErrDuplicateReference
		}
		return nil, fmt.Errorf("wallet: record transaction: %w", err)
	}
	return item, nil
}

// Fund applies a gateway-confirmed top-up in its own transaction. A repeat
// of the same external reference reports ErrDuplicateReference; callers
// present that as success-already-happened.
func (l *Ledger) Fund(ctx context.Context, userID uint64, amount decimal.Decimal, externalRef string) (*models.WalletTransaction, error) {
	if externalRef == "" {
		externalRef = uuid.NewString()
	}
	var item *models.WalletTransaction
	err := l.Repo.InTx(ctx, func(tx *gorm.DB) error {
		var aerr error
		item, aerr = l.Apply(ctx, tx, userID, Entry{
			Type:        EntryFunding,
			Amount:      amount,
			ExternalRef: &externalRef,
		})
		return aerr
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
