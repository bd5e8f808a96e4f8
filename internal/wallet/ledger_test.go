package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"carbid/internal/models"
	"carbid/internal/repository"
	memoryrepository "carbid/internal/repository/memory"
)

func listTxParams(userID uint64) repository.ListWalletTransactionsParams {
	return repository.ListWalletTransactionsParams{UserID: &userID}
}

func newLedger() (*Ledger, *memoryrepository.Store) {
	store := memoryrepository.New()
	return &Ledger{Repo: store}, store
}

func seedUser(store *memoryrepository.Store, id uint64, available, held int64) {
	store.PutUser(models.User{
		ID:               id,
		Email:            "user@example.com",
		AvailableBalance: decimal.NewFromInt(available),
		HeldAmount:       decimal.NewFromInt(held),
	})
}

func apply(t *testing.T, l *Ledger, userID uint64, entry Entry) *models.WalletTransaction {
	t.Helper()
	var item *models.WalletTransaction
	err := l.Repo.InTx(context.Background(), func(tx *gorm.DB) error {
		var aerr error
		item, aerr = l.Apply(context.Background(), tx, userID, entry)
		return aerr
	})
	if err != nil {
		t.Fatalf("apply %s: %v", entry.Type, err)
	}
	return item
}

func balances(t *testing.T, store *memoryrepository.Store, userID uint64) (decimal.Decimal, decimal.Decimal) {
	t.Helper()
	user, err := store.GetUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user == nil {
		t.Fatalf("user %d not found", userID)
	}
	return user.AvailableBalance, user.HeldAmount
}

func TestApply_EntryEffects(t *testing.T) {
	cases := []struct {
		entry         EntryType
		wantAvailable int64
		wantHeld      int64
	}{
		{EntryFunding, 1100, 200},
		{EntryBidHold, 900, 300},
		{EntryBidRelease, 1100, 100},
		{EntryEscrowHold, 900, 300},
		{EntryEscrowRelease, 1000, 100},
		{EntryPayout, 1100, 200},
		{EntryCommission, 900, 200},
		{EntryRefund, 1100, 100},
		{EntryForfeit, 1000, 100},
	}
	for _, tc := range cases {
		t.Run(string(tc.entry), func(t *testing.T) {
			ledger, store := newLedger()
			seedUser(store, 1, 1000, 200)

			apply(t, ledger, 1, Entry{Type: tc.entry, Amount: decimal.NewFromInt(100)})

			available, held := balances(t, store, 1)
			if available.Cmp(decimal.NewFromInt(tc.wantAvailable)) != 0 {
				t.Fatalf("available=%s want=%d", available.String(), tc.wantAvailable)
			}
			if held.Cmp(decimal.NewFromInt(tc.wantHeld)) != 0 {
				t.Fatalf("held=%s want=%d", held.String(), tc.wantHeld)
			}
		})
	}
}

func TestApply_RecordsBalanceAfter(t *testing.T) {
	ledger, store := newLedger()
	seedUser(store, 1, 1000, 0)

	item := apply(t, ledger, 1, Entry{Type: EntryBidHold, Amount: decimal.NewFromInt(250)})

	if item.BalanceAfter.Cmp(decimal.NewFromInt(750)) != 0 {
		t.Fatalf("balance_after=%s want=750", item.BalanceAfter.String())
	}
	if item.Status != models.WalletTransactionStatusCompleted {
		t.Fatalf("status=%s want=completed", item.Status)
	}
}

func TestApply_RejectsNonPositiveAmount(t *testing.T) {
	ledger, store := newLedger()
	seedUser(store, 1, 1000, 0)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		err := ledger.Repo.InTx(context.Background(), func(tx *gorm.DB) error {
			_, aerr := ledger.Apply(context.Background(), tx, 1, Entry{Type: EntryFunding, Amount: amount})
			return aerr
		})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount=%s err=%v want ErrInvalidAmount", amount.String(), err)
		}
	}
}

func TestApply_RejectsUnknownEntryType(t *testing.T) {
	ledger, store := newLedger()
	seedUser(store, 1, 1000, 0)

	err := ledger.Repo.InTx(context.Background(), func(tx *gorm.DB) error {
		_, aerr := ledger.Apply(context.Background(), tx, 1, Entry{Type: "chargeback", Amount: decimal.NewFromInt(10)})
		return aerr
	})
	if !errors.Is(err, ErrUnknownEntryType) {
		t.Fatalf("err=%v want ErrUnknownEntryType", err)
	}
}

func TestApply_InsufficientFunds(t *testing.T) {
	ledger, store := newLedger()
	seedUser(store, 1, 100, 0)

	err := ledger.Repo.InTx(context.Background(), func(tx *gorm.DB) error {
		_, aerr := ledger.Apply(context.Background(), tx, 1, Entry{Type: EntryBidHold, Amount: decimal.NewFromInt(101)})
		return aerr
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}

	// The failed transaction must leave no trace.
	available, held := balances(t, store, 1)
	if available.Cmp(decimal.NewFromInt(100)) != 0 || !held.IsZero() {
		t.Fatalf("balances mutated after failed hold: available=%s held=%s", available.String(), held.String())
	}
	txs, err := store.ListWalletTransactions(context.Background(), listTxParams(1))
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("got %d ledger rows after failed hold, want 0", len(txs))
	}
}

func TestApply_UserNotFound(t *testing.T) {
	ledger, _ := newLedger()

	err := ledger.Repo.InTx(context.Background(), func(tx *gorm.DB) error {
		_, aerr := ledger.Apply(context.Background(), tx, 42, Entry{Type: EntryFunding, Amount: decimal.NewFromInt(10)})
		return aerr
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err=%v want ErrUserNotFound", err)
	}
}

func TestFund_DuplicateExternalRef(t *testing.T) {
	ledger, store := newLedger()
	seedUser(store, 1, 0, 0)

	if _, err := ledger.Fund(context.Background(), 1, decimal.NewFromInt(500), "gw-cb-001"); err != nil {
		t.Fatalf("first funding: %v", err)
	}
	_, err := ledger.Fund(context.Background(), 1, decimal.NewFromInt(500), "gw-cb-001")
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("err=%v want ErrDuplicateReference", err)
	}

	// The retry must not double-credit.
	available, _ := balances(t, store, 1)
	if available.Cmp(decimal.NewFromInt(500)) != 0 {
		t.Fatalf("available=%s want=500", available.String())
	}
	txs, err := store.ListWalletTransactions(context.Background(), listTxParams(1))
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d ledger rows, want 1", len(txs))
	}
}

func TestFund_GeneratesRefWhenMissing(t *testing.T) {
	ledger, store := newLedger()
	seedUser(store, 1, 0, 0)

	item, err := ledger.Fund(context.Background(), 1, decimal.NewFromInt(100), "")
	if err != nil {
		t.Fatalf("funding: %v", err)
	}
	if item.ExternalRef == nil || *item.ExternalRef == "" {
		t.Fatalf("external ref not generated: %+v", item.ExternalRef)
	}
}
