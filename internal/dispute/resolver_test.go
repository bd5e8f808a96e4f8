package dispute

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"carbid/internal/models"
	memoryrepository "carbid/internal/repository/memory"
)

func seedDisputeFixture(store *memoryrepository.Store, faultFlags []string) {
	store.PutVehicle(models.Vehicle{
		ID:       5,
		SellerID: 2,
		Status:   models.VehicleStatusPendingSettlement,
	})
	store.PutAuction(models.Auction{
		ID:           10,
		VehicleID:    5,
		SellerID:     2,
		CurrentPrice: decimal.NewFromInt(800000),
		Status:       models.AuctionStatusSoldPendingValidation,
	})
	store.PutEscrow(models.Escrow{
		ID:              1,
		AuctionID:       10,
		BuyerID:         1,
		SellerID:        2,
		TotalDealAmount: decimal.NewFromInt(800000),
		HeldAmount:      decimal.NewFromInt(560000),
		Stage:           models.EscrowStage70,
		Status:          models.EscrowStatusActive,
	})
	if faultFlags != nil {
		raw, _ := json.Marshal(faultFlags)
		store.PutCertification(models.Certification{
			ID:         1,
			VehicleID:  5,
			Status:     "passed",
			FaultFlags: datatypes.JSON(raw),
		})
	}
}

func TestEvaluate_MechanicalDisclosedRejects(t *testing.T) {
	store := memoryrepository.New()
	resolver := &Resolver{Repo: store}
	seedDisputeFixture(store, []string{"engine_oil_leak", "gearbox_wear"})

	result, err := resolver.Evaluate(context.Background(), 1, CategoryMechanical, "engine noise on cold start")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Verdict != VerdictReject {
		t.Fatalf("verdict=%s want=reject", result.Verdict)
	}

	// A rejected claim resumes custody.
	esc, _ := store.GetEscrow(context.Background(), 1)
	if esc.Status != models.EscrowStatusActive {
		t.Fatalf("escrow status=%s want=active", esc.Status)
	}

	var meta struct {
		Category Category `json:"category"`
		Verdict  Verdict  `json:"verdict"`
		Evidence string   `json:"evidence"`
	}
	if err := json.Unmarshal(esc.DisputeMeta, &meta); err != nil {
		t.Fatalf("unmarshal dispute meta: %v", err)
	}
	if meta.Category != CategoryMechanical || meta.Verdict != VerdictReject {
		t.Fatalf("meta=%+v want mechanical/reject", meta)
	}
	if meta.Evidence != "engine noise on cold start" {
		t.Fatalf("meta evidence=%q", meta.Evidence)
	}
}

func TestEvaluate_MechanicalUndisclosedEscalates(t *testing.T) {
	store := memoryrepository.New()
	resolver := &Resolver{Repo: store}
	seedDisputeFixture(store, nil)

	result, err := resolver.Evaluate(context.Background(), 1, CategoryMechanical, "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Verdict != VerdictEscalate {
		t.Fatalf("verdict=%s want=escalate", result.Verdict)
	}

	esc, _ := store.GetEscrow(context.Background(), 1)
	if esc.Status != models.EscrowStatusDisputed {
		t.Fatalf("escrow status=%s want=disputed", esc.Status)
	}
	// Escalation never moves money.
	if esc.HeldAmount.Cmp(decimal.NewFromInt(560000)) != 0 {
		t.Fatalf("held_amount=%s want=560000", esc.HeldAmount.String())
	}
}

func TestEvaluate_MechanicalEmptyFlagsEscalates(t *testing.T) {
	store := memoryrepository.New()
	resolver := &Resolver{Repo: store}
	seedDisputeFixture(store, []string{})

	result, err := resolver.Evaluate(context.Background(), 1, CategoryMechanical, "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Verdict != VerdictEscalate {
		t.Fatalf("verdict=%s want=escalate", result.Verdict)
	}
}

func TestEvaluate_CosmeticAlwaysEscalates(t *testing.T) {
	store := memoryrepository.New()
	resolver := &Resolver{Repo: store}
	seedDisputeFixture(store, []string{"door_panel_scratch"})

	result, err := resolver.Evaluate(context.Background(), 1, CategoryCosmetic, "paint mismatch on rear panel")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Verdict != VerdictEscalate {
		t.Fatalf("verdict=%s want=escalate", result.Verdict)
	}
	esc, _ := store.GetEscrow(context.Background(), 1)
	if esc.Status != models.EscrowStatusDisputed {
		t.Fatalf("escrow status=%s want=disputed", esc.Status)
	}
}

func TestEvaluate_MissingCategory(t *testing.T) {
	store := memoryrepository.New()
	resolver := &Resolver{Repo: store}
	seedDisputeFixture(store, nil)

	_, err := resolver.Evaluate(context.Background(), 1, "", "")
	if !errors.Is(err, ErrMissingCategory) {
		t.Fatalf("err=%v want ErrMissingCategory", err)
	}
}

func TestEvaluate_TerminalEscrow(t *testing.T) {
	for _, status := range []string{models.EscrowStatusReleased, models.EscrowStatusForfeited} {
		store := memoryrepository.New()
		resolver := &Resolver{Repo: store}
		seedDisputeFixture(store, nil)

		esc, _ := store.GetEscrow(context.Background(), 1)
		esc.Status = status
		store.PutEscrow(*esc)

		_, err := resolver.Evaluate(context.Background(), 1, CategoryMechanical, "")
		if !errors.Is(err, ErrEscrowTerminal) {
			t.Fatalf("status=%s err=%v want ErrEscrowTerminal", status, err)
		}
	}
}

func TestEvaluate_UnknownEscrow(t *testing.T) {
	store := memoryrepository.New()
	resolver := &Resolver{Repo: store}

	_, err := resolver.Evaluate(context.Background(), 404, CategoryMechanical, "")
	if !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("err=%v want ErrEscrowNotFound", err)
	}
}
