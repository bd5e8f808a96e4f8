package dispute

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"carbid/internal/models"
	"carbid/internal/repository"
)

var (
	ErrEscrowNotFound  = errors.New("dispute: escrow not found")
	ErrEscrowTerminal  = errors.New("dispute: escrow already released or forfeited")
	ErrAuctionNotFound = errors.New("dispute: auction not found")
	ErrMissingCategory = errors.New("dispute: category required")
)

type Category string

const (
	CategoryMechanical Category = "mechanical"
	CategoryCosmetic   Category = "cosmetic"
)

type Verdict string

const (
	VerdictReject   Verdict = "reject"
	VerdictEscalate Verdict = "escalate"
)

type Result struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
}

// disputeMeta is the audit record persisted on the escrow row.
type disputeMeta struct {
	Category Category `json:"category"`
	Verdict  Verdict  `json:"verdict"`
	Reason   string   `json:"reason"`
	Evidence string   `json:"evidence,omitempty"`
}

// Resolver auto-adjudicates buyer disputes against the vehicle's forensic
// certification. It only ever decides reject or escalate; money never moves
// here. An escalated escrow stays held until external resolution.
type Resolver struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func (r *Resolver) Evaluate(ctx context.Context, escrowID uint64, category Category, evidence string) (*Result, error) {
	if category == "" {
		return nil, ErrMissingCategory
	}

	var result *Result
	err := r.Repo.InTx(ctx, func(tx *gorm.DB) error {
		peek, err := r.Repo.GetEscrowTx(ctx, tx, escrowID)
		if err != nil {
			return err
		}
		if peek == nil {
			return ErrEscrowNotFound
		}
		auction, err := r.Repo.LockAuctionTx(ctx, tx, peek.AuctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return ErrAuctionNotFound
		}
		esc, err := r.Repo.LockEscrowTx(ctx, tx, escrowID)
		if err != nil {
			return err
		}
		if esc == nil {
			return ErrEscrowNotFound
		}
		if esc.Status == models.EscrowStatusReleased || esc.Status == models.EscrowStatusForfeited {
			return ErrEscrowTerminal
		}

		cert, err := r.Repo.GetCertificationByVehicleTx(ctx, tx, auction.VehicleID)
		if err != nil {
			return err
		}

		result = r.adjudicate(category, cert)

		switch result.Verdict {
		case VerdictReject:
			// The claim was covered by pre-sale disclosure; custody resumes.
			esc.Status = models.EscrowStatusActive
		case VerdictEscalate:
			esc.Status = models.EscrowStatusDisputed
		}

		meta, merr := json.Marshal(disputeMeta{
			Category: category,
			Verdict:  result.Verdict,
			Reason:   result.Reason,
			Evidence: evidence,
		})
		if merr != nil {
			return merr
		}
		esc.DisputeMeta = datatypes.JSON(meta)
		return r.Repo.SaveEscrowTx(ctx, tx, esc)
	})
	if err != nil {
		return nil, err
	}
	if r.Logger != nil {
		r.Logger.Info("dispute evaluated",
			zap.Uint64("escrow_id", escrowID),
			zap.String("category", string(category)),
			zap.String("verdict", string(result.Verdict)),
		)
	}
	return result, nil
}

func (r *Resolver) adjudicate(category Category, cert *models.Certification) *Result {
	switch category {
	case CategoryMechanical:
		if cert != nil && len(faultFlags(cert)) > 0 {
			return &Result{
				Verdict: VerdictReject,
				Reason:  "mechanical issues were disclosed in the pre-sale certification",
			}
		}
		return &Result{
			Verdict: VerdictEscalate,
			Reason:  "no pre-disclosed faults match the claim, manual review required",
		}
	case CategoryCosmetic:
		// No automated verdict for cosmetic claims; they need human visual
		// comparison against the certification media pack.
		return &Result{
			Verdict: VerdictEscalate,
			Reason:  "cosmetic claims require manual visual comparison",
		}
	default:
		return &Result{
			Verdict: VerdictEscalate,
			Reason:  "unrecognized dispute category",
		}
	}
}

func faultFlags(cert *models.Certification) []string {
	if len(cert.FaultFlags) == 0 {
		return nil
	}
	var flags []string
	if err := json.Unmarshal(cert.FaultFlags, &flags); err != nil {
		return nil
	}
	return flags
}
