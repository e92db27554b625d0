package triage

import (
	"context"

	"github.com/linnemanlabs/sehat/internal/routing"
)

// DecisionStore is the persistence interface for triage decisions. Decisions
// are append-only: there is no update or delete.
type DecisionStore interface {
	PutDecision(ctx context.Context, d *routing.Decision) error
	GetDecision(ctx context.Context, id string) (*routing.Decision, bool, error)
	ListDecisionsByPatient(ctx context.Context, patientID string, limit int) ([]*routing.Decision, error)
}
