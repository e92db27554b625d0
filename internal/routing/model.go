package routing

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/sehat/internal/patient"
)

// FacilityType is the care tier a routing decision resolves to, independent
// of which concrete facility instance is chosen.
type FacilityType string

const (
	FacilityASHA      FacilityType = "ASHA"
	FacilityPHC       FacilityType = "PHC"
	FacilityCHC       FacilityType = "CHC"
	FacilityEmergency FacilityType = "EMERGENCY"
)

// Priority is the operational urgency attached to a decision.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// FacilityRef is a read-only projection of a concrete facility returned by
// the lookup collaborator.
type FacilityRef struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Type           FacilityType      `json:"type"`
	Contact        string            `json:"contact,omitempty"`
	Location       *patient.Location `json:"location,omitempty"`
	DistanceMeters float64           `json:"distance_meters,omitempty"`
}

// Decision is the outcome of routing a triage request. Persisted for audit,
// never mutated after creation.
type Decision struct {
	ID                 string       `json:"id"`
	PatientID          string       `json:"patient_id,omitempty"`
	SeverityScore      int          `json:"severity_score"`
	SeverityLevel      string       `json:"severity_level"`
	FacilityType       FacilityType `json:"facility_type"`
	Facility           *FacilityRef `json:"facility,omitempty"`
	IsFallback         bool         `json:"is_fallback,omitempty"`
	FallbackReason     string       `json:"fallback_reason,omitempty"`
	Guidance           string       `json:"guidance,omitempty"`
	Reasoning          string       `json:"reasoning"`
	Priority           Priority     `json:"priority"`
	Timeframe          string       `json:"timeframe"`
	AppliedRiskFactors []string     `json:"applied_risk_factors,omitempty"`
	EmergencyOverride  bool         `json:"emergency_override,omitempty"`
	Symptoms           []string     `json:"symptoms"`
	CreatedAt          time.Time    `json:"created_at"`
}

// ErrInvalidInput is returned for structurally invalid triage input: empty
// symptom list, score outside [0,100], missing patient context. Fatal,
// caller's fault, no retry.
var ErrInvalidInput = errors.New("invalid triage input")

// ErrTierUnavailable is the facility lookup's explicit signal that no
// facility of the requested type exists at all. It triggers the fallback
// hierarchy; any other lookup failure degrades to a nil facility.
var ErrTierUnavailable = errors.New("no facility of this type available")

// FacilityLocator is the external nearest-facility lookup. A (nil, nil)
// return means nothing suitable nearby, which is a normal outcome.
type FacilityLocator interface {
	Nearest(ctx context.Context, ftype FacilityType, loc patient.Location) (*FacilityRef, error)
}
