// Package worker selects the responding health worker for a routed case:
// candidates are ranked by current caseload, then by distance.
package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sehat/internal/patient"
)

// Candidate is a snapshot of an on-duty worker at selection time. Caseload
// and duty status are mutable externally; the selector only reads.
type Candidate struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Contact         string            `json:"contact,omitempty"`
	Role            string            `json:"role"`
	Location        *patient.Location `json:"location,omitempty"`
	CurrentCaseload int               `json:"current_caseload"`
	DistanceKm      float64           `json:"distance_km"`
	OnDuty          *bool             `json:"on_duty,omitempty"` // nil = unknown, treated as on duty
	Active          bool              `json:"active"`
}

// Directory is the external worker/caseload store. Read-only from the
// selector's perspective.
type Directory interface {
	// Candidates returns workers with the given role, with DistanceKm filled
	// relative to loc when loc is non-nil.
	Candidates(ctx context.Context, role string, loc *patient.Location) ([]Candidate, error)

	// CountActiveCases counts notifications to the worker with status pending
	// or acknowledged within the lookback window.
	CountActiveCases(ctx context.Context, workerID string, window time.Duration) (int, error)
}

const (
	// DefaultCaseloadWindow is the lookback for counting active cases.
	DefaultCaseloadWindow = 24 * time.Hour

	// DefaultCaseloadCeiling is the availability gate threshold. A worker at
	// or above it is still rankable; callers opt into strict assignment via
	// CheckAvailability.
	DefaultCaseloadCeiling = 10
)

// Selector finds the best-matched worker for a case.
type Selector struct {
	dir     Directory
	window  time.Duration
	ceiling int
	logger  log.Logger
}

// NewSelector creates a Selector. Zero window and ceiling use the defaults.
func NewSelector(dir Directory, window time.Duration, ceiling int, logger log.Logger) *Selector {
	if window <= 0 {
		window = DefaultCaseloadWindow
	}
	if ceiling <= 0 {
		ceiling = DefaultCaseloadCeiling
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Selector{
		dir:     dir,
		window:  window,
		ceiling: ceiling,
		logger:  logger,
	}
}

// SelectBest returns the single best candidate for the role: lowest current
// caseload first, nearest distance as tie-break. Caseloads are counted fresh
// per call so assignments never rank on stale counters. An empty result is
// (nil, nil), not an error.
func (s *Selector) SelectBest(ctx context.Context, role string, loc *patient.Location) (*Candidate, error) {
	candidates, err := s.dir.Candidates(ctx, role, loc)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}

	eligible := candidates[:0]
	for _, c := range candidates {
		if !c.Active {
			continue
		}
		if c.OnDuty != nil && !*c.OnDuty {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	for i := range eligible {
		n, err := s.dir.CountActiveCases(ctx, eligible[i].ID, s.window)
		if err != nil {
			return nil, fmt.Errorf("count active cases for %s: %w", eligible[i].ID, err)
		}
		eligible[i].CurrentCaseload = n
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].CurrentCaseload != eligible[j].CurrentCaseload {
			return eligible[i].CurrentCaseload < eligible[j].CurrentCaseload
		}
		return eligible[i].DistanceKm < eligible[j].DistanceKm
	})

	best := eligible[0]
	s.logger.Info(ctx, "worker selected",
		"worker_id", best.ID,
		"role", role,
		"caseload", best.CurrentCaseload,
		"distance_km", best.DistanceKm,
	)
	return &best, nil
}

// CheckAvailability reports whether the worker's fresh caseload is under the
// configured ceiling. Deliberately a separate operation from SelectBest so
// callers can choose strict or best-effort assignment.
func (s *Selector) CheckAvailability(ctx context.Context, workerID string) (bool, error) {
	n, err := s.dir.CountActiveCases(ctx, workerID, s.window)
	if err != nil {
		return false, fmt.Errorf("count active cases for %s: %w", workerID, err)
	}
	return n < s.ceiling, nil
}
