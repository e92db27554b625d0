// Package memstore provides an in-memory implementation of the Sehat
// persistence interfaces: triage.DecisionStore, notify.Store,
// worker.Directory, and routing.FacilityLocator. Suitable for dev/testing.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/sehat/internal/notify"
	"github.com/linnemanlabs/sehat/internal/patient"
	"github.com/linnemanlabs/sehat/internal/routing"
	"github.com/linnemanlabs/sehat/internal/worker"
)

// DefaultSearchRadiusKm bounds how far the locator will route a patient.
const DefaultSearchRadiusKm = 150.0

// Store holds decisions, notifications, workers, and facilities in memory.
type Store struct {
	mu            sync.RWMutex
	decisions     map[string]*routing.Decision  // decision ID -> decision
	byPatient     map[string][]string           // patient ID -> decision IDs, append order
	notifications map[string]*notify.Notification
	workers       []worker.Candidate
	facilities    []routing.FacilityRef
	radiusKm      float64
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		decisions:     make(map[string]*routing.Decision),
		byPatient:     make(map[string][]string),
		notifications: make(map[string]*notify.Notification),
		radiusKm:      DefaultSearchRadiusKm,
	}
}

// SetSearchRadiusKm overrides the facility search radius.
func (s *Store) SetSearchRadiusKm(km float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.radiusKm = km
}

// PutDecision stores a copy of the decision. Decisions are append-only.
func (s *Store) PutDecision(_ context.Context, d *routing.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyDecision(d)
	s.decisions[d.ID] = cp
	s.byPatient[d.PatientID] = append(s.byPatient[d.PatientID], d.ID)
	return nil
}

// GetDecision retrieves a decision by its ID. Returns a copy.
func (s *Store) GetDecision(_ context.Context, id string) (*routing.Decision, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[id]
	if !ok {
		return nil, false, nil
	}
	return copyDecision(d), true, nil
}

// ListDecisionsByPatient returns the patient's decisions, newest first.
func (s *Store) ListDecisionsByPatient(_ context.Context, patientID string, limit int) ([]*routing.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byPatient[patientID]
	out := make([]*routing.Decision, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, copyDecision(s.decisions[ids[i]]))
	}
	return out, nil
}

// PutNotification stores a copy of the notification.
func (s *Store) PutNotification(_ context.Context, n *notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = copyNotification(n)
	return nil
}

// GetNotification retrieves a notification by its ID. Returns a copy.
func (s *Store) GetNotification(_ context.Context, id string) (*notify.Notification, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, false, nil
	}
	return copyNotification(n), true, nil
}

// UpdateNotificationDelivery records the outcome of a delivery run.
func (s *Store) UpdateNotificationDelivery(_ context.Context, id string, status notify.Status, attempts map[string]int, channelErrors map[string]string, deliveredAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil
	}
	n.Status = status
	n.Attempts = copyIntMap(attempts)
	n.ChannelErrors = copyStringMap(channelErrors)
	if deliveredAt != nil {
		at := *deliveredAt
		n.DeliveredAt = &at
	}
	return nil
}

// MarkAppDelivered flags the in-app channel as delivered. The overall status
// is settled later by UpdateNotificationDelivery once all channels finish.
func (s *Store) MarkAppDelivered(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil
	}
	if n.DeliveredAt == nil {
		cp := at
		n.DeliveredAt = &cp
	}
	return nil
}

// SeedWorkers replaces the worker roster.
func (s *Store) SeedWorkers(workers []worker.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append([]worker.Candidate(nil), workers...)
}

// Candidates returns workers matching the role, with distances computed from
// loc when both sides have a location. An empty role matches all workers.
func (s *Store) Candidates(_ context.Context, role string, loc *patient.Location) ([]worker.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]worker.Candidate, 0, len(s.workers))
	for _, w := range s.workers {
		if role != "" && w.Role != role {
			continue
		}
		cp := w
		if loc != nil && w.Location != nil {
			cp.DistanceKm = loc.DistanceKm(*w.Location)
		}
		out = append(out, cp)
	}
	return out, nil
}

// CountActiveCases counts notifications assigned to the worker within the
// window that are still open: pending or acknowledged. Delivered cases are
// closed and never weigh on ranking.
func (s *Store) CountActiveCases(_ context.Context, workerID string, window time.Duration) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-window)
	count := 0
	for _, n := range s.notifications {
		if n.WorkerID != workerID || n.CreatedAt.Before(cutoff) {
			continue
		}
		if n.Status != notify.StatusPending && n.Status != notify.StatusAcknowledged {
			continue
		}
		count++
	}
	return count, nil
}

// SeedFacilities replaces the facility registry.
func (s *Store) SeedFacilities(facilities []routing.FacilityRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facilities = append([]routing.FacilityRef(nil), facilities...)
}

// Nearest returns the closest facility of the given type within the search
// radius. It reports routing.ErrTierUnavailable when the registry has no
// facility of that type at all, and (nil, nil) when facilities exist but
// none are in range.
func (s *Store) Nearest(_ context.Context, ftype routing.FacilityType, loc patient.Location) (*routing.FacilityRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best     *routing.FacilityRef
		bestDist float64
		found    bool
	)
	for i := range s.facilities {
		f := &s.facilities[i]
		if f.Type != ftype {
			continue
		}
		found = true
		if f.Location == nil {
			continue
		}
		d := loc.DistanceKm(*f.Location)
		if d > s.radiusKm {
			continue
		}
		if best == nil || d < bestDist {
			best = f
			bestDist = d
		}
	}
	if !found {
		return nil, routing.ErrTierUnavailable
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	if cp.Location != nil {
		l := *cp.Location
		cp.Location = &l
	}
	cp.DistanceMeters = bestDist * 1000
	return &cp, nil
}

// FacilityTypes lists the distinct facility types present, sorted. Used by
// readiness checks to confirm seeding happened.
func (s *Store) FacilityTypes() []routing.FacilityType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[routing.FacilityType]struct{})
	for _, f := range s.facilities {
		seen[f.Type] = struct{}{}
	}
	out := make([]routing.FacilityType, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func copyDecision(d *routing.Decision) *routing.Decision {
	cp := *d
	if d.Facility != nil {
		f := *d.Facility
		if f.Location != nil {
			l := *f.Location
			f.Location = &l
		}
		cp.Facility = &f
	}
	cp.AppliedRiskFactors = append([]string(nil), d.AppliedRiskFactors...)
	cp.Symptoms = append([]string(nil), d.Symptoms...)
	return &cp
}

func copyNotification(n *notify.Notification) *notify.Notification {
	cp := *n
	cp.Channels = append([]string(nil), n.Channels...)
	cp.Attempts = copyIntMap(n.Attempts)
	cp.ChannelErrors = copyStringMap(n.ChannelErrors)
	if n.DeliveredAt != nil {
		at := *n.DeliveredAt
		cp.DeliveredAt = &at
	}
	return &cp
}

func copyIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
