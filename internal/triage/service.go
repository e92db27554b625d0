package triage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sehat/internal/notify"
	"github.com/linnemanlabs/sehat/internal/patient"
	"github.com/linnemanlabs/sehat/internal/routing"
	"github.com/linnemanlabs/sehat/internal/severity"
	"github.com/linnemanlabs/sehat/internal/worker"
	"github.com/oklog/ulid/v2"
)

// Assessor produces a severity assessment for a set of symptoms.
type Assessor interface {
	Assess(ctx context.Context, symptoms []string, pctx *patient.Context, baseScore *int) (*severity.Assessment, error)
}

// Router turns a severity score into a routing decision.
type Router interface {
	Determine(ctx context.Context, symptoms []string, severityScore int, pctx *patient.Context, loc *patient.Location) (*routing.Decision, error)
}

// WorkerSelector picks the best available health worker for a role.
type WorkerSelector interface {
	SelectBest(ctx context.Context, role string, loc *patient.Location) (*worker.Candidate, error)
}

// Notifier creates and delivers worker notifications.
type Notifier interface {
	Create(ctx context.Context, d *routing.Decision, w *worker.Candidate, patientSummary string) (*notify.Notification, error)
	DeliverWithRetry(ctx context.Context, notificationID string, channels []string, maxRetries int) (*notify.DeliveryResult, error)
}

// Service is the business boundary for triage operations.
type Service struct {
	store      DecisionStore
	notes      notify.Store
	assessor   Assessor
	router     Router
	selector   WorkerSelector
	dispatcher Notifier
	metrics    *Metrics
	logger     log.Logger
}

// NewService creates a new triage service. metrics may be nil.
func NewService(store DecisionStore, notes notify.Store, assessor Assessor, router Router, selector WorkerSelector, dispatcher Notifier, metrics *Metrics, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:      store,
		notes:      notes,
		assessor:   assessor,
		router:     router,
		selector:   selector,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// Triage runs the full pipeline for one patient submission: assess severity,
// determine routing, persist the decision, and kick off worker notification
// in the background. The returned decision is complete; only delivery status
// arrives later.
func (s *Service) Triage(ctx context.Context, req *Request) (*routing.Decision, error) {
	if err := req.Validate(); err != nil {
		s.countTriage("invalid")
		return nil, err
	}

	L := s.logger.With("patient_id", req.PatientID)

	assessment, err := s.assessor.Assess(ctx, req.Symptoms, &req.Patient, req.SeverityScore)
	if err != nil {
		var ue *severity.UpstreamError
		if errors.As(err, &ue) {
			s.countTriage("upstream_error")
		} else {
			s.countTriage("error")
		}
		return nil, err
	}

	dec, err := s.router.Determine(ctx, req.Symptoms, assessment.Score, &req.Patient, req.Patient.Location)
	if err != nil {
		if errors.Is(err, routing.ErrInvalidInput) {
			s.countTriage("invalid")
		} else {
			s.countTriage("error")
		}
		return nil, err
	}

	dec.ID = ulid.Make().String()
	dec.PatientID = req.PatientID
	dec.CreatedAt = time.Now()
	// Keep history-based factors from the assessment alongside the routing
	// engine's own condition weights.
	dec.AppliedRiskFactors = append(assessment.RiskFactors, dec.AppliedRiskFactors...)

	if err := s.store.PutDecision(ctx, dec); err != nil {
		s.countTriage("error")
		return nil, err
	}

	s.countTriage("completed")
	s.observeDecision(dec)

	L.Info(ctx, "triage decision recorded",
		"decision_id", dec.ID,
		"severity_score", dec.SeverityScore,
		"facility_type", dec.FacilityType,
		"priority", dec.Priority,
		"emergency_override", dec.EmergencyOverride,
		"is_fallback", dec.IsFallback,
	)

	// notify in the background - pass a copy so the caller's decision is not
	// shared with the goroutine.
	cp := *dec
	pctx := req.Patient
	go s.notifyWorker(context.WithoutCancel(ctx), &cp, &pctx)

	return dec, nil
}

// GetDecision retrieves a triage decision by ID.
func (s *Service) GetDecision(ctx context.Context, id string) (*routing.Decision, bool, error) {
	return s.store.GetDecision(ctx, id)
}

// ListDecisionsByPatient returns the patient's triage history, newest first.
// limit <= 0 returns the full history.
func (s *Service) ListDecisionsByPatient(ctx context.Context, patientID string, limit int) ([]*routing.Decision, error) {
	return s.store.ListDecisionsByPatient(ctx, patientID, limit)
}

// GetNotification retrieves a worker notification by ID.
func (s *Service) GetNotification(ctx context.Context, id string) (*notify.Notification, bool, error) {
	return s.notes.GetNotification(ctx, id)
}

// notifyWorker selects the best worker for the decision's facility tier and
// dispatches a notification. Failures here never affect the triage decision;
// they are logged and counted.
func (s *Service) notifyWorker(ctx context.Context, dec *routing.Decision, pctx *patient.Context) {
	L := s.logger.With("decision_id", dec.ID, "facility_type", dec.FacilityType)

	role := strings.ToLower(string(dec.FacilityType))
	cand, err := s.selector.SelectBest(ctx, role, pctx.Location)
	if err != nil {
		s.countSelection("error")
		L.Error(ctx, err, "worker selection failed")
		return
	}
	if cand == nil {
		s.countSelection("no_candidate")
		L.Warn(ctx, "no worker available for tier", "role", role)
		return
	}
	s.countSelection("selected")

	n, err := s.dispatcher.Create(ctx, dec, cand, patientSummary(dec.PatientID, pctx))
	if err != nil {
		L.Error(ctx, err, "failed to create notification", "worker_id", cand.ID)
		return
	}

	res, err := s.dispatcher.DeliverWithRetry(ctx, n.ID, nil, 0)
	if err != nil {
		L.Error(ctx, err, "notification delivery failed", "notification_id", n.ID)
		return
	}

	L.Info(ctx, "worker notified",
		"notification_id", n.ID,
		"worker_id", cand.ID,
		"status", res.Status,
		"success", res.Success,
	)
}

func (s *Service) countTriage(outcome string) {
	if s.metrics != nil {
		s.metrics.TriagesTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countSelection(outcome string) {
	if s.metrics != nil {
		s.metrics.WorkerSelections.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) observeDecision(dec *routing.Decision) {
	if s.metrics == nil {
		return
	}
	s.metrics.DecisionsTotal.WithLabelValues(string(dec.FacilityType), string(dec.Priority)).Inc()
	s.metrics.SeverityScore.Observe(float64(dec.SeverityScore))
	if dec.EmergencyOverride {
		s.metrics.EmergencyOverrides.Inc()
	}
	if dec.IsFallback && dec.Facility != nil {
		s.metrics.FallbackRoutings.WithLabelValues(string(dec.FacilityType), string(dec.Facility.Type)).Inc()
	}
}
