// Package triageapi exposes the triage pipeline over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/sehat/internal/notify"
	"github.com/linnemanlabs/sehat/internal/routing"
	"github.com/linnemanlabs/sehat/internal/severity"
	"github.com/linnemanlabs/sehat/internal/triage"
)

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	Triage(ctx context.Context, req *triage.Request) (*routing.Decision, error)
	GetDecision(ctx context.Context, id string) (*routing.Decision, bool, error)
	GetNotification(ctx context.Context, id string) (*notify.Notification, bool, error)
	ListDecisionsByPatient(ctx context.Context, patientID string, limit int) ([]*routing.Decision, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/triage", a.handleTriage)
		r.Get("/decisions/{id}", a.handleGetDecision)
		r.Get("/notifications/{id}", a.handleGetNotification)
		r.Get("/patients/{id}/decisions", a.handleListPatientDecisions)
	})
}

func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	var req triage.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sehat.patient.id", req.PatientID))

	dec, err := a.svc.Triage(r.Context(), &req)
	if err != nil {
		a.writeTriageError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("sehat.decision.id", dec.ID),
		attribute.String("sehat.facility.type", string(dec.FacilityType)),
		attribute.Int("sehat.severity.score", dec.SeverityScore),
	)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dec)
}

// writeTriageError maps pipeline errors to HTTP statuses. Model outages get a
// 503 with home-care guidance so the caller has something actionable.
func (a *API) writeTriageError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, routing.ErrInvalidInput) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	var ue *severity.UpstreamError
	if errors.As(err, &ue) {
		a.logger.Error(r.Context(), err, "severity model unavailable")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":    "severity assessment unavailable",
			"guidance": ue.Guidance,
		})
		return
	}

	a.logger.Error(r.Context(), err, "triage failed")
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}

func (a *API) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sehat.decision.id", id))

	dec, ok, err := a.svc.GetDecision(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get decision", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("sehat.facility.type", string(dec.FacilityType)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dec)
}

// defaultHistoryLimit caps patient history responses unless the caller asks
// for a specific page size.
const defaultHistoryLimit = 20

func (a *API) handleListPatientDecisions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = v
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sehat.patient.id", id))

	list, err := a.svc.ListDecisionsByPatient(r.Context(), id, limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list patient decisions", "patient_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*routing.Decision{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (a *API) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sehat.notification.id", id))

	n, ok, err := a.svc.GetNotification(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get notification", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("sehat.notification.status", string(n.Status)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(n)
}
