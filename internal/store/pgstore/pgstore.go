// Package pgstore provides the PostgreSQL implementation of the Sehat
// persistence interfaces: triage.DecisionStore, notify.Store,
// worker.Directory, and routing.FacilityLocator.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sehat/internal/routing"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sehat/internal/store/pgstore")

//go:embed schema.sql
var schema string

// Store persists triage decisions, notifications, workers, and facilities in
// PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool is owned by the
// caller and should come from postgres.NewPool so queries are traced.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const decisionColumns = `id, patient_id, severity_score, severity_level, facility_type, facility,
	is_fallback, fallback_reason, guidance, reasoning, priority, timeframe,
	risk_factors, emergency_override, symptoms, created_at`

// PutDecision inserts a decision. Decisions are append-only; a duplicate ID
// is an error.
func (s *Store) PutDecision(ctx context.Context, d *routing.Decision) error {
	ctx, span := tracer.Start(ctx, "pgstore.PutDecision", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	var facilityJSON []byte
	if d.Facility != nil {
		var err error
		facilityJSON, err = json.Marshal(d.Facility)
		if err != nil {
			return fmt.Errorf("marshal facility: %w", err)
		}
	}
	riskJSON, err := json.Marshal(emptySlice(d.AppliedRiskFactors))
	if err != nil {
		return fmt.Errorf("marshal risk factors: %w", err)
	}
	symptomsJSON, err := json.Marshal(emptySlice(d.Symptoms))
	if err != nil {
		return fmt.Errorf("marshal symptoms: %w", err)
	}

	query := `INSERT INTO triage_decisions (` + decisionColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err = s.pool.Exec(ctx, query,
		d.ID, d.PatientID, d.SeverityScore, d.SeverityLevel, string(d.FacilityType), facilityJSON,
		d.IsFallback, d.FallbackReason, d.Guidance, d.Reasoning, string(d.Priority), d.Timeframe,
		riskJSON, d.EmergencyOverride, symptomsJSON, d.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// GetDecision retrieves a decision by ID.
func (s *Store) GetDecision(ctx context.Context, id string) (*routing.Decision, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetDecision", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + decisionColumns + ` FROM triage_decisions WHERE id = $1`
	d, err := scanDecisionRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if d == nil {
		return nil, false, nil
	}
	return d, true, nil
}

// ListDecisionsByPatient returns the patient's decisions, newest first.
func (s *Store) ListDecisionsByPatient(ctx context.Context, patientID string, limit int) ([]*routing.Decision, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListDecisionsByPatient", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + decisionColumns + ` FROM triage_decisions
		WHERE patient_id = $1 ORDER BY created_at DESC`
	args := []any{patientID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []*routing.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

// scanDecisionRow scans a single row into a Decision. Returns (nil, nil) when
// no row is found.
func scanDecisionRow(row pgx.Row) (*routing.Decision, error) {
	d, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

func scanDecision(row pgx.Row) (*routing.Decision, error) {
	var (
		d            routing.Decision
		facilityType string
		priority     string
		facilityJSON []byte
		riskJSON     []byte
		symptomsJSON []byte
	)

	err := row.Scan(
		&d.ID, &d.PatientID, &d.SeverityScore, &d.SeverityLevel, &facilityType, &facilityJSON,
		&d.IsFallback, &d.FallbackReason, &d.Guidance, &d.Reasoning, &priority, &d.Timeframe,
		&riskJSON, &d.EmergencyOverride, &symptomsJSON, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan decision: %w", err)
	}

	d.FacilityType = routing.FacilityType(facilityType)
	d.Priority = routing.Priority(priority)

	if len(facilityJSON) > 0 {
		d.Facility = &routing.FacilityRef{}
		if err := json.Unmarshal(facilityJSON, d.Facility); err != nil {
			return nil, fmt.Errorf("unmarshal facility: %w", err)
		}
	}
	if err := json.Unmarshal(riskJSON, &d.AppliedRiskFactors); err != nil {
		return nil, fmt.Errorf("unmarshal risk factors: %w", err)
	}
	if err := json.Unmarshal(symptomsJSON, &d.Symptoms); err != nil {
		return nil, fmt.Errorf("unmarshal symptoms: %w", err)
	}

	return &d, nil
}

// emptySlice keeps JSON columns as [] instead of null.
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
