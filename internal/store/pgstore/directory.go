package pgstore

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sehat/internal/notify"
	"github.com/linnemanlabs/sehat/internal/patient"
	"github.com/linnemanlabs/sehat/internal/routing"
	"github.com/linnemanlabs/sehat/internal/worker"
)

// searchRadiusKm bounds how far the locator will route a patient.
const searchRadiusKm = 150.0

// Candidates returns workers matching the role, with distances computed from
// loc when both sides have a location. An empty role matches all workers.
func (s *Store) Candidates(ctx context.Context, role string, loc *patient.Location) ([]worker.Candidate, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Candidates", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT id, name, contact, role, lat, lng, on_duty, active FROM workers`
	args := []any{}
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, role)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query workers: %w", err)
	}
	defer rows.Close()

	var out []worker.Candidate
	for rows.Next() {
		var (
			c        worker.Candidate
			lat, lng *float64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Contact, &c.Role, &lat, &lng, &c.OnDuty, &c.Active); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		if lat != nil && lng != nil {
			c.Location = &patient.Location{Lat: *lat, Lng: *lng}
			if loc != nil {
				c.DistanceKm = loc.DistanceKm(*c.Location)
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate workers: %w", err)
	}
	return out, nil
}

// CountActiveCases counts notifications assigned to the worker within the
// window that are still open: pending or acknowledged. Delivered cases are
// closed and never weigh on ranking.
func (s *Store) CountActiveCases(ctx context.Context, workerID string, window time.Duration) (int, error) {
	ctx, span := tracer.Start(ctx, "pgstore.CountActiveCases", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications
		WHERE worker_id = $1 AND created_at >= $2 AND status IN ($3, $4)`,
		workerID, time.Now().Add(-window), string(notify.StatusPending), string(notify.StatusAcknowledged),
	).Scan(&count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("count active cases: %w", err)
	}
	return count, nil
}

// Nearest returns the closest facility of the given type within the search
// radius. It reports routing.ErrTierUnavailable when no facility of that type
// exists, and (nil, nil) when facilities exist but none are in range.
func (s *Store) Nearest(ctx context.Context, ftype routing.FacilityType, loc patient.Location) (*routing.FacilityRef, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Nearest", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, type, contact, lat, lng FROM facilities WHERE type = $1`,
		string(ftype),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query facilities: %w", err)
	}
	defer rows.Close()

	var (
		best     *routing.FacilityRef
		bestDist float64
		found    bool
	)
	for rows.Next() {
		var (
			f        routing.FacilityRef
			ft       string
			lat, lng *float64
		)
		if err := rows.Scan(&f.ID, &f.Name, &ft, &f.Contact, &lat, &lng); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan facility: %w", err)
		}
		found = true
		if lat == nil || lng == nil {
			continue
		}
		f.Type = routing.FacilityType(ft)
		f.Location = &patient.Location{Lat: *lat, Lng: *lng}
		d := loc.DistanceKm(*f.Location)
		if d > searchRadiusKm {
			continue
		}
		if best == nil || d < bestDist {
			cp := f
			best = &cp
			bestDist = d
		}
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate facilities: %w", err)
	}

	if !found {
		return nil, routing.ErrTierUnavailable
	}
	if best == nil {
		return nil, nil
	}
	best.DistanceMeters = bestDist * 1000
	return best, nil
}

// UpsertWorker registers or updates a worker in the roster.
func (s *Store) UpsertWorker(ctx context.Context, c *worker.Candidate) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpsertWorker", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	var lat, lng *float64
	if c.Location != nil {
		lat, lng = &c.Location.Lat, &c.Location.Lng
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO workers (id, name, contact, role, lat, lng, on_duty, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			name    = EXCLUDED.name,
			contact = EXCLUDED.contact,
			role    = EXCLUDED.role,
			lat     = EXCLUDED.lat,
			lng     = EXCLUDED.lng,
			on_duty = EXCLUDED.on_duty,
			active  = EXCLUDED.active`,
		c.ID, c.Name, c.Contact, c.Role, lat, lng, c.OnDuty, c.Active,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert worker: %w", err)
	}
	return nil
}

// UpsertFacility registers or updates a facility.
func (s *Store) UpsertFacility(ctx context.Context, f *routing.FacilityRef) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpsertFacility", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	var lat, lng *float64
	if f.Location != nil {
		lat, lng = &f.Location.Lat, &f.Location.Lng
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO facilities (id, name, type, contact, lat, lng)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			name    = EXCLUDED.name,
			type    = EXCLUDED.type,
			contact = EXCLUDED.contact,
			lat     = EXCLUDED.lat,
			lng     = EXCLUDED.lng`,
		f.ID, f.Name, string(f.Type), f.Contact, lat, lng,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert facility: %w", err)
	}
	return nil
}
