package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"

	"github.com/linnemanlabs/sehat/internal/notify"
)

const notificationColumns = `id, worker_id, patient_id, decision_id, priority, title, message,
	sms_message, channels, status, attempts, channel_errors, created_at, delivered_at`

// PutNotification inserts or updates a notification.
func (s *Store) PutNotification(ctx context.Context, n *notify.Notification) error {
	ctx, span := tracer.Start(ctx, "pgstore.PutNotification", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	channelsJSON, err := json.Marshal(emptySlice(n.Channels))
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}
	attemptsJSON, err := json.Marshal(emptyIntMap(n.Attempts))
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}
	errorsJSON, err := json.Marshal(emptyStringMap(n.ChannelErrors))
	if err != nil {
		return fmt.Errorf("marshal channel errors: %w", err)
	}

	query := `INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			status         = EXCLUDED.status,
			attempts       = EXCLUDED.attempts,
			channel_errors = EXCLUDED.channel_errors,
			delivered_at   = EXCLUDED.delivered_at`

	_, err = s.pool.Exec(ctx, query,
		n.ID, n.WorkerID, n.PatientID, n.DecisionID, n.Priority, n.Title, n.Message,
		n.SMSMessage, channelsJSON, string(n.Status), attemptsJSON, errorsJSON,
		n.CreatedAt, n.DeliveredAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert notification: %w", err)
	}
	return nil
}

// GetNotification retrieves a notification by ID.
func (s *Store) GetNotification(ctx context.Context, id string) (*notify.Notification, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetNotification", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	var (
		n            notify.Notification
		status       string
		channelsJSON []byte
		attemptsJSON []byte
		errorsJSON   []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.WorkerID, &n.PatientID, &n.DecisionID, &n.Priority, &n.Title, &n.Message,
		&n.SMSMessage, &channelsJSON, &status, &attemptsJSON, &errorsJSON,
		&n.CreatedAt, &n.DeliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("scan notification: %w", err)
	}

	n.Status = notify.Status(status)
	if err := json.Unmarshal(channelsJSON, &n.Channels); err != nil {
		return nil, false, fmt.Errorf("unmarshal channels: %w", err)
	}
	if err := json.Unmarshal(attemptsJSON, &n.Attempts); err != nil {
		return nil, false, fmt.Errorf("unmarshal attempts: %w", err)
	}
	if err := json.Unmarshal(errorsJSON, &n.ChannelErrors); err != nil {
		return nil, false, fmt.Errorf("unmarshal channel errors: %w", err)
	}
	return &n, true, nil
}

// UpdateNotificationDelivery records the outcome of a delivery run.
func (s *Store) UpdateNotificationDelivery(ctx context.Context, id string, status notify.Status, attempts map[string]int, channelErrors map[string]string, deliveredAt *time.Time) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpdateNotificationDelivery", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	attemptsJSON, err := json.Marshal(emptyIntMap(attempts))
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}
	errorsJSON, err := json.Marshal(emptyStringMap(channelErrors))
	if err != nil {
		return fmt.Errorf("marshal channel errors: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE notifications SET
			status         = $2,
			attempts       = $3,
			channel_errors = $4,
			delivered_at   = COALESCE($5, delivered_at)
		WHERE id = $1`,
		id, string(status), attemptsJSON, errorsJSON, deliveredAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

// MarkAppDelivered records when the in-app channel landed. Keeps the earliest
// delivery time if one is already set.
func (s *Store) MarkAppDelivered(ctx context.Context, id string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "pgstore.MarkAppDelivered", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET delivered_at = COALESCE(delivered_at, $2) WHERE id = $1`,
		id, at,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("mark app delivered: %w", err)
	}
	return nil
}

func emptyIntMap(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func emptyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
