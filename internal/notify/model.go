// Package notify builds worker notifications from routing decisions and
// delivers them across channels with bounded, per-channel retries.
package notify

import (
	"context"
	"time"
)

// Status tracks a notification's delivery lifecycle. Transitions are
// append-only writes of the status field; there is no in-place state
// machine object.
type Status string

const (
	StatusPending            Status = "pending"
	StatusAcknowledged       Status = "acknowledged"
	StatusDelivered          Status = "delivered"
	StatusPartiallyDelivered Status = "partially_delivered"
	StatusFailed             Status = "failed"
)

// Channel names understood by the dispatcher.
const (
	ChannelApp = "app"
	ChannelSMS = "sms"
)

// Notification is created once per routed case with a selected worker.
type Notification struct {
	ID            string            `json:"id"`
	WorkerID      string            `json:"worker_id"`
	PatientID     string            `json:"patient_id,omitempty"`
	DecisionID    string            `json:"decision_id"`
	Priority      string            `json:"priority"`
	Title         string            `json:"title"`
	Message       string            `json:"message"`
	SMSMessage    string            `json:"sms_message,omitempty"`
	Channels      []string          `json:"channels"`
	Status        Status            `json:"status"`
	Attempts      map[string]int    `json:"attempts,omitempty"`
	ChannelErrors map[string]string `json:"channel_errors,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	DeliveredAt   *time.Time        `json:"delivered_at,omitempty"`
}

// ChannelResult is the terminal outcome for one channel.
type ChannelResult struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}

// DeliveryResult is the overall outcome across channels. Success means at
// least one channel delivered; channels are never all-or-nothing.
type DeliveryResult struct {
	NotificationID string                   `json:"notification_id"`
	Success        bool                     `json:"success"`
	Status         Status                   `json:"status"`
	Channels       map[string]ChannelResult `json:"channels"`
}

// Gateway delivers a notification over one channel. Implementations own
// their transport timeouts; a returned error is retryable up to the
// channel's budget.
type Gateway interface {
	Channel() string
	Send(ctx context.Context, n *Notification) error
}

// Store is the notification persistence interface. Notifications are
// inserted once; only status, attempts, and channel errors are updated.
type Store interface {
	PutNotification(ctx context.Context, n *Notification) error
	GetNotification(ctx context.Context, id string) (*Notification, bool, error)
	UpdateNotificationDelivery(ctx context.Context, id string, status Status, attempts map[string]int, channelErrors map[string]string, deliveredAt *time.Time) error
	MarkAppDelivered(ctx context.Context, id string, at time.Time) error
}
