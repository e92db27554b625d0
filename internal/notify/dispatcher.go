package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/sehat/internal/routing"
	"github.com/linnemanlabs/sehat/internal/worker"
)

const (
	// DefaultMaxRetries is the per-channel attempt budget.
	DefaultMaxRetries = 3

	// DefaultBaseDelay seeds the exponential backoff: delay for attempt n
	// is base * 2^(n-1).
	DefaultBaseDelay = 2 * time.Second
)

// DispatchHooks receives delivery events, typically wired to metrics.
// All fields are optional.
type DispatchHooks struct {
	OnAttempt  func(channel string, duration float64, failed bool)
	OnComplete func(status Status)
}

// Dispatcher creates notifications and drives multi-channel delivery with
// independent per-channel retry and backoff.
type Dispatcher struct {
	store      Store
	gateways   map[string]Gateway
	maxRetries int
	baseDelay  time.Duration
	logger     log.Logger
	hooks      DispatchHooks
}

// NewDispatcher creates a Dispatcher over the given gateways. Zero retry and
// delay settings use the defaults.
func NewDispatcher(store Store, gateways []Gateway, maxRetries int, baseDelay time.Duration, logger log.Logger, hooks DispatchHooks) *Dispatcher {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if logger == nil {
		logger = log.Nop()
	}

	byChannel := make(map[string]Gateway, len(gateways))
	for _, gw := range gateways {
		byChannel[gw.Channel()] = gw
	}

	return &Dispatcher{
		store:      store,
		gateways:   byChannel,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
		hooks:      hooks,
	}
}

// Channels returns the channel names this dispatcher can deliver on.
func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.gateways))
	for _, ch := range []string{ChannelApp, ChannelSMS} {
		if _, ok := d.gateways[ch]; ok {
			out = append(out, ch)
		}
	}
	for ch := range d.gateways {
		if ch != ChannelApp && ch != ChannelSMS {
			out = append(out, ch)
		}
	}
	return out
}

// Create builds and persists a pending notification for the selected
// worker. Notifications exist only for routed cases with a worker.
func (d *Dispatcher) Create(ctx context.Context, dec *routing.Decision, w *worker.Candidate, patientSummary string) (*Notification, error) {
	if dec == nil || w == nil {
		return nil, fmt.Errorf("notification requires a decision and a selected worker")
	}

	c := buildContent(dec, patientSummary)

	n := &Notification{
		ID:         ulid.Make().String(),
		WorkerID:   w.ID,
		PatientID:  dec.PatientID,
		DecisionID: dec.ID,
		Priority:   string(dec.Priority),
		Title:      c.title,
		Message:    c.message,
		SMSMessage: c.smsMessage,
		Channels:   d.Channels(),
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}

	if err := d.store.PutNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	return n, nil
}

// DeliverWithRetry attempts delivery on each requested channel
// concurrently, each with its own attempt counter and exponential backoff.
// The overall result is success when at least one channel delivers. The
// final status and per-channel attempts are persisted before returning.
// maxRetries <= 0 uses the dispatcher default.
func (d *Dispatcher) DeliverWithRetry(ctx context.Context, notificationID string, channels []string, maxRetries int) (*DeliveryResult, error) {
	n, ok, err := d.store.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("load notification: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("notification %s not found", notificationID)
	}

	if maxRetries <= 0 {
		maxRetries = d.maxRetries
	}
	if len(channels) == 0 {
		channels = n.Channels
	}

	results := make(map[string]ChannelResult, len(channels))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ch := range channels {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			res := d.deliverChannel(ctx, n, channel, maxRetries)
			mu.Lock()
			results[channel] = res
			mu.Unlock()
		}(ch)
	}
	wg.Wait()

	result := summarize(notificationID, results)

	attempts := make(map[string]int, len(results))
	channelErrors := make(map[string]string)
	for ch, r := range results {
		attempts[ch] = r.Attempts
		if r.Error != "" {
			channelErrors[ch] = r.Error
		}
	}

	var deliveredAt *time.Time
	if result.Success {
		now := time.Now()
		deliveredAt = &now
	}

	if err := d.store.UpdateNotificationDelivery(ctx, notificationID, result.Status, attempts, channelErrors, deliveredAt); err != nil {
		d.logger.Error(ctx, err, "failed to persist delivery outcome", "notification_id", notificationID)
	}

	if d.hooks.OnComplete != nil {
		d.hooks.OnComplete(result.Status)
	}

	d.logger.Info(ctx, "notification delivery finished",
		"notification_id", notificationID,
		"status", result.Status,
		"success", result.Success,
	)
	return result, nil
}

// deliverChannel runs one channel's attempt loop. Backoff timers are local
// to the channel and never block other channels.
func (d *Dispatcher) deliverChannel(ctx context.Context, n *Notification, channel string, maxRetries int) ChannelResult {
	res := ChannelResult{Channel: channel}

	gw, ok := d.gateways[channel]
	if !ok {
		res.Error = fmt.Sprintf("no gateway for channel %s", channel)
		return res
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		res.Attempts = attempt

		start := time.Now()
		err := gw.Send(ctx, n)
		if d.hooks.OnAttempt != nil {
			d.hooks.OnAttempt(channel, time.Since(start).Seconds(), err != nil)
		}

		if err == nil {
			res.Delivered = true
			res.Error = ""
			return res
		}

		res.Error = err.Error()
		d.logger.Warn(ctx, "delivery attempt failed",
			"notification_id", n.ID,
			"channel", channel,
			"attempt", attempt,
			"error", err,
		)

		if attempt < maxRetries {
			backoff := d.baseDelay * (1 << (attempt - 1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				res.Error = ctx.Err().Error()
				return res
			}
		}
	}

	return res
}

func summarize(id string, results map[string]ChannelResult) *DeliveryResult {
	delivered := 0
	for _, r := range results {
		if r.Delivered {
			delivered++
		}
	}

	status := StatusFailed
	switch {
	case delivered == len(results) && delivered > 0:
		status = StatusDelivered
	case delivered > 0:
		status = StatusPartiallyDelivered
	}

	return &DeliveryResult{
		NotificationID: id,
		Success:        delivered > 0,
		Status:         status,
		Channels:       results,
	}
}
