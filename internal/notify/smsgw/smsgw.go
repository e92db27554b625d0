// Package smsgw delivers the sms channel through an external HTTP gateway.
// Wire formatting and carrier mechanics belong to the gateway; this client
// only posts the prepared message and reports success or failure.
package smsgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/sehat/internal/notify"
	"github.com/linnemanlabs/sehat/internal/worker"
)

const httpTimeout = 10 * time.Second

// Gateway posts SMS messages to a configured HTTP gateway endpoint.
type Gateway struct {
	endpoint string
	token    string
	contacts ContactResolver
	client   *http.Client
}

// ContactResolver maps a worker ID to a phone number. Backed by the worker
// directory in production.
type ContactResolver interface {
	WorkerContact(ctx context.Context, workerID string) (string, error)
}

// DirectoryContacts adapts a worker.Directory into a ContactResolver.
type DirectoryContacts struct {
	Dir worker.Directory
}

// WorkerContact looks the worker up by listing its role-free record.
func (d DirectoryContacts) WorkerContact(ctx context.Context, workerID string) (string, error) {
	candidates, err := d.Dir.Candidates(ctx, "", nil)
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		if c.ID == workerID {
			return c.Contact, nil
		}
	}
	return "", fmt.Errorf("worker %s not found", workerID)
}

// New creates an SMS gateway client.
func New(endpoint, token string, contacts ContactResolver) *Gateway {
	return &Gateway{
		endpoint: endpoint,
		token:    token,
		contacts: contacts,
		client:   &http.Client{Timeout: httpTimeout},
	}
}

// Channel implements notify.Gateway.
func (g *Gateway) Channel() string { return notify.ChannelSMS }

type sendRequest struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	Priority string `json:"priority,omitempty"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Send implements notify.Gateway. Errors are retryable by the dispatcher up
// to the channel's budget.
func (g *Gateway) Send(ctx context.Context, n *notify.Notification) error {
	to, err := g.contacts.WorkerContact(ctx, n.WorkerID)
	if err != nil {
		return fmt.Errorf("sms: resolve contact: %w", err)
	}
	if to == "" {
		return fmt.Errorf("sms: worker %s has no phone number", n.WorkerID)
	}

	msg := n.SMSMessage
	if msg == "" {
		msg = n.Message
	}

	body, err := json.Marshal(sendRequest{
		To:       to,
		Message:  msg,
		Priority: n.Priority,
	})
	if err != nil {
		return fmt.Errorf("sms: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sms: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req) //nolint:gosec // G704: endpoint is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("sms: post gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms: gateway returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// 2xx with an unreadable body still counts as accepted.
		return nil
	}
	if !out.Success {
		reason := out.Error
		if reason == "" {
			reason = "no reason given"
		}
		return fmt.Errorf("sms: gateway rejected message: %s", reason)
	}
	return nil
}
