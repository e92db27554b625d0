package smsgw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/sehat/internal/notify"
	"github.com/linnemanlabs/sehat/internal/patient"
	"github.com/linnemanlabs/sehat/internal/worker"
)

type staticContacts map[string]string

func (s staticContacts) WorkerContact(_ context.Context, workerID string) (string, error) {
	c, ok := s[workerID]
	if !ok {
		return "", errors.New("worker not found")
	}
	return c, nil
}

func testNotification() *notify.Notification {
	return &notify.Notification{
		ID:         "n-1",
		WorkerID:   "w-1",
		Priority:   "high",
		Message:    "URGENT: full in-app body",
		SMSMessage: "URGENT: short sms body",
	}
}

func TestSend_PostsMessage(t *testing.T) {
	t.Parallel()

	var got sendRequest
	var auth, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(sendResponse{Success: true})
	}))
	defer srv.Close()

	g := New(srv.URL, "gw-token", staticContacts{"w-1": "+911234567890"})
	if err := g.Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.To != "+911234567890" {
		t.Errorf("to = %q", got.To)
	}
	if got.Message != "URGENT: short sms body" {
		t.Errorf("message = %q, want the sms rendering", got.Message)
	}
	if got.Priority != "high" {
		t.Errorf("priority = %q", got.Priority)
	}
	if auth != "Bearer gw-token" {
		t.Errorf("authorization = %q", auth)
	}
	if contentType != "application/json" {
		t.Errorf("content-type = %q", contentType)
	}
}

func TestSend_FallsBackToFullMessage(t *testing.T) {
	t.Parallel()

	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := testNotification()
	n.SMSMessage = ""
	g := New(srv.URL, "", staticContacts{"w-1": "+911234567890"})
	if err := g.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Message != "URGENT: full in-app body" {
		t.Errorf("message = %q, want fallback to full body", got.Message)
	}
}

func TestSend_NoTokenOmitsAuthorization(t *testing.T) {
	t.Parallel()

	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := New(srv.URL, "", staticContacts{"w-1": "+911234567890"})
	if err := g.Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if auth != "" {
		t.Errorf("authorization = %q, want empty", auth)
	}
}

func TestSend_GatewayErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantSub string
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			},
			wantSub: "429",
		},
		{
			name: "rejected by gateway",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(sendResponse{Success: false, Error: "invalid number"})
			},
			wantSub: "invalid number",
		},
		{
			name: "rejected without error text",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(sendResponse{Success: false})
			},
			wantSub: "rejected",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			g := New(srv.URL, "", staticContacts{"w-1": "+911234567890"})
			err := g.Send(context.Background(), testNotification())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestSend_ContactResolution(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := New(srv.URL, "", staticContacts{})
	if err := g.Send(context.Background(), testNotification()); err == nil {
		t.Error("expected error for unknown worker")
	}

	g = New(srv.URL, "", staticContacts{"w-1": ""})
	err := g.Send(context.Background(), testNotification())
	if err == nil || !strings.Contains(err.Error(), "no phone number") {
		t.Errorf("err = %v, want missing phone number error", err)
	}
}

type contactDir struct {
	candidates []worker.Candidate
}

func (d *contactDir) Candidates(_ context.Context, _ string, _ *patient.Location) ([]worker.Candidate, error) {
	return d.candidates, nil
}

func (d *contactDir) CountActiveCases(context.Context, string, time.Duration) (int, error) {
	return 0, nil
}

func TestDirectoryContacts(t *testing.T) {
	t.Parallel()

	dir := &contactDir{candidates: []worker.Candidate{
		{ID: "w-1", Contact: "+911111111111"},
		{ID: "w-2", Contact: "+912222222222"},
	}}
	r := DirectoryContacts{Dir: dir}

	got, err := r.WorkerContact(context.Background(), "w-2")
	if err != nil {
		t.Fatalf("WorkerContact: %v", err)
	}
	if got != "+912222222222" {
		t.Errorf("contact = %q", got)
	}

	if _, err := r.WorkerContact(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown worker")
	}
}
