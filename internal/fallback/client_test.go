// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package fallback

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/slotsync/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{
		BaseURL:            server.URL + "/",
		Token:              "secret",
		Timeout:            2 * time.Second,
		RatePerSecond:      1000,
		Burst:              100,
		BreakerMaxFailures: 2,
		BreakerTimeout:     time.Minute,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_DisabledWithoutBaseURL(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrDisabled) {
		t.Errorf("New() error = %v, want ErrDisabled", err)
	}
}

func TestCancelReservation(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantSuccess bool
		wantFailure models.FailureKind
		wantMessage string
	}{
		{
			name:        "success",
			status:      http.StatusOK,
			body:        `{"success":true,"message":"cancelled"}`,
			wantSuccess: true,
			wantMessage: "cancelled",
		},
		{
			name:        "refused in body prefers error",
			status:      http.StatusOK,
			body:        `{"success":false,"message":"no","error":"already started"}`,
			wantFailure: models.FailureRejected,
			wantMessage: "already started",
		},
		{
			name:        "refused without reason",
			status:      http.StatusOK,
			body:        `{"success":false}`,
			wantFailure: models.FailureRejected,
			wantMessage: models.ReasonSlotUnavailable,
		},
		{
			name:        "conflict status",
			status:      http.StatusConflict,
			body:        `{"error":"locked by another operator"}`,
			wantFailure: models.FailureRejected,
			wantMessage: "locked by another operator",
		},
		{
			name:        "server error",
			status:      http.StatusBadGateway,
			body:        `upstream down`,
			wantFailure: models.FailureSendFailure,
			wantMessage: models.ReasonSendFailed,
		},
		{
			name:        "malformed body",
			status:      http.StatusOK,
			body:        `{`,
			wantFailure: models.FailureSendFailure,
			wantMessage: models.ReasonSendFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq cancelRequest
			var gotAuth, gotPath string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotPath = r.URL.Path
				raw, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(raw, &gotReq)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res := c.CancelReservation(context.Background(), "s1", "2026-03-02")
			if res.Success != tt.wantSuccess || res.Failure != tt.wantFailure || res.Message != tt.wantMessage {
				t.Errorf("CancelReservation() = %+v", res)
			}
			if gotPath != cancelPath {
				t.Errorf("path = %q, want %q", gotPath, cancelPath)
			}
			if gotAuth != "Bearer secret" {
				t.Errorf("Authorization = %q", gotAuth)
			}
			if gotReq.SubjectID != "s1" || gotReq.Date != "2026-03-02" {
				t.Errorf("request body = %+v", gotReq)
			}
		})
	}
}

func TestListReservations(t *testing.T) {
	bodies := map[string]string{
		"bare array": `[{"id":1,"subject_id":"s1","date":"2026-03-02","time_slot":"09:30","display_name":"Ada"},
			{"id":"r2","subject_id":"s2","date":"2026-03-02","time_slot":"11:10","kind":2}]`,
		"wrapped": `{"data":[{"id":1,"subject_id":"s1","date":"2026-03-02","time_slot":"09:30","display_name":"Ada"},
			{"id":"r2","subject_id":"s2","date":"2026-03-02","time_slot":"11:10","kind":2}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != listPath {
					http.NotFound(w, r)
					return
				}
				_, _ = w.Write([]byte(body))
			})

			got, err := c.ListReservations(context.Background())
			if err != nil {
				t.Fatalf("ListReservations() error = %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("len = %d, want 2", len(got))
			}
			if got[0].ID != "1" || got[0].Time != "09:30" || got[0].DisplayName != "Ada" {
				t.Errorf("first = %+v", got[0])
			}
			if got[1].ID != "r2" || got[1].Kind != models.KindNonMovable {
				t.Errorf("second = %+v", got[1])
			}
		})
	}
}

func TestCircuitBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for range 2 {
		if _, err := c.ListReservations(context.Background()); err == nil {
			t.Fatal("expected error from failing backend")
		}
	}
	if c.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", c.State())
	}

	_, err := c.ListReservations(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want ErrOpenState", err)
	}
	if calls.Load() != 2 {
		t.Errorf("backend called %d times, want 2", calls.Load())
	}

	res := c.CancelReservation(context.Background(), "s1", "2026-03-02")
	if res.Failure != models.FailureSendFailure {
		t.Errorf("cancel with open breaker = %+v, want send failure", res)
	}
}

func TestRejectionsDoNotTripBreaker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("date is closed"))
	})

	for range 5 {
		res := c.CancelReservation(context.Background(), "s1", "2026-03-02")
		if res.Failure != models.FailureRejected || !strings.Contains(res.Message, "closed") {
			t.Fatalf("CancelReservation() = %+v", res)
		}
	}
	if c.State() != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", c.State())
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL, RatePerSecond: 0.001, Burst: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ListReservations(context.Background()); err != nil {
		t.Fatalf("first request error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.ListReservations(ctx); err == nil {
		t.Error("second request passed the limiter")
	}
}
