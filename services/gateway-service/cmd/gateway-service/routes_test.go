package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/decorstudio/platform/libs/auth"
)

func upstream(t *testing.T, name string) *url.URL {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", name)
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func gateway(t *testing.T, secret string) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	registerRoutes(mux, routes(upstream(t, "booking"), upstream(t, "billing")), secret, http.DefaultTransport)
	return mux
}

func TestRoutesReachTheRightService(t *testing.T) {
	h := gateway(t, "s3cret")
	token, err := auth.SignHS256("studio", "admin", "s3cret", time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		method, path, want string
		admin              bool
	}{
		{http.MethodGet, "/api/v1/availability/slots?date=2026-03-10", "booking", false},
		{http.MethodPost, "/api/v1/appointments", "booking", false},
		{http.MethodGet, "/api/v1/admin/blocked-slots", "booking", true},
		{http.MethodPost, "/api/v1/admin/quotes", "billing", true},
		{http.MethodGet, "/api/v1/admin/quotes/9b1f", "billing", true},
		{http.MethodPost, "/api/v1/admin/quote-payments/9b1f/send", "billing", true},
		{http.MethodGet, "/api/v1/public/quotes/tok", "billing", false},
		{http.MethodPost, "/api/v1/webhooks/stripe", "billing", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.admin {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s: status %d", tc.method, tc.path, rec.Code)
		}
		if got := rec.Header().Get("X-Upstream"); got != tc.want {
			t.Fatalf("%s %s: routed to %q, want %q", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestAdminRoutesNeedToken(t *testing.T) {
	h := gateway(t, "s3cret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/quotes", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	staff, err := auth.SignHS256("someone", "staff", "s3cret", time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+staff)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestUnknownPathIsNotProxied(t *testing.T) {
	h := gateway(t, "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/billing/subscriptions", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
