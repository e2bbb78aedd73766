package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

func TestHandlePostsSecretAndLogsReport(t *testing.T) {
	var gotAuth string
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"runId":"r1","message":"reminders dispatched for 2 clinic(s)","count":2,"details":[{"clinicId":"c1","status":"success"},{"clinicId":"c2","status":"failed","error":"send timed out"}]}`))
	}))
	defer upstream.Close()

	cfg := config{upstreamBaseURL: upstream.URL, schedulerSecret: "s3cret", upstreamTimeout: time.Second}
	evt := events.CloudWatchEvent{Source: "aws.events", Time: time.Now()}

	if err := handle(context.Background(), cfg, upstream.Client(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer s3cret" {
		t.Fatalf("expected bearer secret, got %q", gotAuth)
	}
	if gotPath != "/internal/reminders/run" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestHandleSurfacesUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer upstream.Close()

	cfg := config{upstreamBaseURL: upstream.URL, schedulerSecret: "wrong", upstreamTimeout: time.Second}

	err := handle(context.Background(), cfg, upstream.Client(), events.CloudWatchEvent{Time: time.Now()})
	if err == nil {
		t.Fatalf("expected error on non-200 upstream status")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestLoadConfigRequiresBaseURLAndSecret(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	t.Setenv("SCHEDULER_SECRET", "")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error without UPSTREAM_BASE_URL")
	}

	t.Setenv("UPSTREAM_BASE_URL", "http://api.internal/")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error without SCHEDULER_SECRET")
	}

	t.Setenv("SCHEDULER_SECRET", "s3cret")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.upstreamBaseURL != "http://api.internal" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.upstreamBaseURL)
	}
}
