// The dispatch lambda runs on an EventBridge schedule and triggers the daily
// reminder batch by calling the API's internal endpoint with the scheduler
// shared secret. Keeping dispatch behind the API keeps one code path for
// manual and scheduled runs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

type config struct {
	upstreamBaseURL string
	schedulerSecret string
	upstreamTimeout time.Duration
}

func loadConfig() (config, error) {
	baseURL := strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL"))
	if baseURL == "" {
		return config{}, errors.New("UPSTREAM_BASE_URL is required")
	}

	secret := strings.TrimSpace(os.Getenv("SCHEDULER_SECRET"))
	if secret == "" {
		return config{}, errors.New("SCHEDULER_SECRET is required")
	}

	timeout := 60 * time.Second
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return config{}, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		timeout = parsed
	}

	return config{
		upstreamBaseURL: strings.TrimRight(baseURL, "/"),
		schedulerSecret: secret,
		upstreamTimeout: timeout,
	}, nil
}

type dispatchReport struct {
	RunID   string `json:"runId"`
	Message string `json:"message"`
	Count   int    `json:"count"`
	Details []struct {
		ClinicID string `json:"clinicId"`
		Status   string `json:"status"`
		Error    string `json:"error,omitempty"`
	} `json:"details"`
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	client := &http.Client{Timeout: cfg.upstreamTimeout}
	lambda.Start(func(ctx context.Context, evt events.CloudWatchEvent) error {
		return handle(ctx, cfg, client, evt)
	})
}

func handle(ctx context.Context, cfg config, client *http.Client, evt events.CloudWatchEvent) error {
	log.Printf("dispatch trigger received: source=%s time=%s", evt.Source, evt.Time.Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.upstreamBaseURL+"/internal/reminders/run", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.schedulerSecret)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call dispatcher: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dispatcher returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var report dispatchReport
	if err := json.Unmarshal(body, &report); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}

	failed := 0
	for _, d := range report.Details {
		if d.Status == "failed" {
			failed++
			log.Printf("clinic %s failed: %s", d.ClinicID, d.Error)
		}
	}
	log.Printf("dispatch complete: run_id=%s clinics=%d failed=%d message=%q",
		report.RunID, report.Count, failed, report.Message)
	return nil
}
