package waclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klinicq/queue-platform/internal/messaging"
	"github.com/klinicq/queue-platform/pkg/logging"
)

var _ messaging.TextSender = (*Client)(nil)
var _ messaging.TextSender = (*StubSender)(nil)

func newTestClient(t *testing.T, baseURL string, retries int) *Client {
	t.Helper()
	client, err := New(Config{
		BaseURL:       baseURL,
		AccessToken:   "test-token",
		PhoneNumberID: "10987654321",
		MaxRetries:    retries,
		Backoff:       time.Millisecond,
		Logger:        logging.Default(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSendTextPostsGraphPayload(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody sendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.OUT1"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)
	if err := client.SendText(context.Background(), "919876543210", "Hi Asha, token W4 at 10:30 AM."); err != nil {
		t.Fatalf("send text: %v", err)
	}

	if gotPath != "/10987654321/messages" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody.MessagingProduct != "whatsapp" || gotBody.Type != "text" {
		t.Fatalf("unexpected payload: %+v", gotBody)
	}
	if gotBody.To != "919876543210" || gotBody.Text.Body != "Hi Asha, token W4 at 10:30 AM." {
		t.Fatalf("unexpected recipient/body: %+v", gotBody)
	}
}

func TestSendTextRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"message":"temporarily unavailable","code":2}}`, http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"messages":[{"id":"wamid.OUT2"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 2)
	if err := client.SendText(context.Background(), "919876543210", "hello"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestSendTextDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid recipient","type":"OAuthException","code":100,"fbtrace_id":"Ab1"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)
	err := client.SendText(context.Background(), "not-a-number", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid recipient") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt for 400, got %d", calls.Load())
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{PhoneNumberID: "123"}); err == nil {
		t.Fatal("expected error without access token")
	}
	if _, err := New(Config{AccessToken: "tok"}); err == nil {
		t.Fatal("expected error without phone number id")
	}
}

func TestSendTextValidatesInput(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0", 0)

	if err := client.SendText(context.Background(), "", "hello"); err == nil {
		t.Fatal("expected error for empty recipient")
	}
	if err := client.SendText(context.Background(), "919876543210", "  "); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestStubSenderAlwaysSucceeds(t *testing.T) {
	stub := NewStubSender(logging.Default())
	if err := stub.SendText(context.Background(), "919876543210", "hello"); err != nil {
		t.Fatalf("stub send: %v", err)
	}
}
