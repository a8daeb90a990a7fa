package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/config"
	"github.com/bozzyboy/nano-director-5/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(cfg.Notifications)
	if err := svc.NotifyPanelsReady(context.Background(), "Keeper", 4, 0, time.Minute); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func captureServer(t *testing.T, got *captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		got.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "candidates ready",
			send: func(s notifications.Service) error {
				return s.NotifyCandidatesReady(context.Background(), "Keeper", 2)
			},
			expectTitle:   "Director - Candidates Ready",
			expectMessage: "🎞️ 2 candidate sheet(s) ready for Keeper",
			expectTags:    "director,candidates,ready",
		},
		{
			name: "panels ready",
			send: func(s notifications.Service) error {
				return s.NotifyPanelsReady(context.Background(), "Keeper", 4, 0, 95*time.Second+300*time.Millisecond)
			},
			expectTitle:    "Director - Panels Ready",
			expectMessage:  "✅ 4 panel(s) remastered for Keeper in 1m35s",
			expectTags:     "director,remaster,completed",
			expectPriority: "high",
		},
		{
			name: "panels ready with raw cuts",
			send: func(s notifications.Service) error {
				return s.NotifyPanelsReady(context.Background(), "", 9, 2, 0)
			},
			expectTitle:    "Director - Panels Ready (with raw cuts)",
			expectMessage:  "✅ 9 panel(s) remastered for untitled project in 0s\n2 panel(s) kept their raw cut",
			expectTags:     "director,remaster,completed",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyError(context.Background(), errors.New("rate limited"), "remaster")
			},
			expectTitle:    "Director - Error",
			expectMessage:  "❌ Error with remaster: rate limited",
			expectTags:     "director,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got captured
			server := captureServer(t, &got)

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			if err := tc.send(notifications.NewService(cfg.Notifications)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceHonoursToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled milestone: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Candidates = false
	cfg.Notifications.Panels = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(cfg.Notifications)
	ctx := context.Background()
	if err := svc.NotifyCandidatesReady(ctx, "Keeper", 2); err != nil {
		t.Fatal(err)
	}
	if err := svc.NotifyPanelsReady(ctx, "Keeper", 4, 0, time.Second); err != nil {
		t.Fatal(err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "generate"); err != nil {
		t.Fatal(err)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic reserved", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(cfg.Notifications).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic reserved") {
		t.Fatalf("expected status error, got %v", err)
	}
}
