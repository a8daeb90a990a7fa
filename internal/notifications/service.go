package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/config"
)

const userAgent = "NanoDirector-Go/0.1.0"

// Service defines the notification surface exposed to the CLI and server.
type Service interface {
	NotifyCandidatesReady(ctx context.Context, projectName string, count int) error
	NotifyPanelsReady(ctx context.Context, projectName string, panels, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
}

func (n *ntfyService) NotifyCandidatesReady(ctx context.Context, projectName string, count int) error {
	if !n.toggles.Candidates {
		return nil
	}
	data := payload{
		title:   "Director - Candidates Ready",
		message: fmt.Sprintf("🎞️ %d candidate sheet(s) ready for %s", count, displayName(projectName)),
		tags:    []string{"director", "candidates", "ready"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPanelsReady(ctx context.Context, projectName string, panels, failed int, duration time.Duration) error {
	if !n.toggles.Panels {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	title := "Director - Panels Ready"
	message := fmt.Sprintf("✅ %d panel(s) remastered for %s in %s", panels, displayName(projectName), duration)
	if failed > 0 {
		title = "Director - Panels Ready (with raw cuts)"
		message = fmt.Sprintf("%s\n%d panel(s) kept their raw cut", message, failed)
	}
	data := payload{
		title:    title,
		message:  message,
		tags:     []string{"director", "remaster", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.toggles.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Director - Error",
		message:  builder.String(),
		tags:     []string{"director", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Director - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"director", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func displayName(projectName string) string {
	if name := strings.TrimSpace(projectName); name != "" {
		return name
	}
	return "untitled project"
}

type noopService struct{}

func (noopService) NotifyCandidatesReady(context.Context, string, int) error                 { return nil }
func (noopService) NotifyPanelsReady(context.Context, string, int, int, time.Duration) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                         { return nil }
func (noopService) TestNotification(context.Context) error                                   { return nil }
