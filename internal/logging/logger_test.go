package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bozzyboy/nano-director-5/internal/config"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg, nil)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello file")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello file") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerPrefixesComponentAndProject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "remaster")
	logger.Info("panel done", logging.String(logging.FieldProject, "heist"), logging.PanelIndex(2))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO remaster [heist] panel done") {
		t.Fatalf("unexpected console line %q", line)
	}
	if !strings.Contains(line, "panel_index=2") {
		t.Fatalf("expected panel index field, got %q", line)
	}
}

func TestJSONLoggerRenamesKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.String("k", "v"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &payload); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if payload["level"] != "info" || payload["msg"] != "json message" || payload["k"] != "v" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %#v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProject(ctx, "heist")
	ctx = services.WithStage(ctx, "remaster")
	ctx = services.WithPanelIndex(ctx, 3)
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, base).Info("contextual log")

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[logging.FieldProject] != "heist" {
		t.Fatalf("project = %v", payload[logging.FieldProject])
	}
	if payload[logging.FieldStage] != "remaster" {
		t.Fatalf("stage = %v", payload[logging.FieldStage])
	}
	if payload[logging.FieldPanelIndex] != float64(3) {
		t.Fatalf("panel_index = %v", payload[logging.FieldPanelIndex])
	}
	if payload[logging.FieldCorrelationID] != "req-xyz" {
		t.Fatalf("correlation_id = %v", payload[logging.FieldCorrelationID])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "autosave skipped", "autosave_failed", logging.String(logging.FieldImpact, "changes unsaved"))

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[logging.FieldEventType] != "autosave_failed" {
		t.Fatalf("event_type = %v", payload[logging.FieldEventType])
	}
	if payload[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
	if payload[logging.FieldImpact] != "changes unsaved" {
		t.Fatalf("impact should not be overridden, got %v", payload[logging.FieldImpact])
	}
}

func TestDebugFileCapturesBelowConsoleLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "warn"
	cfg.Logging.DebugFile = true

	hub := logging.NewStreamHub(16)
	logger, err := logging.NewFromConfig(&cfg, hub)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.With(logging.String(logging.FieldComponent, "candidates")).Debug("sheet prompt built", logging.Int("sheet", 2))
	logger.Warn("retrying sheet")

	main, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(main), "sheet prompt built") {
		t.Fatalf("debug record leaked into main log: %q", main)
	}

	debug, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.DebugFileName))
	if err != nil {
		t.Fatalf("read debug file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(debug)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 debug lines, got %d: %q", len(lines), debug)
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode debug line: %v", err)
	}
	if first["level"] != "debug" || first["component"] != "candidates" || first["sheet"] != float64(2) {
		t.Fatalf("unexpected debug payload %#v", first)
	}
	if _, ok := first["source"].(string); !ok {
		t.Fatalf("expected source on debug line, got %#v", first)
	}

	events, _ := hub.Tail(10)
	if len(events) != 1 || events[0].Message != "retrying sheet" {
		t.Fatalf("stream should only see console-level records, got %#v", events)
	}
}
