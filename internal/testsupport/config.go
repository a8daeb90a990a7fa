package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/bozzyboy/nano-director-5/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Pipeline delays are zeroed so tests never wait on pacing.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Gemini.APIKey = "test"
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ProjectsDir = filepath.Join(base, "projects")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Pipeline.CandidateDelayMS = 0
	cfgVal.Pipeline.RemasterDelayMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithGeminiEndpoint points the Gemini client at a test server.
func WithGeminiEndpoint(url, key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gemini.BaseURL = url
		b.cfg.Gemini.APIKey = key
	}
}

// WithDriveEndpoint points the Drive client at a test server with a token.
func WithDriveEndpoint(url, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Drive.BaseURL = url
		b.cfg.Drive.AccessToken = token
	}
}

// WithNtfyTopic sends notifications to url.
func WithNtfyTopic(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = url
	}
}

// WithAutosave sets the autosave destination and enables it.
func WithAutosave(destination string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Autosave.Enabled = true
		b.cfg.Autosave.Destination = destination
	}
}

