package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bozzyboy/nano-director-5/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

// geminiModels answers model lookups for the listed models when the key matches.
func geminiModels(t *testing.T, key string, models ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.Header.Get("x-goog-api-key") != key {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/models/")
		for _, m := range models {
			if m == name {
				_, _ = w.Write([]byte(`{"name":"models/` + m + `"}`))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckGemini_OK(t *testing.T) {
	srv := geminiModels(t, "good-key", "flash")
	result := CheckGemini(context.Background(), "Text model", config.Gemini{APIKey: "good-key", BaseURL: srv.URL}, "flash")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckGemini_BadKey(t *testing.T) {
	srv := geminiModels(t, "good-key", "flash")
	result := CheckGemini(context.Background(), "Text model", config.Gemini{APIKey: "bad-key", BaseURL: srv.URL}, "flash")
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if result.Detail != "API key rejected" {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckGemini_UnknownModel(t *testing.T) {
	srv := geminiModels(t, "good-key", "flash")
	result := CheckGemini(context.Background(), "Image model", config.Gemini{APIKey: "good-key", BaseURL: srv.URL}, "missing-image")
	if result.Passed {
		t.Fatal("expected failure for unknown model")
	}
}

func TestCheckGemini_MissingKey(t *testing.T) {
	result := CheckGemini(context.Background(), "Text model", config.Gemini{BaseURL: "http://localhost"}, "flash")
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckAnthropic_RequiresKey(t *testing.T) {
	result := CheckAnthropic(context.Background(), config.Anthropic{Enabled: true, Model: "claude-test"})
	if result.Passed {
		t.Fatal("expected failure without api key")
	}

	result = CheckAnthropic(context.Background(), config.Anthropic{Enabled: true, APIKey: "sk-test", Model: "claude-test"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "claude-test") {
		t.Fatalf("detail should name the model: %q", result.Detail)
	}
}

func TestCheckDrive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drive/v3/about" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"user":{"displayName":"Keeper"}}`))
	}))
	defer srv.Close()

	if result := CheckDrive(context.Background(), config.Drive{AccessToken: "tok", BaseURL: srv.URL}); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	result := CheckDrive(context.Background(), config.Drive{AccessToken: "expired", BaseURL: srv.URL})
	if result.Passed || result.Detail != "token rejected" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_DefaultProviders(t *testing.T) {
	cfg := config.Default()
	srv := geminiModels(t, "key", cfg.Gemini.TextModel, cfg.Gemini.ImageModel)
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.ProjectsDir = ""
	cfg.Gemini.APIKey = "key"
	cfg.Gemini.BaseURL = srv.URL

	results := RunAll(context.Background(), &cfg)
	// State + log directories, text model, image model
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if Failed(results) {
		t.Fatal("Failed should be false when every check passes")
	}
}

func TestRunAll_ReportsMissingKey(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.ProjectsDir = t.TempDir()
	cfg.Gemini.APIKey = ""
	cfg.Drive.AccessToken = ""

	results := RunAll(context.Background(), &cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if !Failed(results) {
		t.Fatal("missing key should fail the run")
	}
	for _, r := range results {
		if r.Name == "Cloud storage" {
			t.Fatal("drive check should be skipped without a token")
		}
	}
}
