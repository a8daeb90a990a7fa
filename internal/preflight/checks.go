package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bozzyboy/nano-director-5/internal/config"
	"github.com/bozzyboy/nano-director-5/internal/persistence/drive"
	"github.com/bozzyboy/nano-director-5/internal/services"
	"github.com/bozzyboy/nano-director-5/internal/services/claude"
	"github.com/bozzyboy/nano-director-5/internal/services/gemini"
)

const checkTimeout = 30 * time.Second

// CheckGemini verifies that the Gemini API accepts the key and knows model.
// It uses a single attempt (no retries).
func CheckGemini(ctx context.Context, name string, cfg config.Gemini, model string) Result {
	model = strings.TrimSpace(model)
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	if model == "" {
		return Result{Name: name, Detail: "model not set"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	client := gemini.NewClient(gemini.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, gemini.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx, model); err != nil {
		return Result{Name: name, Detail: summarizeError(model, err)}
	}
	return Result{Name: name, Passed: true, Detail: model + " reachable"}
}

// CheckAnthropic verifies the Claude credentials are present. It makes no
// request; every Messages call is billed.
func CheckAnthropic(ctx context.Context, cfg config.Anthropic) Result {
	const name = "Text model"

	model, err := claude.NewTextModel(ctx, claude.Config{
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		UseBedrock: cfg.UseBedrock,
		AWSRegion:  cfg.AWSRegion,
		AWSProfile: cfg.AWSProfile,
	})
	if err != nil {
		return Result{Name: name, Detail: summarizeError("claude", err)}
	}
	via := "api key"
	if cfg.UseBedrock {
		via = "bedrock"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("claude %s (%s)", model.Model(), via)}
}

// CheckDrive signs in with the configured token and asks Drive who it belongs to.
func CheckDrive(ctx context.Context, cfg config.Drive) Result {
	const name = "Cloud storage"

	if strings.TrimSpace(cfg.AccessToken) == "" {
		return Result{Name: name, Detail: "missing access token"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	store := drive.New(
		drive.Config{BaseURL: cfg.BaseURL, FolderName: cfg.FolderName},
		drive.NewSession(cfg.ClientID),
		drive.WithTokenSource(drive.StaticToken(cfg.AccessToken)),
	)
	if err := store.Login(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("drive", err)}
	}
	if err := store.Verify(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("drive", err)}
	}
	return Result{Name: name, Passed: true, Detail: "token accepted"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeError produces a human-readable summary for check failures.
func summarizeError(target string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("check timed out (%s unresponsive)", target)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("check timed out (%s unreachable)", target)
	}
	switch {
	case errors.Is(err, services.ErrPermissionDenied):
		return "API key rejected"
	case errors.Is(err, services.ErrConfiguration):
		return "credentials missing"
	case errors.Is(err, services.ErrLoginRequired):
		return "token rejected"
	case errors.Is(err, services.ErrAccessDenied):
		return "access denied"
	case errors.Is(err, services.ErrNotFound):
		return fmt.Sprintf("%s not found", target)
	}
	return err.Error()
}
