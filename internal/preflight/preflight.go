package preflight

import (
	"context"

	"github.com/bozzyboy/nano-director-5/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Paths.ProjectsDir != "" {
		results = append(results, CheckDirectoryAccess("Projects directory", cfg.Paths.ProjectsDir))
	}

	// Text models run through Claude when it is enabled; images always use Gemini.
	if cfg.Anthropic.Enabled {
		results = append(results, CheckAnthropic(ctx, cfg.Anthropic))
	} else {
		results = append(results, CheckGemini(ctx, "Text model", cfg.Gemini, cfg.Gemini.TextModel))
	}
	results = append(results, CheckGemini(ctx, "Image model", cfg.Gemini, cfg.Gemini.ImageModel))

	if cfg.Drive.AccessToken != "" {
		results = append(results, CheckDrive(ctx, cfg.Drive))
	}

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
