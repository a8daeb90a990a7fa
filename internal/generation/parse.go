package generation

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

const (
	msgSafetyFilter  = "Safety filter triggered. Please soften the story idea."
	msgMalformedJSON = "Failed to parse script JSON. The model output was malformed."
	scriptStage      = "script"
	candidatesStage  = "candidates"
	remasterStage    = "remaster"
	extractStage     = "extract"
	recompileStage   = "recompile"
	renderStage      = "render"
	maxSnippetRunes  = 160
)

// ParseScript extracts the script object from a model response. Code fences
// are dropped and the text between the first '{' and the last '}' is decoded.
// A missing shots array becomes an empty list.
func ParseScript(content string) (*project.Script, error) {
	if strings.TrimSpace(content) == "" {
		return nil, services.Wrap(services.ErrContentFiltered, scriptStage, "parse", msgSafetyFilter, nil)
	}
	clean := strings.ReplaceAll(content, "```json", "")
	clean = strings.TrimSpace(strings.ReplaceAll(clean, "```", ""))

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}

	var script project.Script
	if err := json.Unmarshal([]byte(clean), &script); err != nil {
		return nil, services.Wrap(services.ErrMalformedOutput, scriptStage, "parse", msgMalformedJSON+" ("+snippet(clean)+")", err)
	}
	if script.Shots == nil {
		script.Shots = []project.Shot{}
	}
	return &script, nil
}

var (
	bracketedImageTag = regexp.MustCompile(`(?i)[(\[]\s*@img\d+\s*[)\]]`)
	bareImageTag      = regexp.MustCompile(`(?i)@img\d+`)
	repeatedSpace     = regexp.MustCompile(`\s{2,}`)
)

// CleanExtractedPrompt removes reference-image tags such as (@img1), [@img2],
// and bare @img3, then collapses whitespace runs.
func CleanExtractedPrompt(text string) string {
	text = bracketedImageTag.ReplaceAllString(text, "")
	text = bareImageTag.ReplaceAllString(text, "")
	text = repeatedSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	runes := []rune(clean)
	if len(runes) > maxSnippetRunes {
		return string(runes[:maxSnippetRunes]) + "..."
	}
	return clean
}
