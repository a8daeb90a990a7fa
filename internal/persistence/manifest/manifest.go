package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bozzyboy/nano-director-5/internal/fileutil"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
	"github.com/bozzyboy/nano-director-5/internal/textutil"
)

// Format selects the manifest encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DefaultFileName is used when a project has no name.
const DefaultFileName = "project.json"

// FormatFor picks the encoding from a file extension. Anything that is not
// .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Encode serializes state. History is written as held by the state.
func Encode(state project.State, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("marshal yaml manifest: %w", err)
		}
		return data, nil
	case FormatJSON, "":
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal json manifest: %w", err)
		}
		return data, nil
	default:
		return nil, services.Wrap(services.ErrUnsupported, "manifest", "encode", fmt.Sprintf("unknown manifest format %q", format), nil)
	}
}

// Decode parses a manifest and applies project defaults. An empty format
// sniffs the payload: a leading '{' is JSON, anything else YAML.
func Decode(data []byte, format Format) (project.State, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return project.State{}, services.Wrap(services.ErrMissingInput, "manifest", "decode", "manifest is empty", nil)
	}
	if format == "" {
		format = FormatYAML
		if trimmed[0] == '{' {
			format = FormatJSON
		}
	}

	var state project.State
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(trimmed, &state)
	case FormatYAML:
		err = yaml.Unmarshal(trimmed, &state)
	default:
		return project.State{}, services.Wrap(services.ErrUnsupported, "manifest", "decode", fmt.Sprintf("unknown manifest format %q", format), nil)
	}
	if err != nil {
		return project.State{}, services.Wrap(services.ErrValidation, "manifest", "decode", fmt.Sprintf("invalid %s manifest", format), err)
	}
	state.ApplyDefaults()
	return state, nil
}

// ReadFile loads a manifest from disk, choosing the codec by extension and
// falling back to sniffing when the extension is neither JSON nor YAML.
func ReadFile(path string) (project.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return project.State{}, services.Wrap(services.ErrNotFound, "manifest", "read", fmt.Sprintf("no manifest at %s", path), err)
		}
		if errors.Is(err, fs.ErrPermission) {
			return project.State{}, services.Wrap(services.ErrAccessDenied, "manifest", "read", path, err)
		}
		return project.State{}, services.Wrap(services.ErrPersistence, "manifest", "read", path, err)
	}
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	}
	return Decode(data, format)
}

// WriteFile writes state to path atomically via a temp file.
func WriteFile(path string, state project.State) error {
	data, err := Encode(state, FormatFor(path))
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return services.Wrap(services.ErrAccessDenied, "manifest", "write", path, err)
		}
		return services.Wrap(services.ErrPersistence, "manifest", "write", path, err)
	}
	return nil
}

// FileName is the local manifest name: the project name with a .json
// suffix, or DefaultFileName for unnamed projects.
func FileName(state project.State) string {
	name := textutil.SanitizeFileName(state.ProjectName)
	if name == "" {
		return DefaultFileName
	}
	return name + ".json"
}

// CloudFileName names a cloud save. Unnamed projects get a timestamped name
// so repeated saves stay distinguishable.
func CloudFileName(state project.State, now time.Time) string {
	name := textutil.SanitizeFileName(state.ProjectName)
	if name == "" {
		return "NanoProject - " + now.UTC().Format(time.RFC3339) + ".json"
	}
	return name + ".json"
}
