package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/fileutil"
	"github.com/bozzyboy/nano-director-5/internal/logging"
)

// File is the on-disk working copy.
type File struct {
	director.WorkingCopy
	// Destination is the autosave/explicit-save target last chosen.
	Destination string `json:"destination,omitempty"`
	// LocalFolder is the granted project folder, if any.
	LocalFolder string `json:"localFolder,omitempty"`
}

// Store reads and writes the working copy file.
type Store struct {
	path   string
	logger *slog.Logger
}

// New returns a store for path.
func New(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logging.NewComponentLogger(logger, "workspace"),
	}
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the working copy. The boolean is false when none exists yet.
func (s *Store) Load() (File, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return File{}, false, nil
		}
		return File{}, false, fmt.Errorf("read workspace: %w", err)
	}
	if len(data) == 0 {
		return File{}, false, nil
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return File{}, false, fmt.Errorf("parse workspace %s: %w", s.path, err)
	}
	s.logger.Debug("workspace loaded", logging.String("path", s.path))
	return file, true, nil
}

// Save writes the working copy atomically.
func (s *Store) Save(file File) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal workspace: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write workspace: %w", err)
	}
	return nil
}

// Clear deletes the working copy.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}
