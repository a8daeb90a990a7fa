package localstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/bozzyboy/nano-director-5/internal/fileutil"
	"github.com/bozzyboy/nano-director-5/internal/grid"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/persistence/manifest"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/remaster"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

const (
	AssetsDir        = "director_assets"
	UserGeneratedDir = "user_generated"
	SourceGridName   = "Source_Grid.png"

	lockFileName   = ".director.lock"
	lockRetryDelay = 50 * time.Millisecond
)

// Store writes manifests and batches into a granted folder.
type Store struct {
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	root string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for batch folder names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store with no folder granted.
func New(logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		logger: logging.NewComponentLogger(logger, "localstore"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant makes dir the active folder, creating it and the standard
// subfolders when needed.
func (s *Store) Grant(ctx context.Context, dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return services.Wrap(services.ErrMissingInput, "localstore", "grant", "folder path is required", nil)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "localstore", "grant", "resolve folder path", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return accessError("grant", abs, err)
	}
	if err := unix.Access(abs, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return services.Wrap(services.ErrAccessDenied, "localstore", "grant", fmt.Sprintf("%s: insufficient permissions", abs), err)
	}
	for _, sub := range []string{UserGeneratedDir, AssetsDir} {
		if err := os.MkdirAll(filepath.Join(abs, sub), 0o755); err != nil {
			return accessError("grant", abs, err)
		}
	}

	s.mu.Lock()
	s.root = abs
	s.mu.Unlock()
	logging.WithContext(ctx, s.logger).Info("project folder granted", logging.String("folder", abs))
	return nil
}

// Granted reports whether a folder is active.
func (s *Store) Granted() bool {
	return s.Root() != ""
}

// Root returns the active folder, or "".
func (s *Store) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// SaveManifest writes the manifest for state, overwriting any previous save
// of the same project name. It returns the manifest path.
func (s *Store) SaveManifest(ctx context.Context, state project.State) (string, error) {
	root, err := s.activeRoot("save manifest")
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, manifest.FileName(state))
	err = s.withLock(ctx, root, func() error {
		return manifest.WriteFile(path, state)
	})
	if err != nil {
		return "", err
	}
	logging.WithContext(ctx, s.logger).Debug("manifest saved", logging.String("path", path))
	return path, nil
}

// LoadManifest reads the first *.json manifest in the folder, in lexical
// order. The boolean is false when the folder holds no manifest.
func (s *Store) LoadManifest(ctx context.Context) (project.State, bool, error) {
	root, err := s.activeRoot("load manifest")
	if err != nil {
		return project.State{}, false, err
	}
	matches, err := filepath.Glob(filepath.Join(root, "*.json"))
	if err != nil {
		return project.State{}, false, services.Wrap(services.ErrPersistence, "localstore", "load manifest", "list manifests", err)
	}
	sort.Strings(matches)
	for _, path := range matches {
		info, statErr := os.Stat(path)
		if statErr != nil || info.IsDir() {
			continue
		}
		state, err := manifest.ReadFile(path)
		if err != nil {
			return project.State{}, false, err
		}
		logging.WithContext(ctx, s.logger).Info("manifest loaded", logging.String("path", path))
		return state, true, nil
	}
	return project.State{}, false, nil
}

// SaveBatch writes the source composite and every panel into a new
// timestamped folder under director_assets/.
func (s *Store) SaveBatch(ctx context.Context, source string, panels []string) (remaster.SavedBatch, error) {
	root, err := s.activeRoot("save batch")
	if err != nil {
		return remaster.SavedBatch{}, err
	}
	created := s.now().UTC()
	folder := filepath.Join(root, AssetsDir, BatchFolderName(created))
	projectName, _ := services.ProjectFromContext(ctx)
	batch := remaster.SavedBatch{
		ID:        uuid.NewString(),
		Project:   projectName,
		Folder:    folder,
		CreatedAt: created,
	}

	err = s.withLock(ctx, root, func() error {
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return accessError("save batch", folder, err)
		}
		batch.SourcePath = filepath.Join(folder, SourceGridName)
		if err := writeImage(batch.SourcePath, source); err != nil {
			return err
		}
		for i, panel := range panels {
			path := filepath.Join(folder, PanelFileName(i))
			if err := writeImage(path, panel); err != nil {
				return err
			}
			batch.PanelPaths = append(batch.PanelPaths, path)
		}
		return nil
	})
	if err != nil {
		return remaster.SavedBatch{}, err
	}
	logging.WithContext(ctx, s.logger).Info("remaster batch saved",
		logging.String(logging.FieldBatchID, batch.ID),
		logging.String("folder", folder),
		logging.Int("panels", len(batch.PanelPaths)),
	)
	return batch, nil
}

// SaveUserImage writes an editor render to user_generated/ and returns its
// path.
func (s *Store) SaveUserImage(ctx context.Context, image string) (string, error) {
	root, err := s.activeRoot("save user image")
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, UserGeneratedDir)
	path := filepath.Join(dir, UserImageName(s.now()))
	err = s.withLock(ctx, root, func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return accessError("save user image", dir, err)
		}
		return writeImage(path, image)
	})
	if err != nil {
		return "", err
	}
	logging.WithContext(ctx, s.logger).Info("editor render saved", logging.String("path", path))
	return path, nil
}

// BatchFolderName is Batch_ followed by the portable timestamp.
func BatchFolderName(t time.Time) string {
	return "Batch_" + portableStamp(t)
}

// UserImageName is UserGen_ followed by the portable timestamp.
func UserImageName(t time.Time) string {
	return "UserGen_" + portableStamp(t) + ".png"
}

// portableStamp is the RFC 3339 UTC timestamp with ':' and '.' replaced.
func portableStamp(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
}

// PanelFileName names the remastered panel at zero-based index i.
func PanelFileName(i int) string {
	return fmt.Sprintf("Shot_%d_Remastered.png", i+1)
}

func (s *Store) activeRoot(op string) (string, error) {
	root := s.Root()
	if root == "" {
		return "", services.Wrap(services.ErrNoDestination, "localstore", op, "no project folder granted", nil)
	}
	return root, nil
}

func (s *Store) withLock(ctx context.Context, root string, fn func() error) error {
	lock := flock.New(filepath.Join(root, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "localstore", "lock", "acquire folder lock", err)
	}
	if !locked {
		return services.Wrap(services.ErrBusy, "localstore", "lock", "project folder is locked by another process", nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("folder unlock failed", logging.Error(err))
		}
	}()
	return fn()
}

func writeImage(path, encoded string) error {
	data, err := grid.DecodeBytes(encoded)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileVerified(path, data, 0o644); err != nil {
		return accessError("write image", path, err)
	}
	return nil
}

func accessError(op, path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return services.Wrap(services.ErrAccessDenied, "localstore", op, path, err)
	}
	return services.Wrap(services.ErrPersistence, "localstore", op, path, err)
}
