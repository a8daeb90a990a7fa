package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/persistence/manifest"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/remaster"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

// LocalStore is the local folder destination.
type LocalStore interface {
	Grant(ctx context.Context, dir string) error
	Granted() bool
	SaveManifest(ctx context.Context, state project.State) (string, error)
	LoadManifest(ctx context.Context) (project.State, bool, error)
	SaveBatch(ctx context.Context, source string, panels []string) (remaster.SavedBatch, error)
	SaveUserImage(ctx context.Context, image string) (string, error)
}

// CloudFile is one saved project in the cloud folder.
type CloudFile struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Modified time.Time `json:"modifiedTime,omitzero"`
}

// CloudStore is the cloud destination. Login starts a session; the other
// calls fail with services.ErrLoginRequired without one.
type CloudStore interface {
	Authenticated() bool
	Login(ctx context.Context) error
	Save(ctx context.Context, state project.State, name string) (CloudFile, error)
	List(ctx context.Context) ([]CloudFile, error)
	Load(ctx context.Context, id string) (project.State, error)
}

// FolderPicker asks the user for a local folder on explicit save.
type FolderPicker interface {
	PickFolder(ctx context.Context) (string, error)
}

// BatchRecorder catalogs persisted remaster batches.
type BatchRecorder interface {
	RecordBatch(ctx context.Context, batch remaster.SavedBatch) error
}

// SaveResult reports where a save landed.
type SaveResult struct {
	Destination Destination `json:"destination"`
	Location    string      `json:"location"`
}

// Router dispatches saves and loads. Its methods are safe for concurrent
// use; storage calls are serialized.
type Router struct {
	local       LocalStore
	cloud       CloudStore
	picker      FolderPicker
	recorder    BatchRecorder
	downloadDir string
	logger      *slog.Logger
	now         func() time.Time

	lock OperationLock
	io   sync.Mutex
}

// Option customizes a Router.
type Option func(*Router)

// WithLocal sets the local folder store.
func WithLocal(store LocalStore) Option {
	return func(r *Router) { r.local = store }
}

// WithCloud sets the cloud store.
func WithCloud(store CloudStore) Option {
	return func(r *Router) { r.cloud = store }
}

// WithFolderPicker sets how explicit local saves obtain a folder.
func WithFolderPicker(picker FolderPicker) Option {
	return func(r *Router) { r.picker = picker }
}

// WithBatchRecorder records every persisted batch.
func WithBatchRecorder(recorder BatchRecorder) Option {
	return func(r *Router) { r.recorder = recorder }
}

// WithDownloadDir is where Save writes for DestinationDownload.
func WithDownloadDir(dir string) Option {
	return func(r *Router) { r.downloadDir = dir }
}

// WithClock overrides the time source used for cloud file names.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRouter constructs a router. Destinations that were not configured
// report services.ErrUnsupported.
func NewRouter(logger *slog.Logger, opts ...Option) *Router {
	r := &Router{
		logger: logging.NewComponentLogger(logger, "persistence"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Busy reports whether a foreground action holds the operation lock.
func (r *Router) Busy() bool {
	return r.lock.Held()
}

// Lock exposes the operation lock.
func (r *Router) Lock() *OperationLock {
	return &r.lock
}

// Ready reports whether dest can be written without user interaction.
func (r *Router) Ready(dest Destination) bool {
	switch dest {
	case DestinationLocal:
		return r.local != nil && r.local.Granted()
	case DestinationCloud:
		return r.cloud != nil && r.cloud.Authenticated()
	default:
		return false
	}
}

// Save is an explicit save. A local save with no folder asks the picker
// for one; a cloud save with no session logs in first.
func (r *Router) Save(ctx context.Context, state project.State, dest Destination) (SaveResult, error) {
	var result SaveResult
	err := r.lock.Do("save", func() error {
		var err error
		result, err = r.save(ctx, state, dest, true)
		return err
	})
	if err != nil {
		return SaveResult{}, err
	}
	logging.WithContext(ctx, r.logger).Info("project saved",
		logging.String("destination", string(result.Destination)),
		logging.String("location", result.Location),
	)
	return result, nil
}

// Autosave writes without user interaction. It does not take the operation
// lock; it returns services.ErrBusy when the lock is held,
// services.ErrNoDestination when no folder is granted, and
// services.ErrLoginRequired when no cloud session exists.
func (r *Router) Autosave(ctx context.Context, state project.State, dest Destination) (SaveResult, error) {
	if !dest.Autosavable() {
		return SaveResult{}, services.Wrap(services.ErrUnsupported, "persistence", "autosave", fmt.Sprintf("destination %q is never autosaved", dest), nil)
	}
	if r.lock.Held() {
		return SaveResult{}, services.Wrap(services.ErrBusy, "persistence", "autosave", "foreground action in progress", nil)
	}
	return r.save(ctx, state, dest, false)
}

// Export writes the manifest to path. The extension picks JSON or YAML.
func (r *Router) Export(ctx context.Context, state project.State, path string) (SaveResult, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return SaveResult{}, services.Wrap(services.ErrMissingInput, "persistence", "export", "export path is required", nil)
	}
	err := r.lock.Do("export", func() error {
		r.io.Lock()
		defer r.io.Unlock()
		return manifest.WriteFile(path, state)
	})
	if err != nil {
		return SaveResult{}, err
	}
	logging.WithContext(ctx, r.logger).Info("project exported", logging.String("path", path))
	return SaveResult{Destination: DestinationDownload, Location: path}, nil
}

// Import reads a single manifest file.
func (r *Router) Import(ctx context.Context, path string) (project.State, error) {
	var state project.State
	err := r.lock.Do("import", func() error {
		r.io.Lock()
		defer r.io.Unlock()
		var err error
		state, err = manifest.ReadFile(path)
		return err
	})
	if err != nil {
		return project.State{}, err
	}
	logging.WithContext(ctx, r.logger).Info("project imported", logging.String("path", path))
	return state, nil
}

// OpenLocal grants dir as the local destination and loads the first
// manifest in it. The boolean is false when the folder is empty; the folder
// stays granted either way.
func (r *Router) OpenLocal(ctx context.Context, dir string) (project.State, bool, error) {
	if r.local == nil {
		return project.State{}, false, unsupported("open local", DestinationLocal)
	}
	var (
		state project.State
		found bool
	)
	err := r.lock.Do("open local", func() error {
		r.io.Lock()
		defer r.io.Unlock()
		if err := r.local.Grant(ctx, dir); err != nil {
			return err
		}
		var err error
		state, found, err = r.local.LoadManifest(ctx)
		return err
	})
	if err != nil {
		return project.State{}, false, err
	}
	return state, found, nil
}

// ListCloud lists saved projects in the cloud folder, logging in first when
// needed.
func (r *Router) ListCloud(ctx context.Context) ([]CloudFile, error) {
	if r.cloud == nil {
		return nil, unsupported("list cloud", DestinationCloud)
	}
	var files []CloudFile
	err := r.lock.Do("list cloud", func() error {
		r.io.Lock()
		defer r.io.Unlock()
		if err := r.ensureCloudSession(ctx); err != nil {
			return err
		}
		var err error
		files, err = r.cloud.List(ctx)
		return err
	})
	return files, err
}

// LoadCloud fetches one cloud project by file ID.
func (r *Router) LoadCloud(ctx context.Context, id string) (project.State, error) {
	if r.cloud == nil {
		return project.State{}, unsupported("load cloud", DestinationCloud)
	}
	if strings.TrimSpace(id) == "" {
		return project.State{}, services.Wrap(services.ErrMissingInput, "persistence", "load cloud", "file id is required", nil)
	}
	var state project.State
	err := r.lock.Do("load cloud", func() error {
		r.io.Lock()
		defer r.io.Unlock()
		if err := r.ensureCloudSession(ctx); err != nil {
			return err
		}
		var err error
		state, err = r.cloud.Load(ctx, id)
		return err
	})
	if err != nil {
		return project.State{}, err
	}
	logging.WithContext(ctx, r.logger).Info("cloud project loaded", logging.String("file_id", id))
	return state, nil
}

// SaveBatch persists a remaster batch into the granted local folder and
// records it. It returns services.ErrNoDestination when no folder is
// granted so the sequencer can skip persistence silently.
func (r *Router) SaveBatch(ctx context.Context, source string, panels []string) (remaster.SavedBatch, error) {
	if r.local == nil || !r.local.Granted() {
		return remaster.SavedBatch{}, services.Wrap(services.ErrNoDestination, "persistence", "save batch", "no local folder granted", nil)
	}
	r.io.Lock()
	batch, err := r.local.SaveBatch(ctx, source, panels)
	r.io.Unlock()
	if err != nil {
		return remaster.SavedBatch{}, err
	}
	if r.recorder != nil {
		if err := r.recorder.RecordBatch(ctx, batch); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "batch catalog update failed", "catalog_record_failed",
				logging.String(logging.FieldBatchID, batch.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "batch is saved on disk but missing from the catalog"),
			)
		}
	}
	return batch, nil
}

// SaveUserImage writes an editor render into the granted local folder. Like
// SaveBatch it returns services.ErrNoDestination when no folder is granted.
func (r *Router) SaveUserImage(ctx context.Context, image string) (string, error) {
	if r.local == nil || !r.local.Granted() {
		return "", services.Wrap(services.ErrNoDestination, "persistence", "save user image", "no local folder granted", nil)
	}
	r.io.Lock()
	defer r.io.Unlock()
	return r.local.SaveUserImage(ctx, image)
}

func (r *Router) save(ctx context.Context, state project.State, dest Destination, interactive bool) (SaveResult, error) {
	r.io.Lock()
	defer r.io.Unlock()

	switch dest {
	case DestinationLocal:
		if r.local == nil {
			return SaveResult{}, unsupported("save", dest)
		}
		if !r.local.Granted() {
			if !interactive || r.picker == nil {
				return SaveResult{}, services.Wrap(services.ErrNoDestination, "persistence", "save", "no local folder granted", nil)
			}
			dir, err := r.picker.PickFolder(ctx)
			if err != nil {
				return SaveResult{}, err
			}
			if err := r.local.Grant(ctx, dir); err != nil {
				return SaveResult{}, err
			}
		}
		path, err := r.local.SaveManifest(ctx, state)
		if err != nil {
			return SaveResult{}, err
		}
		return SaveResult{Destination: dest, Location: path}, nil

	case DestinationCloud:
		if r.cloud == nil {
			return SaveResult{}, unsupported("save", dest)
		}
		if interactive {
			if err := r.ensureCloudSession(ctx); err != nil {
				return SaveResult{}, err
			}
		} else if !r.cloud.Authenticated() {
			return SaveResult{}, services.Wrap(services.ErrLoginRequired, "persistence", "autosave", "no cloud session", nil)
		}
		file, err := r.cloud.Save(ctx, state, manifest.CloudFileName(state, r.now()))
		if err != nil {
			return SaveResult{}, err
		}
		return SaveResult{Destination: dest, Location: file.ID}, nil

	case DestinationDownload:
		if !interactive {
			return SaveResult{}, unsupported("autosave", dest)
		}
		if strings.TrimSpace(r.downloadDir) == "" {
			return SaveResult{}, services.Wrap(services.ErrNoDestination, "persistence", "save", "no download directory configured", nil)
		}
		path := filepath.Join(r.downloadDir, manifest.FileName(state))
		if err := manifest.WriteFile(path, state); err != nil {
			return SaveResult{}, err
		}
		return SaveResult{Destination: dest, Location: path}, nil

	default:
		return SaveResult{}, services.Wrap(services.ErrNoDestination, "persistence", "save", "choose a destination first", nil)
	}
}

func (r *Router) ensureCloudSession(ctx context.Context) error {
	if r.cloud.Authenticated() {
		return nil
	}
	if err := r.cloud.Login(ctx); err != nil {
		if errors.Is(err, services.ErrPersistence) {
			return err
		}
		return services.Wrap(services.ErrLoginRequired, "persistence", "login", "cloud sign-in failed", err)
	}
	return nil
}

func unsupported(op string, dest Destination) error {
	return services.Wrap(services.ErrUnsupported, "persistence", op, fmt.Sprintf("%s destination is not available", dest), nil)
}
