package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/autosave"
	"github.com/bozzyboy/nano-director-5/internal/catalog"
	"github.com/bozzyboy/nano-director-5/internal/config"
	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/generation"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/notifications"
	"github.com/bozzyboy/nano-director-5/internal/persistence"
	"github.com/bozzyboy/nano-director-5/internal/persistence/drive"
	"github.com/bozzyboy/nano-director-5/internal/persistence/localstore"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/remaster"
	"github.com/bozzyboy/nano-director-5/internal/services"
	"github.com/bozzyboy/nano-director-5/internal/services/claude"
	"github.com/bozzyboy/nano-director-5/internal/services/gemini"
	"github.com/bozzyboy/nano-director-5/internal/textutil"
	"github.com/bozzyboy/nano-director-5/internal/workspace"
)

type appOptions struct {
	// folder overrides where an explicit local save creates the project
	// folder when none is granted yet.
	folder string
	// collaborator replaces the provider-backed generation service.
	collaborator generation.Collaborator
	// serverFeedsAutosave leaves autosave notifications to the API server.
	serverFeedsAutosave bool
}

// app is the per-invocation project stack.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	director  *director.Orchestrator
	router    *persistence.Router
	local     *localstore.Store
	cloud     *drive.Store
	catalog   *catalog.Store
	workspace *workspace.Store
	autosave  *autosave.Coordinator
	notifier  *milestoneNotifier

	file        workspace.File
	folder      string
	dirty       atomic.Bool
	detached    bool
	unsubscribe func()
}

func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	a := &app{
		cfg:       cfg,
		logger:    logger,
		workspace: workspace.New(cfg.WorkspacePath(), logger),
		folder:    strings.TrimSpace(opts.folder),
	}

	file, found, err := a.workspace.Load()
	if err != nil {
		return nil, err
	}
	a.file = file

	a.catalog, err = catalog.Open(cfg.CatalogPath())
	if err != nil {
		return nil, fmt.Errorf("open batch catalog: %w", err)
	}

	a.local = localstore.New(logger)
	if folder := strings.TrimSpace(file.LocalFolder); folder != "" {
		if err := a.local.Grant(ctx, folder); err != nil {
			logging.WarnWithContext(logger, "project folder no longer usable", "folder_grant_failed",
				logging.String("folder", folder),
				logging.Error(err),
				logging.String(logging.FieldImpact, "local autosave is paused"),
				logging.String(logging.FieldErrorHint, "run director save --to local --folder <dir>"),
			)
		}
	}

	session := drive.NewSession(cfg.Drive.ClientID)
	a.cloud = drive.New(
		drive.Config{BaseURL: cfg.Drive.BaseURL, FolderName: cfg.Drive.FolderName},
		session,
		drive.WithTokenSource(drive.StaticToken(cfg.Drive.AccessToken)),
		drive.WithLogger(logger),
	)

	routerOpts := []persistence.Option{
		persistence.WithLocal(a.local),
		persistence.WithCloud(a.cloud),
		persistence.WithFolderPicker(a),
		persistence.WithBatchRecorder(a.catalog),
	}
	if cwd, err := os.Getwd(); err == nil {
		routerOpts = append(routerOpts, persistence.WithDownloadDir(cwd))
	}
	a.router = persistence.NewRouter(logger, routerOpts...)

	gen := opts.collaborator
	if gen == nil {
		gen, err = newCollaborator(ctx, cfg, logger)
		if err != nil {
			a.catalog.Close()
			return nil, err
		}
	}

	dirOpts := director.Options{
		Logger: logger,
		RemasterOptions: []remaster.Option{
			remaster.WithDelay(time.Duration(cfg.Pipeline.RemasterDelayMS) * time.Millisecond),
			remaster.WithBatchSaver(a.router),
		},
		MaxEditorRefs: cfg.Pipeline.MaxEditorRefs,
		UserImages:    a.router,
	}
	if found {
		wc := file.WorkingCopy
		dirOpts.Initial = &wc
	}
	a.director = director.New(gen, dirOpts)

	dest := persistence.Destination(file.Destination)
	if dest == persistence.DestinationNone {
		dest = persistence.Destination(cfg.Autosave.Destination)
	}
	a.autosave = autosave.New(a.router, logger,
		autosave.WithQuietPeriod(time.Duration(cfg.Autosave.QuietPeriodSeconds)*time.Second),
		autosave.WithDestination(dest),
		autosave.WithDestinationRequest(func(project.State) {
			logger.Info("changes are not being saved; choose a destination with director save --to local|cloud")
		}),
	)
	a.autosave.SetEnabled(cfg.Autosave.Enabled)

	a.notifier = newMilestoneNotifier(
		notifications.NewService(cfg.Notifications),
		time.Duration(cfg.Notifications.RequestTimeout)*time.Second,
		func() string { return a.director.Snapshot().ProjectName },
		logger,
	)
	a.unsubscribe = a.director.Subscribe(func(evt director.Event) {
		a.notifier.observe(evt)
		if evt.Type != director.EventStateChanged {
			return
		}
		a.dirty.Store(true)
		if !opts.serverFeedsAutosave {
			a.autosave.Notify(a.director.Snapshot())
		}
	})
	return a, nil
}

// newCollaborator wires Gemini for images and either Gemini or Claude for
// text.
func newCollaborator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (generation.Collaborator, error) {
	client := gemini.NewClient(gemini.Config{
		APIKey:         cfg.Gemini.APIKey,
		BaseURL:        cfg.Gemini.BaseURL,
		TimeoutSeconds: cfg.Gemini.TimeoutSeconds,
	})
	var text generation.TextModel = gemini.NewTextModel(client, cfg.Gemini.TextModel)
	if cfg.Anthropic.Enabled {
		model, err := claude.NewTextModel(ctx, claude.Config{
			Model:      cfg.Anthropic.Model,
			APIKey:     cfg.Anthropic.APIKey,
			UseBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:  cfg.Anthropic.AWSRegion,
			AWSProfile: cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			return nil, err
		}
		text = model
	}
	image := gemini.NewImageModel(client, cfg.Gemini.ImageModel)
	return generation.NewService(text, image, logger,
		generation.WithCandidateDelay(time.Duration(cfg.Pipeline.CandidateDelayMS)*time.Millisecond),
		generation.WithExtractMaxDimension(cfg.Pipeline.ExtractMaxDimension),
	), nil
}

// PickFolder implements persistence.FolderPicker for explicit local saves:
// the --folder flag, else a folder named after the project under the
// configured projects directory.
func (a *app) PickFolder(context.Context) (string, error) {
	if a.folder != "" {
		return config.ExpandPath(a.folder)
	}
	if strings.TrimSpace(a.cfg.Paths.ProjectsDir) == "" {
		return "", services.Wrap(services.ErrNoDestination, "persistence", "pick folder", "no --folder given and paths.projects_dir is empty", nil)
	}
	name := textutil.FileNameOr(a.director.Snapshot().ProjectName, "Untitled")
	return filepath.Join(a.cfg.Paths.ProjectsDir, name), nil
}

// touch marks the working copy for writing even without a state change.
func (a *app) touch() {
	a.dirty.Store(true)
}

// adoptDestination makes dest the autosave target.
func (a *app) adoptDestination(dest persistence.Destination) {
	if dest.Autosavable() {
		a.autosave.SetDestination(dest)
		a.touch()
	}
}

// detach stops saving to the current folder or cloud session. The next
// explicit save chooses a destination again.
func (a *app) detach() {
	a.autosave.SetDestination(persistence.DestinationNone)
	a.detached = true
	a.touch()
}

// close flushes pending autosave work and writes the working copy.
func (a *app) close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.autosave.Flush()
	a.autosave.Stop()
	a.notifier.wait()

	var errs []error
	if a.dirty.Load() {
		a.file.WorkingCopy = a.director.WorkingCopy()
		a.file.Destination = string(a.autosave.Destination())
		a.file.LocalFolder = a.local.Root()
		if a.detached {
			a.file.LocalFolder = ""
		}
		if err := a.workspace.Save(a.file); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.catalog.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
