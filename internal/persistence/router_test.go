package persistence_test

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/persistence"
	"github.com/bozzyboy/nano-director-5/internal/persistence/localstore"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/remaster"
	"github.com/bozzyboy/nano-director-5/internal/services"
	"github.com/bozzyboy/nano-director-5/internal/testsupport"
)

type fakeCloud struct {
	mu       sync.Mutex
	session  bool
	loginErr error
	logins   int
	saved    []string
	files    map[string]project.State

	active    atomic.Int32
	maxActive atomic.Int32
	delay     time.Duration
}

func (f *fakeCloud) enter() func() {
	n := f.active.Add(1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.active.Add(-1) }
}

func (f *fakeCloud) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeCloud) Login(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.loginErr != nil {
		return f.loginErr
	}
	f.session = true
	return nil
}

func (f *fakeCloud) Save(_ context.Context, state project.State, name string) (persistence.CloudFile, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, name)
	id := name + "#" + strconv.Itoa(len(f.saved))
	if f.files == nil {
		f.files = make(map[string]project.State)
	}
	f.files[id] = state
	return persistence.CloudFile{ID: id, Name: name}, nil
}

func (f *fakeCloud) List(context.Context) ([]persistence.CloudFile, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]persistence.CloudFile, 0, len(f.files))
	for id := range f.files {
		out = append(out, persistence.CloudFile{ID: id})
	}
	return out, nil
}

func (f *fakeCloud) Load(_ context.Context, id string) (project.State, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.files[id]
	if !ok {
		return project.State{}, services.Wrap(services.ErrNotFound, "fake", "load", id, nil)
	}
	return st, nil
}

type staticPicker struct {
	dir   string
	err   error
	calls int
}

func (p *staticPicker) PickFolder(context.Context) (string, error) {
	p.calls++
	return p.dir, p.err
}

type recorder struct {
	batches []remaster.SavedBatch
	err     error
}

func (r *recorder) RecordBatch(_ context.Context, b remaster.SavedBatch) error {
	r.batches = append(r.batches, b)
	return r.err
}

func namedState(name string) project.State {
	st := project.New()
	st.ProjectName = name
	st.StoryIdea = "idea"
	return st
}

func TestExplicitLocalSavePromptsForFolderOnce(t *testing.T) {
	dir := t.TempDir()
	picker := &staticPicker{dir: dir}
	router := persistence.NewRouter(nil,
		persistence.WithLocal(localstore.New(nil)),
		persistence.WithFolderPicker(picker),
	)
	ctx := context.Background()

	res, err := router.Save(ctx, namedState("Rain"), persistence.DestinationLocal)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if res.Location != filepath.Join(dir, "Rain.json") {
		t.Fatalf("unexpected location %q", res.Location)
	}
	if _, err := router.Save(ctx, namedState("Rain"), persistence.DestinationLocal); err != nil {
		t.Fatal(err)
	}
	if picker.calls != 1 {
		t.Fatalf("expected one folder prompt, got %d", picker.calls)
	}
	if router.Busy() {
		t.Fatal("lock should be released after save")
	}
}

func TestAutosaveLocalWithoutFolderIsNoDestination(t *testing.T) {
	picker := &staticPicker{dir: t.TempDir()}
	router := persistence.NewRouter(nil,
		persistence.WithLocal(localstore.New(nil)),
		persistence.WithFolderPicker(picker),
	)
	_, err := router.Autosave(context.Background(), namedState("x"), persistence.DestinationLocal)
	if !errors.Is(err, services.ErrNoDestination) {
		t.Fatalf("expected no destination, got %v", err)
	}
	if picker.calls != 0 {
		t.Fatal("autosave must never prompt for a folder")
	}
}

func TestCloudSaveLogsInAndAlwaysCreatesNewFile(t *testing.T) {
	cloud := &fakeCloud{}
	router := persistence.NewRouter(nil,
		persistence.WithCloud(cloud),
		persistence.WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
	ctx := context.Background()

	if _, err := router.Autosave(ctx, namedState("Rain"), persistence.DestinationCloud); !errors.Is(err, services.ErrLoginRequired) {
		t.Fatalf("autosave without session should need login, got %v", err)
	}
	if cloud.logins != 0 {
		t.Fatal("autosave must not log in")
	}

	first, err := router.Save(ctx, namedState("Rain"), persistence.DestinationCloud)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	second, err := router.Save(ctx, namedState("Rain"), persistence.DestinationCloud)
	if err != nil {
		t.Fatal(err)
	}
	if cloud.logins != 1 {
		t.Fatalf("expected a single login, got %d", cloud.logins)
	}
	if first.Location == second.Location || len(cloud.saved) != 2 {
		t.Fatalf("cloud saves should create distinct files: %v", cloud.saved)
	}

	if _, err := router.Save(ctx, namedState(""), persistence.DestinationCloud); err != nil {
		t.Fatal(err)
	}
	if got := cloud.saved[2]; got != "NanoProject - 2026-01-02T03:04:05Z.json" {
		t.Fatalf("unexpected unnamed cloud file %q", got)
	}
}

func TestCloudLoginFailureSurfaces(t *testing.T) {
	cloud := &fakeCloud{loginErr: errors.New("popup closed")}
	router := persistence.NewRouter(nil, persistence.WithCloud(cloud))
	_, err := router.ListCloud(context.Background())
	if !errors.Is(err, services.ErrLoginRequired) {
		t.Fatalf("expected login required, got %v", err)
	}
	if router.Busy() {
		t.Fatal("lock should be released after failure")
	}
}

func TestListAndLoadCloud(t *testing.T) {
	cloud := &fakeCloud{session: true}
	router := persistence.NewRouter(nil, persistence.WithCloud(cloud))
	ctx := context.Background()
	res, err := router.Save(ctx, namedState("Rain"), persistence.DestinationCloud)
	if err != nil {
		t.Fatal(err)
	}
	files, err := router.ListCloud(ctx)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListCloud: %v %v", files, err)
	}
	st, err := router.LoadCloud(ctx, res.Location)
	if err != nil {
		t.Fatal(err)
	}
	if st.ProjectName != "Rain" {
		t.Fatalf("unexpected state %+v", st)
	}
	if _, err := router.LoadCloud(ctx, ""); !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
}

func TestExportImportAndDownload(t *testing.T) {
	dir := t.TempDir()
	router := persistence.NewRouter(nil, persistence.WithDownloadDir(dir))
	ctx := context.Background()

	path := filepath.Join(dir, "out.yaml")
	if _, err := router.Export(ctx, namedState("Rain"), path); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	st, err := router.Import(ctx, path)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if st.ProjectName != "Rain" {
		t.Fatalf("unexpected import %+v", st)
	}

	res, err := router.Save(ctx, namedState("Rain"), persistence.DestinationDownload)
	if err != nil {
		t.Fatal(err)
	}
	if res.Location != filepath.Join(dir, "Rain.json") {
		t.Fatalf("unexpected download location %q", res.Location)
	}
	if _, err := router.Autosave(ctx, namedState("Rain"), persistence.DestinationDownload); !errors.Is(err, services.ErrUnsupported) {
		t.Fatalf("download must never autosave, got %v", err)
	}
}

func TestOpenLocalGrantsAndLoads(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "p.json"), []byte(`{"storyIdea":"loaded"}`))
	local := localstore.New(nil)
	router := persistence.NewRouter(nil, persistence.WithLocal(local))

	st, found, err := router.OpenLocal(context.Background(), dir)
	if err != nil || !found {
		t.Fatalf("OpenLocal: found=%v err=%v", found, err)
	}
	if st.StoryIdea != "loaded" || !local.Granted() || !router.Ready(persistence.DestinationLocal) {
		t.Fatalf("unexpected result %+v granted=%v", st, local.Granted())
	}
}

func TestForegroundActionsRejectWhileLockHeld(t *testing.T) {
	router := persistence.NewRouter(nil, persistence.WithCloud(&fakeCloud{session: true}))
	if !router.Lock().TryAcquire() {
		t.Fatal("lock should start free")
	}
	defer router.Lock().Release()

	if _, err := router.Save(context.Background(), namedState("x"), persistence.DestinationCloud); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy, got %v", err)
	}
	if _, err := router.Autosave(context.Background(), namedState("x"), persistence.DestinationCloud); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("autosave should skip while locked, got %v", err)
	}
}

func TestOperationLockReleasesOnPanic(t *testing.T) {
	var lock persistence.OperationLock
	func() {
		defer func() { _ = recover() }()
		_ = lock.Do("boom", func() error { panic("boom") })
	}()
	if lock.Held() {
		t.Fatal("lock should be released after panic")
	}
}

func TestPersistenceCallsNeverOverlap(t *testing.T) {
	cloud := &fakeCloud{session: true, delay: 2 * time.Millisecond}
	router := persistence.NewRouter(nil, persistence.WithCloud(cloud))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_, _ = router.Save(ctx, namedState("a"), persistence.DestinationCloud)
			case 1:
				_, _ = router.Autosave(ctx, namedState("b"), persistence.DestinationCloud)
			default:
				_, _ = router.ListCloud(ctx)
			}
		}(i)
	}
	wg.Wait()
	if got := cloud.maxActive.Load(); got != 1 {
		t.Fatalf("expected at most one concurrent storage call, saw %d", got)
	}
}

func TestSaveBatchRecordsIntoCatalog(t *testing.T) {
	local := localstore.New(nil)
	rec := &recorder{err: errors.New("db locked")}
	router := persistence.NewRouter(nil, persistence.WithLocal(local), persistence.WithBatchRecorder(rec))
	ctx := context.Background()

	if _, err := router.SaveBatch(ctx, "x", nil); !errors.Is(err, services.ErrNoDestination) {
		t.Fatalf("expected no destination, got %v", err)
	}
	if err := local.Grant(ctx, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	batch, err := router.SaveBatch(ctx, testsupport.CompositeBase64(t, 16, 16, 2), []string{testsupport.SolidBase64(t, 4, 4, testsupport.CellColor(0))})
	if err != nil {
		t.Fatalf("catalog failure should not fail the save: %v", err)
	}
	if len(rec.batches) != 1 || rec.batches[0].ID != batch.ID {
		t.Fatalf("batch not recorded: %+v", rec.batches)
	}
}

func TestSaveUserImageNeedsGrantedFolder(t *testing.T) {
	local := localstore.New(nil)
	router := persistence.NewRouter(nil, persistence.WithLocal(local))
	ctx := context.Background()
	render := testsupport.SolidBase64(t, 4, 4, testsupport.CellColor(1))

	if _, err := router.SaveUserImage(ctx, render); !errors.Is(err, services.ErrNoDestination) {
		t.Fatalf("expected no destination, got %v", err)
	}
	root := t.TempDir()
	if err := local.Grant(ctx, root); err != nil {
		t.Fatal(err)
	}
	path, err := router.SaveUserImage(ctx, render)
	if err != nil {
		t.Fatalf("SaveUserImage returned error: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, "user_generated") {
		t.Fatalf("render saved outside user_generated: %q", path)
	}
}
