package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bozzyboy/nano-director-5/internal/autosave"
	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/persistence"
	"github.com/bozzyboy/nano-director-5/internal/persistence/localstore"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/remaster"
	"github.com/bozzyboy/nano-director-5/internal/testsupport"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	server   *Server
	director *director.Orchestrator
	fake     *testsupport.FakeCollaborator
	download string
}

func newTestEnv(t *testing.T, cfg Config, routerOpts ...persistence.Option) *testEnv {
	t.Helper()
	fake := &testsupport.FakeCollaborator{}
	noDelay := func(context.Context, time.Duration) error { return nil }
	orch := director.New(fake, director.Options{RemasterOptions: []remaster.Option{remaster.WithSleeper(noDelay)}})
	download := t.TempDir()
	routerOpts = append([]persistence.Option{persistence.WithDownloadDir(download)}, routerOpts...)

	cfg.Director = orch
	cfg.Router = persistence.NewRouter(nil, routerOpts...)
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(srv.Stop)
	return &testEnv{server: srv, director: orch, fake: fake, download: download}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestPipelineOverHTTP(t *testing.T) {
	env := newTestEnv(t, Config{})

	if w := env.do(t, http.MethodPut, "/api/project/idea", IdeaRequest{Idea: "detective in rain"}); w.Code != http.StatusOK {
		t.Fatalf("idea: status %d body %s", w.Code, w.Body)
	}
	grid, count := 2, 2
	if w := env.do(t, http.MethodPut, "/api/project/settings", SettingsRequest{GridSize: &grid, CandidateCount: &count}); w.Code != http.StatusOK {
		t.Fatalf("settings: status %d body %s", w.Code, w.Body)
	}

	w := env.do(t, http.MethodPost, "/api/generate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("generate: status %d body %s", w.Code, w.Body)
	}
	resp := decode[ProjectResponse](t, w)
	if len(resp.Project.GridCandidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(resp.Project.GridCandidates))
	}
	if resp.Status.Display != director.PromptSelect {
		t.Fatalf("expected select prompt, got %s", resp.Status.Display)
	}

	if w := env.do(t, http.MethodPost, "/api/select/0", nil); w.Code != http.StatusOK {
		t.Fatalf("select: status %d body %s", w.Code, w.Body)
	}
	w = env.do(t, http.MethodPost, "/api/direct", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("direct: status %d body %s", w.Code, w.Body)
	}
	result := decode[director.DirectResult](t, w)
	if len(result.Panels) != 4 || len(result.Failed) != 0 {
		t.Fatalf("unexpected direct result: %d panels, failed %v", len(result.Panels), result.Failed)
	}

	history := decode[[]HistoryEntry](t, env.do(t, http.MethodGet, "/api/history", nil))
	if len(history) != 1 || history[0].Panels != 4 || history[0].ID != result.HistoryID {
		t.Fatalf("unexpected history: %+v", history)
	}

	w = env.do(t, http.MethodGet, "/api/panels/0/prompt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("prompt: status %d body %s", w.Code, w.Body)
	}
	transfer := decode[director.EditorTransfer](t, w)
	if transfer.Prompt == "" || len(transfer.RefImages) == 0 {
		t.Fatalf("unexpected transfer: %+v", transfer)
	}

	w = env.do(t, http.MethodPost, "/api/history/"+result.HistoryID+"/restore", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restore: status %d body %s", w.Code, w.Body)
	}
}

func TestEditorRender(t *testing.T) {
	env := newTestEnv(t, Config{})

	if w := env.do(t, http.MethodPost, "/api/editor/render", EditRequest{Prompt: " "}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank prompt, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/editor/render", EditRequest{Prompt: "p", CameraShots: []string{"spinning"}}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown camera shot, got %d", w.Code)
	}
	if env.fake.Calls("render") != 0 {
		t.Fatalf("rejected requests reached the provider")
	}

	w := env.do(t, http.MethodPost, "/api/editor/render", EditRequest{
		Prompt:      "a lighthouse at dusk",
		RefImages:   []string{"ref"},
		CameraShots: []string{"dutch angle"},
		AspectRatio: "21:9",
		Resolution:  "1k",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("render: status %d body %s", w.Code, w.Body)
	}
	result := decode[director.EditResult](t, w)
	if result.Image == "" || result.Prompt != "a lighthouse at dusk" || result.Saved != "" {
		t.Fatalf("unexpected render result: %+v", result)
	}
	req := env.fake.LastReferenceRequest()
	if req.AspectRatio != project.AspectCinematic || req.Resolution != project.Resolution1K || len(req.CameraShots) != 1 || req.CameraShots[0] != "DUTCH_ANGLE" {
		t.Fatalf("request not forwarded: %+v", req)
	}
}

func TestSettingsRejectsWholeRequestOnInvalidField(t *testing.T) {
	env := newTestEnv(t, Config{})
	grid, count := 9, 4
	w := env.do(t, http.MethodPut, "/api/project/settings", SettingsRequest{GridSize: &grid, CandidateCount: &count})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if kind := decode[ErrorResponse](t, w).Kind; kind != "validation" {
		t.Fatalf("expected validation kind, got %q", kind)
	}
	if got := env.director.Snapshot().CandidateCount; got != 2 {
		t.Fatalf("candidate count should be untouched, got %d", got)
	}

	shots := []string{"close-up", "not-a-shot"}
	if w := env.do(t, http.MethodPut, "/api/project/settings", SettingsRequest{CameraShots: &shots}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown camera shot, got %d", w.Code)
	}
}

func TestStyleSwitchesBetweenAppendAndOverride(t *testing.T) {
	env := newTestEnv(t, Config{})
	appendText, empty, override := "grainy", "", "pastel"

	if w := env.do(t, http.MethodPut, "/api/project/style", StyleRequest{CustomAppend: &appendText}); w.Code != http.StatusOK {
		t.Fatalf("append: status %d body %s", w.Code, w.Body)
	}
	if w := env.do(t, http.MethodPut, "/api/project/style", StyleRequest{CustomOverride: &override}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected conflict rejection, got %d", w.Code)
	}
	w := env.do(t, http.MethodPut, "/api/project/style", StyleRequest{CustomAppend: &empty, CustomOverride: &override})
	if w.Code != http.StatusOK {
		t.Fatalf("switch: status %d body %s", w.Code, w.Body)
	}
	prefs := decode[ProjectResponse](t, w).Project.StylePrefs
	if prefs.CustomAppend != "" || prefs.CustomOverride != "pastel" {
		t.Fatalf("unexpected style prefs: %+v", prefs)
	}

	mode := "noir"
	w = env.do(t, http.MethodPut, "/api/project/style", StyleRequest{Mode: &mode})
	if got := decode[ProjectResponse](t, w).Project.StylePrefs.Mode; got != project.StyleNoir {
		t.Fatalf("expected NOIR, got %s", got)
	}
}

func TestDirectWithoutSelectionIsValidationError(t *testing.T) {
	env := newTestEnv(t, Config{})
	w := env.do(t, http.MethodPost, "/api/direct", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/select/x", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric index, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/history/missing/restore", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown history id, got %d", w.Code)
	}
}

func TestSaveDestinations(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodPut, "/api/project/idea", IdeaRequest{Idea: "lighthouse"})

	w := env.do(t, http.MethodPost, "/api/save", SaveRequest{Destination: "download"})
	if w.Code != http.StatusOK {
		t.Fatalf("download save: status %d body %s", w.Code, w.Body)
	}
	result := decode[persistence.SaveResult](t, w)
	if filepath.Dir(result.Location) != env.download {
		t.Fatalf("expected file in download dir, got %q", result.Location)
	}
	if _, err := os.Stat(result.Location); err != nil {
		t.Fatalf("saved manifest missing: %v", err)
	}

	if w := env.do(t, http.MethodPost, "/api/save", SaveRequest{Destination: "cloud"}); w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a cloud store, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/save", SaveRequest{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without destination, got %d", w.Code)
	}
}

func TestExportThenImportRestoresState(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodPut, "/api/project/idea", IdeaRequest{Idea: "orbital garden"})
	path := filepath.Join(t.TempDir(), "garden.yaml")

	if w := env.do(t, http.MethodPost, "/api/export", PathRequest{Path: path}); w.Code != http.StatusOK {
		t.Fatalf("export: status %d body %s", w.Code, w.Body)
	}
	env.do(t, http.MethodPut, "/api/project/idea", IdeaRequest{Idea: "something else"})

	w := env.do(t, http.MethodPost, "/api/load/import", PathRequest{Path: path})
	if w.Code != http.StatusOK {
		t.Fatalf("import: status %d body %s", w.Code, w.Body)
	}
	if got := decode[ProjectResponse](t, w).Project.StoryIdea; got != "orbital garden" {
		t.Fatalf("expected imported idea, got %q", got)
	}

	if w := env.do(t, http.MethodPost, "/api/load/import", PathRequest{Path: filepath.Join(t.TempDir(), "missing.json")}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing import, got %d", w.Code)
	}
}

func TestLoadLocalGrantsFolderAndFeedsAutosave(t *testing.T) {
	saved := make(chan autosave.Outcome, 1)
	env := newTestEnv(t, Config{}, persistence.WithLocal(localstore.New(nil)))
	coord := autosave.New(env.server.router, nil,
		autosave.WithQuietPeriod(time.Hour),
		autosave.WithOutcome(func(o autosave.Outcome) { saved <- o }),
	)
	env.server.autosave = coord
	t.Cleanup(coord.Stop)

	folder := t.TempDir()
	if w := env.do(t, http.MethodPost, "/api/load/local", PathRequest{Path: folder}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty folder, got %d body %s", w.Code, w.Body)
	}
	if coord.Destination() != persistence.DestinationLocal {
		t.Fatalf("expected autosave destination local, got %q", coord.Destination())
	}

	env.do(t, http.MethodPut, "/api/project/idea", IdeaRequest{Idea: "paper boats"})
	coord.Flush()
	outcome := <-saved
	if outcome.Err != nil || !outcome.Saved {
		t.Fatalf("expected autosave to succeed, got %+v", outcome)
	}

	matches, err := filepath.Glob(filepath.Join(folder, "*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one manifest in folder, got %v (%v)", matches, err)
	}

	w := env.do(t, http.MethodPost, "/api/load/local", PathRequest{Path: folder})
	if w.Code != http.StatusOK {
		t.Fatalf("reload: status %d body %s", w.Code, w.Body)
	}
	if got := decode[ProjectResponse](t, w).Project.StoryIdea; got != "paper boats" {
		t.Fatalf("expected reloaded idea, got %q", got)
	}
}

func TestLogsTailAndFilter(t *testing.T) {
	hub := logging.NewStreamHub(16)
	env := newTestEnv(t, Config{Logs: hub})
	hub.Publish(logging.LogEvent{Level: "INFO", Message: "one", Component: "director"})
	hub.Publish(logging.LogEvent{Level: "INFO", Message: "two", Component: "autosave"})
	hub.Publish(logging.LogEvent{Level: "WARN", Message: "three", Component: "director"})

	resp := decode[LogStreamResponse](t, env.do(t, http.MethodGet, "/api/logs?tail=1&limit=2", nil))
	if len(resp.Events) != 2 || resp.Events[1].Message != "three" || resp.Next != 3 {
		t.Fatalf("unexpected tail: %+v", resp)
	}

	resp = decode[LogStreamResponse](t, env.do(t, http.MethodGet, "/api/logs?since=0&component=director", nil))
	if len(resp.Events) != 2 {
		t.Fatalf("expected 2 director events, got %+v", resp.Events)
	}

	resp = decode[LogStreamResponse](t, env.do(t, http.MethodGet, "/api/logs?since=3", nil))
	if len(resp.Events) != 0 {
		t.Fatalf("expected no events after cursor, got %+v", resp.Events)
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, Config{})
	w := env.do(t, http.MethodGet, "/api/project", nil)
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/project", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
}

func TestEventsWebsocket(t *testing.T) {
	env := newTestEnv(t, Config{})
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello StreamMessage
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Event == nil || hello.Event.Phase != director.PhaseIdle {
		t.Fatalf("unexpected hello frame: %+v", hello)
	}

	if err := env.director.SetIdea("storm over the harbor"); err != nil {
		t.Fatal(err)
	}
	var next StreamMessage
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if next.Type != "event" || next.Event == nil || next.Event.Type != director.EventStateChanged {
		t.Fatalf("expected state change frame, got %+v", next)
	}
}
