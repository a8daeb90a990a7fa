package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/persistence"
	"github.com/bozzyboy/nano-director-5/internal/persistence/manifest"
	"github.com/bozzyboy/nano-director-5/internal/project"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

const (
	defaultBaseURL     = "https://www.googleapis.com"
	defaultFolderName  = "Nano Director Projects"
	defaultHTTPTimeout = 60 * time.Second
	folderMimeType     = "application/vnd.google-apps.folder"
	manifestMimeType   = "application/json"
	stageName          = "drive"
)

// Config captures the Drive endpoint and folder settings.
type Config struct {
	BaseURL    string
	FolderName string
}

// Store saves and loads project manifests in one Drive folder.
type Store struct {
	cfg        Config
	session    *Session
	source     TokenSource
	httpClient *http.Client
	logger     *slog.Logger

	mu       sync.Mutex
	folderID string
}

// Option customizes the store.
type Option func(*Store)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithTokenSource sets how Login obtains a token.
func WithTokenSource(source TokenSource) Option {
	return func(s *Store) { s.source = source }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logging.NewComponentLogger(logger, "drive") }
}

// New constructs a store around session.
func New(cfg Config, session *Session, opts ...Option) *Store {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.FolderName) == "" {
		cfg.FolderName = defaultFolderName
	}
	if session == nil {
		session = NewSession("")
	}
	s := &Store{
		cfg:        cfg,
		session:    session,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ persistence.CloudStore = (*Store)(nil)

// Session returns the store's session.
func (s *Store) Session() *Session {
	return s.session
}

// Authenticated reports whether the session holds a valid token.
func (s *Store) Authenticated() bool {
	return s.session.Active()
}

// Login obtains a token from the configured source.
func (s *Store) Login(ctx context.Context) error {
	if s.source == nil {
		return services.Wrap(services.ErrLoginRequired, stageName, "login", "no sign-in method configured", nil)
	}
	token, ttl, err := s.source.Token(ctx)
	if err != nil {
		return err
	}
	s.session.Authorize(token, ttl)
	logging.WithContext(ctx, s.logger).Info("drive session started", logging.Duration("ttl", ttl))
	return nil
}

// Verify confirms the session token is accepted by Drive.
func (s *Store) Verify(ctx context.Context) error {
	return s.do(ctx, "verify", http.MethodGet, s.cfg.BaseURL+"/drive/v3/about?fields=user", "", nil, nil)
}

// Save uploads state as a new file named name.
func (s *Store) Save(ctx context.Context, state project.State, name string) (persistence.CloudFile, error) {
	folderID, err := s.folder(ctx)
	if err != nil {
		return persistence.CloudFile{}, err
	}
	body, err := manifest.Encode(state, manifest.FormatJSON)
	if err != nil {
		return persistence.CloudFile{}, err
	}
	meta := fileMetadata{Name: name, MimeType: manifestMimeType, Parents: []string{folderID}}
	payload, contentType, err := multipartBody(meta, body)
	if err != nil {
		return persistence.CloudFile{}, services.Wrap(services.ErrPersistence, stageName, "save", "build upload body", err)
	}

	var created driveFile
	endpoint := s.cfg.BaseURL + "/upload/drive/v3/files?uploadType=multipart&fields=id,name,modifiedTime"
	if err := s.do(ctx, "save", http.MethodPost, endpoint, contentType, payload, &created); err != nil {
		return persistence.CloudFile{}, err
	}
	logging.WithContext(ctx, s.logger).Info("project uploaded",
		logging.String("file_id", created.ID),
		logging.String("name", created.Name),
	)
	return created.cloudFile(), nil
}

// List returns the JSON files in the project folder, newest first.
func (s *Store) List(ctx context.Context) ([]persistence.CloudFile, error) {
	folderID, err := s.folder(ctx)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("'%s' in parents and mimeType='%s' and trashed=false", escapeQuery(folderID), manifestMimeType)
	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id,name,modifiedTime)")
	params.Set("orderBy", "modifiedTime desc")

	var listing fileList
	if err := s.do(ctx, "list", http.MethodGet, s.cfg.BaseURL+"/drive/v3/files?"+params.Encode(), "", nil, &listing); err != nil {
		return nil, err
	}
	out := make([]persistence.CloudFile, 0, len(listing.Files))
	for _, f := range listing.Files {
		out = append(out, f.cloudFile())
	}
	return out, nil
}

// Load downloads and decodes one file.
func (s *Store) Load(ctx context.Context, id string) (project.State, error) {
	if _, ok := s.session.Token(); !ok {
		return project.State{}, services.Wrap(services.ErrLoginRequired, stageName, "load", "no active session", nil)
	}
	var raw json.RawMessage
	endpoint := s.cfg.BaseURL + "/drive/v3/files/" + url.PathEscape(id) + "?alt=media"
	if err := s.do(ctx, "load", http.MethodGet, endpoint, "", nil, &raw); err != nil {
		return project.State{}, err
	}
	return manifest.Decode(raw, manifest.FormatJSON)
}

// folder finds or creates the project folder and remembers its ID.
func (s *Store) folder(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.folderID
	s.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	query := fmt.Sprintf("mimeType='%s' and name='%s' and trashed=false", folderMimeType, escapeQuery(s.cfg.FolderName))
	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id,name)")
	var listing fileList
	if err := s.do(ctx, "find folder", http.MethodGet, s.cfg.BaseURL+"/drive/v3/files?"+params.Encode(), "", nil, &listing); err != nil {
		return "", err
	}

	id := ""
	if len(listing.Files) > 0 {
		id = listing.Files[0].ID
	} else {
		body, err := json.Marshal(fileMetadata{Name: s.cfg.FolderName, MimeType: folderMimeType})
		if err != nil {
			return "", services.Wrap(services.ErrPersistence, stageName, "create folder", "encode folder metadata", err)
		}
		var created driveFile
		if err := s.do(ctx, "create folder", http.MethodPost, s.cfg.BaseURL+"/drive/v3/files", "application/json", body, &created); err != nil {
			return "", err
		}
		id = created.ID
		logging.WithContext(ctx, s.logger).Info("drive folder created", logging.String("folder", s.cfg.FolderName))
	}
	if id == "" {
		return "", services.Wrap(services.ErrPersistence, stageName, "find folder", "folder response missing id", nil)
	}

	s.mu.Lock()
	s.folderID = id
	s.mu.Unlock()
	return id, nil
}

func (s *Store) do(ctx context.Context, op, method, endpoint, contentType string, body []byte, out any) error {
	token, ok := s.session.Token()
	if !ok {
		return services.Wrap(services.ErrLoginRequired, stageName, op, "no active session", nil)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return services.Wrap(services.ErrPersistence, stageName, op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrPersistence, stageName, op, "drive unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return services.Wrap(services.ErrPersistence, stageName, op, "read response", err)
	}
	if resp.StatusCode >= 300 {
		return s.statusError(op, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if raw, isRaw := out.(*json.RawMessage); isRaw {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return services.Wrap(services.ErrPersistence, stageName, op, "decode response", err)
	}
	return nil
}

func (s *Store) statusError(op string, status int, body []byte) error {
	msg := fmt.Sprintf("drive returned %d", status)
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg += ": " + apiErr.Error.Message
	}
	switch {
	case status == http.StatusUnauthorized:
		s.session.Clear()
		return services.Wrap(services.ErrLoginRequired, stageName, op, msg, nil)
	case status == http.StatusForbidden:
		return services.Wrap(services.ErrAccessDenied, stageName, op, msg, nil)
	case status == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, stageName, op, msg, nil)
	default:
		return services.Wrap(services.ErrPersistence, stageName, op, msg, nil)
	}
}

type fileMetadata struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents,omitempty"`
}

type driveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ModifiedTime string `json:"modifiedTime"`
}

func (f driveFile) cloudFile() persistence.CloudFile {
	out := persistence.CloudFile{ID: f.ID, Name: f.Name}
	if ts, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		out.Modified = ts
	}
	return out
}

type fileList struct {
	Files []driveFile `json:"files"`
}

func multipartBody(meta fileMetadata, content []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, "", err
	}
	if err := json.NewEncoder(part).Encode(meta); err != nil {
		return nil, "", err
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", meta.MimeType)
	part, err = writer.CreatePart(mediaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "multipart/related; boundary=" + writer.Boundary(), nil
}

func escapeQuery(value string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
}
