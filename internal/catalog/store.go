package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bozzyboy/nano-director-5/internal/remaster"
)

const batchColumns = "id, project, folder, source_path, panel_paths_json, panel_count, created_at"

// Batch is one cataloged remaster batch.
type Batch struct {
	ID         string    `json:"id"`
	Project    string    `json:"project"`
	Folder     string    `json:"folder"`
	SourcePath string    `json:"sourcePath"`
	PanelPaths []string  `json:"panelPaths"`
	PanelCount int       `json:"panelCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store is the SQLite-backed batch catalog.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the catalog at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("catalog path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RecordBatch inserts a persisted batch. Recording the same ID twice
// replaces the earlier row.
func (s *Store) RecordBatch(ctx context.Context, batch remaster.SavedBatch) error {
	if strings.TrimSpace(batch.ID) == "" {
		return errors.New("batch id is required")
	}
	paths := batch.PanelPaths
	if paths == nil {
		paths = []string{}
	}
	pathsJSON, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("marshal panel paths: %w", err)
	}
	created := batch.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO batches (`+batchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		batch.ID,
		batch.Project,
		batch.Folder,
		batch.SourcePath,
		string(pathsJSON),
		len(paths),
		created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// Get returns one batch, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Batch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = ?`, id)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

// List returns batches newest first. An empty project lists every project;
// a non-positive limit lists everything.
func (s *Store) List(ctx context.Context, project string, limit int) ([]Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches`
	var args []any
	if project = strings.TrimSpace(project); project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, *batch)
	}
	return out, rows.Err()
}

// Remove deletes a batch row. Files on disk are left alone.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func scanBatch(scanner interface{ Scan(dest ...any) error }) (*Batch, error) {
	var (
		batch      Batch
		pathsJSON  string
		createdRaw string
	)
	if err := scanner.Scan(
		&batch.ID,
		&batch.Project,
		&batch.Folder,
		&batch.SourcePath,
		&pathsJSON,
		&batch.PanelCount,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pathsJSON), &batch.PanelPaths); err != nil {
		return nil, fmt.Errorf("decode panel paths: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		batch.CreatedAt = ts
	}
	return &batch, nil
}
