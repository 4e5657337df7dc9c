package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Run is one completed repository analysis.
type Run struct {
	ID         string       `json:"id"`
	RepoURL    string       `json:"repo_url"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Tasks      []TaskResult `json:"tasks"`
}

// TaskResult is the persisted terminal state of one analysis stage.
type TaskResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Store persists completed runs. With a Postgres DSN it writes to the runs
// table and caches reads; otherwise it keeps a JSON file on disk.
type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	byID     map[string]Run

	schemaOnce sync.Once
	schemaErr  error

	cache *lru.Cache[string, Run]
}

func New(path string) *Store {
	return &Store{path: path, byID: make(map[string]Run)}
}

func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, Run](256)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

// NewFromEnv prefers Postgres when RUN_STORE_PG_DSN is set and falls back to
// the JSON file at path.
func NewFromEnv(path string) *Store {
	dsn := strings.TrimSpace(os.Getenv("RUN_STORE_PG_DSN"))
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(path)
	}
	return s
}

func (s *Store) Save(ctx context.Context, run Run) error {
	if s == nil {
		return nil
	}
	run.ID = strings.TrimSpace(run.ID)
	if run.ID == "" {
		return fmt.Errorf("runstore: run id is required")
	}
	if s.db != nil {
		return s.saveDB(ctx, run)
	}
	s.saveFileBacked(run)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (Run, bool) {
	if s == nil {
		return Run{}, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, false
	}
	if s.db != nil {
		return s.getDB(ctx, id)
	}
	return s.getFileBacked(id)
}

// --- Postgres backend ---

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	repo_url    TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	tasks       JSONB NOT NULL
)`)
	})
	return s.schemaErr
}

func (s *Store) saveDB(ctx context.Context, run Run) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	tasks, err := json.Marshal(run.Tasks)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, repo_url, started_at, finished_at, tasks)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	repo_url = EXCLUDED.repo_url,
	started_at = EXCLUDED.started_at,
	finished_at = EXCLUDED.finished_at,
	tasks = EXCLUDED.tasks`,
		run.ID, run.RepoURL, run.StartedAt, run.FinishedAt, tasks)
	if err == nil && s.cache != nil {
		s.cache.Remove(run.ID)
	}
	return err
}

func (s *Store) getDB(ctx context.Context, id string) (Run, bool) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(id); ok {
			return cached, true
		}
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Run{}, false
	}
	var run Run
	var tasks []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, repo_url, started_at, finished_at, tasks FROM runs WHERE id = $1`, id).
		Scan(&run.ID, &run.RepoURL, &run.StartedAt, &run.FinishedAt, &tasks)
	if err != nil {
		return Run{}, false
	}
	if err := json.Unmarshal(tasks, &run.Tasks); err != nil {
		return Run{}, false
	}
	if s.cache != nil {
		s.cache.Add(id, run)
	}
	return run, true
}

// --- JSON file backend ---

func (s *Store) ensureLoaded() {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows []Run
		if err := json.Unmarshal(b, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			if strings.TrimSpace(row.ID) == "" {
				continue
			}
			s.byID[row.ID] = row
		}
	})
}

func (s *Store) saveFileBacked(run Run) {
	s.ensureLoaded()
	s.mu.Lock()
	s.byID[run.ID] = run
	rows := make([]Run, 0, len(s.byID))
	for _, r := range s.byID {
		rows = append(rows, r)
	}
	s.mu.Unlock()

	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(s.path), 0o755)
	_ = os.WriteFile(s.path, b, 0o644)
}

func (s *Store) getFileBacked(id string) (Run, bool) {
	s.ensureLoaded()
	s.mu.RLock()
	run, ok := s.byID[id]
	s.mu.RUnlock()
	return run, ok
}
