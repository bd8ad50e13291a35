// Package sqliterepo keeps decision records in a local SQLite file.
package sqliterepo

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"npcgateway/internal/app/ports"
	"npcgateway/internal/domain/decision"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decision_records (
		id             TEXT PRIMARY KEY,
		requester_id   TEXT NOT NULL,
		requester_name TEXT NOT NULL DEFAULT '',
		decided_at     TEXT NOT NULL,
		scene_report   TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		content        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decision_records_decided ON decision_records(decided_at DESC, id DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Append(ctx context.Context, record ports.DecisionRecord) (string, error) {
	id := s.newID()
	content := string(record.Content)
	if content == "" {
		content = "null"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decision_records (id, requester_id, requester_name, decided_at, scene_report, status, content)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, record.RequesterID, record.RequesterName, formatTime(record.Timestamp),
		record.SceneReport, string(record.Status), content)
	if err != nil {
		return "", fmt.Errorf("insert decision record: %w", err)
	}
	return id, nil
}

func (s *Store) QueryRecent(ctx context.Context, limit int) ([]ports.DecisionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, requester_id, requester_name, decided_at, scene_report, status, content
		 FROM decision_records ORDER BY decided_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query decision records: %v", ports.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []ports.DecisionRecord
	for rows.Next() {
		var (
			r                 ports.DecisionRecord
			decidedAt, status string
			content           string
		)
		if err := rows.Scan(&r.ID, &r.RequesterID, &r.RequesterName, &decidedAt, &r.SceneReport, &status, &content); err != nil {
			return nil, fmt.Errorf("scan decision record: %w", err)
		}
		r.Timestamp, _ = time.Parse(timeLayout, decidedAt)
		r.Status = decision.Status(status)
		r.Content = []byte(content)
		out = append(out, r)
	}
	return out, rows.Err()
}

// fixed width so lexical order matches chronological order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}
