// Package sqlite keeps versioned snapshots of trained classifier models in
// a SQLite database.
package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/hickeroar/textbayes/bayes"
	"github.com/hickeroar/textbayes/bayes/category"
)

// ErrSnapshotNotFound is returned when a requested snapshot does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store persists classifier snapshots.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// Info describes a stored snapshot.
type Info struct {
	ID         string
	CreatedAt  time.Time
	Categories int
	Documents  int
}

// Open opens (or creates) a snapshot database with WAL mode enabled.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// pragmas apply per connection
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	version INTEGER NOT NULL,
	uneven INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS snapshot_categories (
	snapshot_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	tally INTEGER NOT NULL,
	documents INTEGER NOT NULL,
	PRIMARY KEY(snapshot_id, name),
	FOREIGN KEY(snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS snapshot_words (
	snapshot_id TEXT NOT NULL,
	category TEXT NOT NULL,
	word TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY(snapshot_id, category, word),
	FOREIGN KEY(snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) newID() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String(), now
}

// Save writes model as a new snapshot and returns its ID.
func (s *Store) Save(ctx context.Context, model bayes.Model) (string, error) {
	id, createdAt := s.newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, created_at, version, uneven) VALUES (?, ?, ?, ?)`,
		id, createdAt.Format(time.RFC3339Nano), model.Version, model.Uneven,
	); err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}

	catStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_categories (snapshot_id, position, name, tally, documents) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare categories: %w", err)
	}
	defer catStmt.Close()

	wordStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_words (snapshot_id, category, word, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare words: %w", err)
	}
	defer wordStmt.Close()

	for position, cat := range model.Categories {
		if _, err := catStmt.ExecContext(ctx, id, position, cat.Name, cat.Tally, cat.Documents); err != nil {
			return "", fmt.Errorf("insert category %q: %w", cat.Name, err)
		}
		for word, count := range cat.Tokens {
			if _, err := wordStmt.ExecContext(ctx, id, cat.Name, word, count); err != nil {
				return "", fmt.Errorf("insert word %q for %q: %w", word, cat.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit snapshot: %w", err)
	}

	return id, nil
}

// Load returns the model stored under id.
func (s *Store) Load(ctx context.Context, id string) (bayes.Model, error) {
	var model bayes.Model
	err := s.db.QueryRowContext(ctx,
		`SELECT version, uneven FROM snapshots WHERE id = ?`, id,
	).Scan(&model.Version, &model.Uneven)
	if errors.Is(err, sql.ErrNoRows) {
		return bayes.Model{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return bayes.Model{}, fmt.Errorf("load snapshot: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, tally, documents FROM snapshot_categories WHERE snapshot_id = ? ORDER BY position`, id)
	if err != nil {
		return bayes.Model{}, fmt.Errorf("load categories: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		cat := category.PersistedCategory{Tokens: make(map[string]int)}
		if err := rows.Scan(&cat.Name, &cat.Tally, &cat.Documents); err != nil {
			rows.Close()
			return bayes.Model{}, fmt.Errorf("scan category: %w", err)
		}
		index[cat.Name] = len(model.Categories)
		model.Categories = append(model.Categories, cat)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return bayes.Model{}, fmt.Errorf("iterate categories: %w", err)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT category, word, count FROM snapshot_words WHERE snapshot_id = ?`, id)
	if err != nil {
		return bayes.Model{}, fmt.Errorf("load words: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, word string
		var count int
		if err := rows.Scan(&name, &word, &count); err != nil {
			return bayes.Model{}, fmt.Errorf("scan word: %w", err)
		}
		i, ok := index[name]
		if !ok {
			return bayes.Model{}, fmt.Errorf("word %q references unknown category %q", word, name)
		}
		model.Categories[i].Tokens[word] = count
	}
	if err := rows.Err(); err != nil {
		return bayes.Model{}, fmt.Errorf("iterate words: %w", err)
	}

	return model, nil
}

// Latest returns the most recent snapshot and its ID.
func (s *Store) Latest(ctx context.Context) (string, bayes.Model, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", bayes.Model{}, ErrSnapshotNotFound
	}
	if err != nil {
		return "", bayes.Model{}, fmt.Errorf("find latest snapshot: %w", err)
	}

	model, err := s.Load(ctx, id)
	if err != nil {
		return "", bayes.Model{}, err
	}
	return id, model, nil
}

// List returns snapshot metadata, newest first.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.id, s.created_at, COUNT(c.name), COALESCE(SUM(c.documents), 0)
FROM snapshots s
LEFT JOIN snapshot_categories c ON c.snapshot_id = s.id
GROUP BY s.id
ORDER BY s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		var createdAt string
		if err := rows.Scan(&info.ID, &createdAt, &info.Categories, &info.Documents); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		info.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", info.ID, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes a snapshot and its rows.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return nil
}
