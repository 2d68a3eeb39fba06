package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scores (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	word       TEXT NOT NULL,
	score      INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS scores_word ON scores(word);

CREATE TABLE IF NOT EXISTS incorrect_guesses (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	guessed    TEXT NOT NULL,
	target     TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS incorrect_guesses_target ON incorrect_guesses(target);
`

// timeLayout sorts lexically in time order, which Cleanup relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ScoreRecord is one recorded win.
type ScoreRecord struct {
	Word      string
	Score     int
	CreatedAt time.Time
}

// GuessRecord is one guess rejected as an unknown word.
type GuessRecord struct {
	Guessed   string
	Target    string
	CreatedAt time.Time
}

// SQLite is a KeyValue plus score and incorrect-guess sinks in one database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Cleanup deletes keys not written within maxAge.
func (s *SQLite) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge).UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RecordScore stores a winning score for word.
func (s *SQLite) RecordScore(ctx context.Context, score int, word string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (word, score, created_at) VALUES (?, ?, ?)`,
		word, score, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

// LogIncorrectGuess stores a rejected guess against the day's word.
func (s *SQLite) LogIncorrectGuess(ctx context.Context, guessed, target string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO incorrect_guesses (guessed, target, created_at) VALUES (?, ?, ?)`,
		guessed, target, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("log incorrect guess: %w", err)
	}
	return nil
}

// Scores returns the scores recorded for word, oldest first.
func (s *SQLite) Scores(ctx context.Context, word string) ([]ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT word, score, created_at FROM scores WHERE word = ? ORDER BY id`, word)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var out []ScoreRecord
	for rows.Next() {
		var rec ScoreRecord
		var created string
		if err := rows.Scan(&rec.Word, &rec.Score, &created); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// IncorrectGuesses returns the guesses rejected while target was the word.
func (s *SQLite) IncorrectGuesses(ctx context.Context, target string) ([]GuessRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guessed, target, created_at FROM incorrect_guesses WHERE target = ? ORDER BY id`, target)
	if err != nil {
		return nil, fmt.Errorf("query incorrect guesses: %w", err)
	}
	defer rows.Close()

	var out []GuessRecord
	for rows.Next() {
		var rec GuessRecord
		var created string
		if err := rows.Scan(&rec.Guessed, &rec.Target, &created); err != nil {
			return nil, fmt.Errorf("scan incorrect guess: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}
