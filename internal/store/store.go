// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists search runs and their matches in SQLite so the
// output of repeated runs against a non-deterministic server can be compared.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/fhir-names/internal/search"
	"github.com/pdiddy/fhir-names/pkg/types"
)

// Store manages the match database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at cfg.Path and creates the schema
// if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path is empty")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			base_url TEXT,
			terms TEXT NOT NULL,
			page_limit INTEGER NOT NULL,
			no_cache INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			term TEXT NOT NULL,
			page INTEGER NOT NULL,
			patient_id TEXT,
			family TEXT,
			given TEXT,
			birth_date TEXT,
			matched INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_term ON matches(term)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RunInfo describes a run being recorded.
type RunInfo struct {
	ID        string
	StartedAt time.Time
	BaseURL   string
	Terms     []string
	PageLimit int
	NoCache   bool
}

// BeginRun records a new run and returns its id.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	termsJSON, err := json.Marshal(info.Terms)
	if err != nil {
		return "", fmt.Errorf("encoding terms: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, base_url, terms, page_limit, no_cache) VALUES (?, ?, ?, ?, ?, ?)`,
		info.ID, info.StartedAt.UTC().Format(time.RFC3339Nano), info.BaseURL, string(termsJSON),
		info.PageLimit, boolToInt(info.NoCache),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return info.ID, nil
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, base_url, terms, page_limit, no_cache FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			r         RunInfo
			startedAt string
			baseURL   sql.NullString
			terms     string
			noCache   int
		)
		if err := rows.Scan(&r.ID, &startedAt, &baseURL, &terms, &r.PageLimit, &noCache); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(terms), &r.Terms); err != nil {
			return nil, fmt.Errorf("run %s terms: %w", r.ID, err)
		}
		r.BaseURL = baseURL.String
		r.NoCache = noCache != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// StoredMatch is one persisted match.
type StoredMatch struct {
	Seq       int
	Term      string
	Page      int
	PatientID string
	Family    string
	Given     string
	BirthDate string
	Matched   bool
}

// Sink returns a search.Sink that appends each match to runID in order.
func (s *Store) Sink(ctx context.Context, runID string) search.Sink {
	seq := 0
	return search.SinkFunc(func(m search.Match) error {
		seq++
		var family, given, bd string
		if m.Name != nil {
			family = m.Name.Family
			given = strings.Join(m.Name.Given, " ")
		}
		if m.BirthDate != nil {
			bd = m.BirthDate.String()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO matches (run_id, seq, term, page, patient_id, family, given, birth_date, matched)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, seq, m.Term, m.Page, m.Patient.ID, family, given, bd, boolToInt(m.Name != nil),
		)
		if err != nil {
			return fmt.Errorf("storing match %d of run %s: %w", seq, runID, err)
		}
		return nil
	})
}

// Matches returns the matches of runID in the order they were printed.
func (s *Store) Matches(ctx context.Context, runID string) ([]StoredMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, term, page, patient_id, family, given, birth_date, matched
		 FROM matches WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var out []StoredMatch
	for rows.Next() {
		var (
			m                                  StoredMatch
			patientID, family, given, birthDay sql.NullString
			matched                            int
		)
		if err := rows.Scan(&m.Seq, &m.Term, &m.Page, &patientID, &family, &given, &birthDay, &matched); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m.PatientID = patientID.String
		m.Family = family.String
		m.Given = given.String
		m.BirthDate = birthDay.String
		m.Matched = matched != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountsByTerm returns the number of stored matches per term for runID.
func (s *Store) CountsByTerm(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT term, count(*) FROM matches WHERE run_id = ? GROUP BY term`, runID)
	if err != nil {
		return nil, fmt.Errorf("counting matches: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var term string
		var n int
		if err := rows.Scan(&term, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[term] = n
	}
	return counts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
