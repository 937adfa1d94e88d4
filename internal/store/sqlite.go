package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fin-harvest/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	companies  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS fragments (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	company     TEXT NOT NULL,
	source      TEXT NOT NULL,
	category    TEXT NOT NULL,
	url         TEXT NOT NULL,
	text        TEXT NOT NULL,
	percentage  REAL,
	amount      TEXT,
	captured_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_fragments_run_id ON fragments(run_id);
CREATE INDEX IF NOT EXISTS idx_fragments_company_category ON fragments(company, category);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, id string, companies []string) (*model.Run, error) {
	now := time.Now().UTC()

	companiesJSON, err := json.Marshal(companies)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal companies")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, companies, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(companiesJSON), string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Companies: companies,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status model.RunStatus, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", id)
	}
	return checkRowsAffected(res, "run", id)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, companies, status, summary, created_at, updated_at FROM runs WHERE id = ?`,
		id,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, companies, status, summary, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveResults writes every fragment of agg in one transaction.
func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, agg *model.Aggregate) (int, error) {
	frags := Flatten(runID, agg)
	if len(frags) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fragments (run_id, company, source, category, url, text, percentage, amount, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare fragment insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, f := range frags {
		if _, err := stmt.ExecContext(ctx,
			f.RunID, f.Company, f.Source, string(f.Category), f.URL, f.Text,
			f.Percentage, f.Amount, f.CapturedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert fragment for %s", f.Company)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit fragments")
	}
	return len(frags), nil
}

// helpers

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var companiesJSON string
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &companiesJSON, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := decodeRun(&r, []byte(companiesJSON), summaryJSON.Valid, []byte(summaryJSON.String)); err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeRun(r *model.Run, companiesJSON []byte, hasSummary bool, summaryJSON []byte) error {
	if err := json.Unmarshal(companiesJSON, &r.Companies); err != nil {
		return eris.Wrap(err, "unmarshal companies")
	}
	if hasSummary && string(summaryJSON) != "null" {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
			return eris.Wrap(err, "unmarshal summary")
		}
	}
	return nil
}
