package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/fin-harvest/internal/db"
	"github.com/sells-group/fin-harvest/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	companies  JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fragments (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	company     TEXT NOT NULL,
	source      TEXT NOT NULL,
	category    TEXT NOT NULL,
	url         TEXT NOT NULL,
	text        TEXT NOT NULL,
	percentage  DOUBLE PRECISION,
	amount      NUMERIC,
	captured_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_fragments_run_id ON fragments(run_id);
CREATE INDEX IF NOT EXISTS idx_fragments_company_category ON fragments(company, category);
`

var fragmentColumns = []string{
	"run_id", "company", "source", "category", "url", "text", "percentage", "amount", "captured_at",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, id string, companies []string) (*model.Run, error) {
	now := time.Now().UTC()

	companiesJSON, err := json.Marshal(companies)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal companies")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, companies, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, companiesJSON, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Companies: companies,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, id string, status model.RunStatus, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, companies, status, summary, created_at, updated_at FROM runs WHERE id = $1`,
		id,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: get run: run not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, companies, status, summary, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveResults bulk-loads every fragment of agg with COPY.
func (s *PostgresStore) SaveResults(ctx context.Context, runID string, agg *model.Aggregate) (int, error) {
	frags := Flatten(runID, agg)
	rows := make([][]any, 0, len(frags))
	for _, f := range frags {
		rows = append(rows, []any{
			f.RunID, f.Company, f.Source, string(f.Category), f.URL, f.Text,
			f.Percentage, numeric(f.Amount), f.CapturedAt,
		})
	}

	n, err := db.CopyRows(ctx, s.pool, "fragments", fragmentColumns, rows)
	if err != nil {
		return int(n), eris.Wrap(err, "postgres: save results")
	}
	return int(n), nil
}

// numeric converts a decimal to the pgx NUMERIC representation without
// going through float64.
func numeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: d.Decimal.Coefficient(), Exp: d.Decimal.Exponent(), Valid: true}
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var companiesJSON []byte
	var summaryJSON []byte
	var status string

	if err := row.Scan(&r.ID, &companiesJSON, &status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)

	if err := decodeRun(&r, companiesJSON, summaryJSON != nil, summaryJSON); err != nil {
		return nil, err
	}
	return &r, nil
}
