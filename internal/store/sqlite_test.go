package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fin-harvest/internal/config"
	"github.com/sells-group/fin-harvest/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleAggregate() *model.Aggregate {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	agg := model.NewAggregate()
	agg.Append(model.CategoryCapex, model.CompanyCategoryResult{
		Company: "TCS",
		Source:  "screener",
		ExtractionRecord: model.ExtractionRecord{
			URL:       "https://www.screener.in/company/TCS/",
			Timestamp: ts,
			TextData:  model.Fragments{"Capex of ₹500 crore planned", "Investment pipeline remains strong"},
		},
	})
	agg.Append(model.CategoryGrowthRate, model.CompanyCategoryResult{
		Company: "HDFC Bank",
		Source:  "tickertape",
		ExtractionRecord: model.ExtractionRecord{
			URL:       "https://www.tickertape.in/stocks/hdfc",
			Timestamp: ts,
			TextData:  model.Fragments{"Loan growth of 15.5% YoY"},
		},
	})
	return agg
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "run-1", []string{"TCS", "HDFC Bank"})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"TCS", "HDFC Bank"}, got.Companies)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Summary)

	summary := &model.RunSummary{
		Records:     map[model.Category]int{model.CategoryCapex: 1},
		VisitedURLs: 4,
		DurationMs:  1200,
	}
	require.NoError(t, st.CompleteRun(ctx, "run-1", model.RunStatusComplete, summary))

	got, err = st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 4, got.Summary.VisitedURLs)
	assert.Equal(t, 1, got.Summary.Records[model.CategoryCapex])
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.CompleteRun(context.Background(), "missing", model.RunStatusFailed, &model.RunSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := st.CreateRun(ctx, id, []string{"TCS"})
		require.NoError(t, err)
	}
	require.NoError(t, st.CompleteRun(ctx, "b", model.RunStatusFailed, &model.RunSummary{Error: "interrupted"}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ID)
	assert.Equal(t, "interrupted", failed[0].Summary.Error)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	offset, err := st.ListRuns(ctx, RunFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, offset, 1)
}

func TestSQLite_SaveResults(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateRun(ctx, "run-1", []string{"TCS", "HDFC Bank"})
	require.NoError(t, err)

	n, err := st.SaveResults(ctx, "run-1", sampleAggregate())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := st.db.QueryContext(ctx,
		`SELECT company, category, text, percentage, amount FROM fragments WHERE run_id = ? ORDER BY id`, "run-1")
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck

	type frag struct {
		company, category, text string
		pct                     *float64
		amount                  *string
	}
	var got []frag
	for rows.Next() {
		var f frag
		require.NoError(t, rows.Scan(&f.company, &f.category, &f.text, &f.pct, &f.amount))
		got = append(got, f)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 3)

	// Categories are flattened in fixed order: growth_rate before capex.
	assert.Equal(t, "HDFC Bank", got[0].company)
	assert.Equal(t, "growth_rate", got[0].category)
	require.NotNil(t, got[0].pct)
	assert.InDelta(t, 15.5, *got[0].pct, 1e-9)

	assert.Equal(t, "capex", got[1].category)
	assert.Nil(t, got[1].pct)
	require.NotNil(t, got[1].amount)
	assert.Equal(t, "5000000000", *got[1].amount)

	assert.Equal(t, "Investment pipeline remains strong", got[2].text)
	assert.Nil(t, got[2].amount)
}

func TestSQLite_SaveResults_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.SaveResults(context.Background(), "run-1", model.NewAggregate())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, config.StoreConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = Open(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.NoError(t, st.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func TestFlatten(t *testing.T) {
	frags := Flatten("run-1", sampleAggregate())
	require.Len(t, frags, 3)
	assert.Equal(t, "run-1", frags[0].RunID)
	assert.Equal(t, model.CategoryGrowthRate, frags[0].Category)
	require.NotNil(t, frags[0].Percentage)
	assert.InDelta(t, 15.5, *frags[0].Percentage, 1e-9)
	assert.True(t, frags[1].Amount.Valid)
	assert.Equal(t, "5000000000", frags[1].Amount.Decimal.String())
}
