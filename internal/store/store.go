// Package store records harvest runs and their fragments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/fin-harvest/internal/config"
	"github.com/sells-group/fin-harvest/internal/model"
	"github.com/sells-group/fin-harvest/internal/quantity"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for harvest runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, id string, companies []string) (*model.Run, error)
	CompleteRun(ctx context.Context, id string, status model.RunStatus, summary *model.RunSummary) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Fragments
	SaveResults(ctx context.Context, runID string, agg *model.Aggregate) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg.Driver. The "none" driver yields
// a nil Store.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// Fragment is one cleaned text fragment with the quantities parsed from it.
type Fragment struct {
	RunID      string
	Company    string
	Source     string
	Category   model.Category
	URL        string
	Text       string
	Percentage *float64
	Amount     decimal.NullDecimal
	CapturedAt time.Time
}

// Flatten expands an aggregate into one Fragment per text fragment, in
// category order then append order.
func Flatten(runID string, agg *model.Aggregate) []Fragment {
	var out []Fragment
	for _, c := range model.AllCategories() {
		for _, r := range agg.Results(c) {
			for _, text := range r.TextData {
				f := Fragment{
					RunID:      runID,
					Company:    r.Company,
					Source:     r.Source,
					Category:   c,
					URL:        r.URL,
					Text:       text,
					CapturedAt: r.Timestamp.UTC(),
				}
				if pct, ok := quantity.ExtractPercentage(text); ok {
					f.Percentage = &pct
				}
				if amt, ok := quantity.ExtractAmount(text); ok {
					f.Amount = decimal.NullDecimal{Decimal: amt, Valid: true}
				}
				out = append(out, f)
			}
		}
	}
	return out
}
