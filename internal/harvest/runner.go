// Package harvest drives a run: one browsing context per company, every
// configured site per company, every category per discovered link.
package harvest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fin-harvest/internal/model"
	"github.com/sells-group/fin-harvest/internal/render"
)

// LaunchFunc starts the rendering engine for a run.
type LaunchFunc func(ctx context.Context) (render.Engine, error)

// Runner is the top-level run loop.
type Runner struct {
	opts   Options
	launch LaunchFunc
	orch   *Orchestrator
	pacer  Pacer
}

// NewRunner creates a Runner.
func NewRunner(opts Options, launch LaunchFunc, nav Navigator, pacer Pacer) *Runner {
	if opts.MaxConcurrentCompanies <= 0 {
		opts.MaxConcurrentCompanies = 1
	}
	return &Runner{
		opts:   opts,
		launch: launch,
		orch:   NewOrchestrator(opts, nav, pacer),
		pacer:  pacer,
	}
}

// Run processes companies in order and returns the run's aggregate. The
// engine is closed and every context released on all paths. When ctx is
// cancelled the companies finished so far stay in the aggregate and the
// cancellation error is returned alongside it.
func (r *Runner) Run(ctx context.Context, rc *model.RunContext, companies []string) (*model.Aggregate, error) {
	engine, err := r.launch(ctx)
	if err != nil {
		return rc.Aggregate, eris.Wrap(err, "harvest: launch engine")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			zap.L().Warn("close engine failed", zap.Error(err))
		}
	}()

	g := new(errgroup.Group)
	g.SetLimit(r.opts.MaxConcurrentCompanies)
	for i, company := range companies {
		if ctx.Err() != nil {
			break
		}
		last := i == len(companies)-1
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r.processCompany(ctx, engine, rc, company)
			if !last {
				// Cancellation surfaces through ctx.Err below.
				_ = r.pacer.Pause(ctx, r.opts.CompanyDelay)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return rc.Aggregate, eris.Wrap(err, "harvest: run interrupted")
	}
	return rc.Aggregate, nil
}

func (r *Runner) processCompany(ctx context.Context, engine render.Engine, rc *model.RunContext, company string) {
	start := time.Now()
	log := zap.L().With(zap.String("company", company), zap.String("run_id", rc.ID))

	bctx, err := engine.NewContext(ctx, r.opts.Context)
	if err != nil {
		log.Error("open browsing context failed", zap.Error(err))
		return
	}
	defer func() {
		if err := bctx.Close(); err != nil {
			log.Warn("close browsing context failed", zap.Error(err))
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			log.Error("company processing panicked", zap.Any("panic", p))
		}
	}()

	log.Info("processing company")
	results := r.orch.ProcessCompany(ctx, bctx, rc, company)
	log.Info("company complete",
		zap.Int("records", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
