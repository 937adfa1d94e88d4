package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fin-harvest/internal/fetch"
	"github.com/sells-group/fin-harvest/internal/harvest"
	"github.com/sells-group/fin-harvest/internal/model"
	"github.com/sells-group/fin-harvest/internal/output"
	"github.com/sells-group/fin-harvest/internal/render"
	"github.com/sells-group/fin-harvest/internal/store"
)

var (
	harvestFile   string
	harvestOutput string
)

var harvestCmd = &cobra.Command{
	Use:   "harvest [company...]",
	Short: "Harvest financial statements for companies",
	Long:  "Visits every configured site for each company, extracts categorized statements, writes per-company JSON and CSV files, and records the run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		companies, err := resolveCompanies(args, harvestFile, cfg.Harvest.Companies)
		if err != nil {
			return err
		}

		outDir := cfg.Output.Dir
		if harvestOutput != "" {
			outDir = harvestOutput
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		env := harvestEnv{
			Options: harvest.OptionsFrom(cfg),
			Launch: func(ctx context.Context) (render.Engine, error) {
				return render.Launch(ctx, cfg.Browser)
			},
			Nav:    fetch.New(fetch.OptionsFrom(cfg.Fetch)),
			Pacer:  harvest.RandomPacer{},
			Store:  st,
			Writer: output.NewWriter(cfg.Output.Formats),
		}

		summary, runErr := executeHarvest(ctx, env, uuid.New().String(), companies, outDir)
		if summary != nil {
			formatSummary(os.Stdout, summary)
		}
		return runErr
	},
}

func init() {
	harvestCmd.Flags().StringVar(&harvestFile, "file", "", "companies file (.txt, .csv or .yaml)")
	harvestCmd.Flags().StringVar(&harvestOutput, "output", "", "output directory (default from output.dir)")
	rootCmd.AddCommand(harvestCmd)
}

// harvestEnv bundles the collaborators of one harvest run.
type harvestEnv struct {
	Options harvest.Options
	Launch  harvest.LaunchFunc
	Nav     harvest.Navigator
	Pacer   harvest.Pacer
	Store   store.Store // may be nil
	Writer  *output.Writer
}

// executeHarvest runs the harvest, then always writes whatever was
// collected and records the run. The returned error is the run error, if
// any, or the first persistence error.
func executeHarvest(ctx context.Context, env harvestEnv, runID string, companies []string, outDir string) (*model.RunSummary, error) {
	start := time.Now()
	log := zap.L().With(zap.String("run_id", runID))
	rc := model.NewRunContext(runID)

	// The run is recorded and its results persisted even when ctx is
	// cancelled.
	saveCtx := context.WithoutCancel(ctx)

	if env.Store != nil {
		if _, err := env.Store.CreateRun(saveCtx, runID, companies); err != nil {
			return nil, eris.Wrap(err, "record run")
		}
	}

	log.Info("harvest started", zap.Strings("companies", companies), zap.Int("sites", len(env.Options.Sites)))
	runner := harvest.NewRunner(env.Options, env.Launch, env.Nav, env.Pacer)
	agg, runErr := runner.Run(ctx, rc, companies)
	if runErr != nil {
		log.Error("harvest run ended early", zap.Error(runErr))
	}

	summary := &model.RunSummary{
		Records:     make(map[model.Category]int),
		VisitedURLs: rc.Visited.Len(),
	}
	for _, c := range model.AllCategories() {
		summary.Records[c] = len(agg.Results(c))
	}

	paths, writeErr := env.Writer.Save(agg, outDir)
	summary.OutputFiles = paths
	if writeErr != nil {
		log.Error("write results failed", zap.Error(writeErr))
	}

	var storeErr error
	if env.Store != nil {
		if n, err := env.Store.SaveResults(saveCtx, runID, agg); err != nil {
			storeErr = eris.Wrap(err, "store results")
			log.Error("store results failed", zap.Error(err))
		} else {
			log.Info("fragments stored", zap.Int("fragments", n))
		}
	}

	finalErr := runErr
	if finalErr == nil {
		finalErr = writeErr
	}
	if finalErr == nil {
		finalErr = storeErr
	}

	summary.DurationMs = time.Since(start).Milliseconds()
	status := model.RunStatusComplete
	if finalErr != nil {
		status = model.RunStatusFailed
		summary.Error = finalErr.Error()
	}

	if env.Store != nil {
		if err := env.Store.CompleteRun(saveCtx, runID, status, summary); err != nil {
			log.Error("complete run failed", zap.Error(err))
			if finalErr == nil {
				finalErr = eris.Wrap(err, "complete run")
			}
		}
	}

	log.Info("harvest finished",
		zap.String("status", string(status)),
		zap.Int("records", agg.Len()),
		zap.Int("files", len(paths)),
		zap.Int64("duration_ms", summary.DurationMs),
	)
	return summary, finalErr
}

// formatSummary writes a per-category record count table to w.
func formatSummary(out io.Writer, s *model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tRECORDS")
	for _, c := range model.AllCategories() {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", c, s.Records[c])
	}
	_, _ = fmt.Fprintf(w, "Visited URLs:\t%d\n", s.VisitedURLs)
	_, _ = fmt.Fprintf(w, "Files written:\t%d\n", len(s.OutputFiles))
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", (time.Duration(s.DurationMs) * time.Millisecond).String())
	if s.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", s.Error)
	}
	_ = w.Flush()
}
