// Package pipeline sequences the bedcap stages: load the source files,
// build the combined table, run the integrity checks, write the figure
// battery. Each stage is callable on its own; Run chains them all.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bedcap/internal/config"
	"bedcap/internal/export"
	"bedcap/internal/report"
	"bedcap/internal/source"
	"bedcap/internal/store"
)

// LoadStats counts the rows each source table received.
type LoadStats struct {
	BedTypes   int64
	BedFacts   int64
	Businesses int64
}

// Summary collects what one full run did.
type Summary struct {
	Load    LoadStats
	Build   report.BuildResult
	Checks  []report.CheckResult
	Figures int
	Elapsed time.Duration
}

// Load reads the three source files and replaces the source tables
// with their rows. Nothing is validated across files here; the
// integrity checks handle that.
func Load(ctx context.Context, st *store.Store, in config.InputsConfig, log *zap.Logger) (LoadStats, error) {
	var stats LoadStats

	types, err := source.ReadBedTypes(in.BedType)
	if err != nil {
		return stats, fmt.Errorf("read bed types: %w", err)
	}
	facts, err := source.ReadBedFacts(in.BedFact)
	if err != nil {
		return stats, fmt.Errorf("read bed facts: %w", err)
	}
	businesses, err := source.ReadBusinesses(in.Business)
	if err != nil {
		return stats, fmt.Errorf("read businesses: %w", err)
	}
	log.Debug("source files read",
		zap.Int("bed_types", len(types)),
		zap.Int("bed_facts", len(facts)),
		zap.Int("businesses", len(businesses)))

	if stats.BedTypes, err = st.ReplaceBedTypes(ctx, types); err != nil {
		return stats, err
	}
	if stats.BedFacts, err = st.ReplaceBedFacts(ctx, facts); err != nil {
		return stats, err
	}
	if stats.Businesses, err = st.ReplaceBusinesses(ctx, businesses); err != nil {
		return stats, err
	}
	return stats, nil
}

// Check runs the integrity checks. Findings are logged and returned,
// never fatal here; the caller decides whether they stop the run. The
// unit agreement check reads the combined table and is skipped with a
// notice when no build exists yet.
func Check(ctx context.Context, st *store.Store, log *zap.Logger) ([]report.CheckResult, error) {
	var results []report.CheckResult

	for _, check := range []func(context.Context, *store.Store) (report.CheckResult, error){
		report.CheckBedFactKey,
		report.CheckBusinessKey,
	} {
		res, err := check(ctx, st)
		if err != nil {
			return results, err
		}
		logCheck(log, res)
		results = append(results, res)
	}

	built, err := report.CombinedBuilt(ctx, st)
	if err != nil {
		return results, err
	}
	if !built {
		log.Info("skipping unit agreement check, combined table not built yet")
		return results, nil
	}
	res, err := report.CheckUnitAgreement(ctx, st)
	if err != nil {
		return results, err
	}
	logCheck(log, res)
	results = append(results, res)
	return results, nil
}

// Report rebuilds the combined table if the sources changed and writes
// the full figure battery.
func Report(ctx context.Context, st *store.Store, exportDir string, log *zap.Logger) (report.BuildResult, int, error) {
	build, err := report.BuildCombined(ctx, st, log)
	if err != nil {
		return report.BuildResult{}, 0, err
	}
	figures, err := runFigures(ctx, st, exportDir, log)
	return build, figures, err
}

// Run executes the whole pipeline in order: schema, load, combine,
// checks, figures.
func Run(ctx context.Context, st *store.Store, cfg *config.Config, log *zap.Logger) (Summary, error) {
	start := time.Now()
	var sum Summary

	if err := st.EnsureSchema(ctx); err != nil {
		return sum, err
	}
	var err error
	if sum.Load, err = Load(ctx, st, cfg.Inputs, log); err != nil {
		return sum, err
	}
	if sum.Build, err = report.BuildCombined(ctx, st, log); err != nil {
		return sum, err
	}
	if sum.Checks, err = Check(ctx, st, log); err != nil {
		return sum, err
	}
	if sum.Figures, err = runFigures(ctx, st, cfg.Export.Dir, log); err != nil {
		return sum, err
	}
	sum.Elapsed = time.Since(start)

	log.Info("pipeline complete",
		zap.Int64("bed_types", sum.Load.BedTypes),
		zap.Int64("bed_facts", sum.Load.BedFacts),
		zap.Int64("businesses", sum.Load.Businesses),
		zap.Bool("combined_rebuilt", sum.Build.Rebuilt),
		zap.Int64("combined_rows", sum.Build.Rows),
		zap.Int("figures", sum.Figures),
		zap.Duration("elapsed", sum.Elapsed))
	return sum, nil
}

// runFigures executes the fixed battery in order and exports each
// figure as it completes.
func runFigures(ctx context.Context, st *store.Store, exportDir string, log *zap.Logger) (int, error) {
	exp, err := export.New(exportDir, log)
	if err != nil {
		return 0, err
	}
	written := 0
	for _, fig := range report.Figures {
		if fig.Composite {
			wide, err := report.CompositeTop(ctx, st)
			if err != nil {
				return written, fmt.Errorf("figure %d: %w", fig.Num, err)
			}
			long := report.ReshapeComposite(wide, fig.Split)
			if _, err := exp.WriteCompositeFigure(fig, wide, long); err != nil {
				return written, fmt.Errorf("figure %d: %w", fig.Num, err)
			}
		} else {
			wide, err := report.TopHospitals(ctx, st, fig.Measure, fig.MinPresence)
			if err != nil {
				return written, fmt.Errorf("figure %d: %w", fig.Num, err)
			}
			long := report.Reshape(wide)
			if _, err := exp.WriteFigure(fig, wide, long); err != nil {
				return written, fmt.Errorf("figure %d: %w", fig.Num, err)
			}
		}
		written++
	}
	return written, nil
}

func logCheck(log *zap.Logger, res report.CheckResult) {
	if res.OK() {
		log.Info("integrity check passed",
			zap.String("check", res.Name),
			zap.String("table", res.Table))
		return
	}
	log.Warn("integrity check found violations",
		zap.String("check", res.Name),
		zap.String("table", res.Table),
		zap.Strings("key_columns", res.KeyColumns),
		zap.Int("groups", len(res.Violations)))
	for _, v := range res.Violations {
		log.Warn("integrity violation",
			zap.String("check", res.Name),
			zap.Strings("key", v.Key),
			zap.Int64("rows", v.Count))
	}
}
