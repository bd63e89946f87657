package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/healthmon/config"
	"github.com/xtxerr/healthmon/internal/analytics"
	"github.com/xtxerr/healthmon/internal/constants"
	"github.com/xtxerr/healthmon/internal/logging"
	"github.com/xtxerr/healthmon/internal/store"
)

type analyzeOptions struct {
	hours      int
	metricType string
	key        string
	all        bool
}

func (a *app) analyzeCommand() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyse recent history of a metric type",
		Long: `Analyse the last --hours of one metric type: summary statistics,
trend, anomalies, moving average and a one-step forecast of --key.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.hours <= 0 {
				return usageError(fmt.Errorf("--hours must be positive, got %d", opts.hours))
			}
			if _, err := span("--hours", opts.hours, time.Hour); err != nil {
				return err
			}
			if !opts.all && !constants.IsAnalyzableMetricType(opts.metricType) {
				return usageError(fmt.Errorf("--metric-type must be one of %s", strings.Join(constants.AnalyzableMetricTypes, ", ")))
			}
			if opts.key == "" {
				opts.key = a.cfg.Analysis.DefaultKey
			}

			ctx := logging.ContextWithCommand(cmd.Context(), "analyze")
			return a.withStore(ctx, func(s *store.Store) error {
				if opts.all {
					return a.analyzeAll(ctx, cmd, s, opts)
				}
				return a.analyzeOne(ctx, cmd, s, opts)
			})
		},
	}

	cmd.Flags().IntVar(&opts.hours, "hours", config.DefaultAnalysisHours, "hours of history to analyse")
	cmd.Flags().StringVar(&opts.metricType, "metric-type", constants.MetricTypeCPU, "metric type: "+strings.Join(constants.AnalyzableMetricTypes, ", "))
	cmd.Flags().StringVar(&opts.key, "key", "", "payload key to analyse (default from config)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "analyse every metric type")

	return cmd
}

func (a *app) analyzeOne(ctx context.Context, cmd *cobra.Command, s *store.Store, opts analyzeOptions) error {
	analysis, n, err := a.analyze(ctx, s, opts.metricType, opts.key, opts.hours)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if n == 0 {
		fmt.Fprintf(out, "No data found for %s in the last %d hours\n", opts.metricType, opts.hours)
		return nil
	}

	banner(out, fmt.Sprintf("Analysis for %s (last %d hours)", opts.metricType, opts.hours))
	if err := printJSON(out, analysis); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n\n", strings.Repeat("=", 50))
	return nil
}

// analyzeAll analyses every analysable type concurrently and prints the
// results keyed by type. Types without records are omitted.
func (a *app) analyzeAll(ctx context.Context, cmd *cobra.Command, s *store.Store, opts analyzeOptions) error {
	types := constants.AnalyzableMetricTypes
	results := make([]analytics.Analysis, len(types))
	counts := make([]int, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			analysis, n, err := a.analyze(gctx, s, t, opts.key, opts.hours)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", t, err)
			}
			results[i], counts[i] = analysis, n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	report := make(map[string]analytics.Analysis, len(types))
	for i, t := range types {
		if counts[i] > 0 {
			report[t] = results[i]
		}
	}

	out := cmd.OutOrStdout()
	if len(report) == 0 {
		fmt.Fprintf(out, "No data found in the last %d hours\n", opts.hours)
		return nil
	}
	return printJSON(out, report)
}

// analyze runs the analyzer over the window ending now and returns the
// analysis and the number of records read.
func (a *app) analyze(ctx context.Context, s *store.Store, metricType, key string, hours int) (analytics.Analysis, int, error) {
	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	records, err := s.QueryRange(ctx, start, end, metricType)
	if err != nil {
		return analytics.Analysis{}, 0, err
	}
	if len(records) == 0 {
		return analytics.Analysis{}, 0, nil
	}

	logging.WithContext(logging.ContextWithMetricType(ctx, metricType)).
		Debug("analysing records", "records", len(records), "key", key)

	return analytics.New(a.cfg.Analysis).Analyze(records, key), len(records), nil
}
