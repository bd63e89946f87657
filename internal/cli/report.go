package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xtxerr/healthmon/config"
	"github.com/xtxerr/healthmon/internal/logging"
	"github.com/xtxerr/healthmon/internal/storage/aggregate"
	"github.com/xtxerr/healthmon/internal/storage/parquet"
	"github.com/xtxerr/healthmon/internal/storage/types"
	"github.com/xtxerr/healthmon/internal/store"
	"github.com/xtxerr/healthmon/internal/validation"
)

type reportOptions struct {
	hours      int
	bucket     string
	metricType string
	key        string
	output     string
	json       bool
}

func (a *app) reportCommand() *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Roll recent records up into time buckets",
		Long: `Aggregate the last --hours of records into fixed buckets per host and
metric type: count, average, minimum, maximum and sketch percentiles of --key.

Bucket sizes: 1min, 5min, hourly, daily. "auto" picks one from the window.`,
		Example: `  healthmon report --hours 6 --bucket 5min
  healthmon report --metric-type memory --json
  healthmon report --hours 168 --output rollup.parquet`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.hours <= 0 {
				return usageError(fmt.Errorf("--hours must be positive, got %d", opts.hours))
			}
			window, err := span("--hours", opts.hours, time.Hour)
			if err != nil {
				return err
			}
			if opts.metricType != "" {
				if err := validation.ValidateMetricType(opts.metricType); err != nil {
					return usageError(err)
				}
			}
			if opts.key == "" {
				opts.key = a.cfg.Analysis.DefaultKey
			}

			end := time.Now().UTC()
			start := end.Add(-window)

			rollup := a.cfg.Rollup
			switch opts.bucket {
			case "":
			case "auto":
				rollup.Resolution = types.SelectResolutionForRange(start, end).String()
			default:
				if _, err := types.ParseResolution(opts.bucket); err != nil {
					return usageError(err)
				}
				rollup.Resolution = opts.bucket
			}

			m, err := aggregate.NewManagerFromConfig(rollup, opts.key)
			if err != nil {
				return err
			}

			ctx := logging.ContextWithCommand(cmd.Context(), "report")
			return a.withStore(ctx, func(s *store.Store) error {
				results, err := aggregate.Rollup(ctx, s, m, start, end, opts.metricType)
				if err != nil {
					return err
				}
				log.Debug("rollup finished", "buckets", len(results), "resolution", m.Resolution())

				if opts.output != "" {
					if err := writeAggregates(opts.output, results); err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d buckets to %s\n", len(results), opts.output)
				}

				out := cmd.OutOrStdout()
				if opts.json {
					return printJSON(out, results)
				}
				if len(results) == 0 {
					fmt.Fprintf(out, "No data found in the last %d hours\n", opts.hours)
					return nil
				}

				table := newTable(out, "HOST", "TYPE", "BUCKET", "COUNT", "AVG", "MIN", "MAX", "P95")
				for _, r := range results {
					table.Append([]string{
						r.Hostname,
						r.MetricType,
						r.BucketStart.Format(time.RFC3339),
						strconv.FormatInt(r.Count, 10),
						formatFloat(r.Avg),
						formatFloat(r.Min),
						formatFloat(r.Max),
						formatOptional(r.P95),
					})
				}
				table.Render()
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&opts.hours, "hours", config.DefaultAnalysisHours, "hours of history to roll up")
	cmd.Flags().StringVar(&opts.bucket, "bucket", "", "bucket size: 1min, 5min, hourly, daily, auto (default from config)")
	cmd.Flags().StringVar(&opts.metricType, "metric-type", "", "filter by metric type")
	cmd.Flags().StringVar(&opts.key, "key", "", "payload key to aggregate (default from config)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "also write the buckets to a Parquet file")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print JSON instead of a table")

	return cmd
}

func writeAggregates(path string, results []types.AggregateResult) error {
	w, err := parquet.NewAggregateWriter(path, parquet.DefaultOptions())
	if err != nil {
		return err
	}
	if err := w.Write(results); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
