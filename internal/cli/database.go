package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xtxerr/healthmon/config"
	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/logging"
	storageconfig "github.com/xtxerr/healthmon/internal/storage/config"
	"github.com/xtxerr/healthmon/internal/storage/parquet"
	"github.com/xtxerr/healthmon/internal/storage/retention"
	"github.com/xtxerr/healthmon/internal/store"
)

func (a *app) databaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "database",
		Short: "Inspect and maintain the metrics database",
		Long:  `Show statistics, list the newest records, delete expired records and browse retention archives.`,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(a.statsCommand())
	cmd.AddCommand(a.latestCommand())
	cmd.AddCommand(a.cleanupCommand())
	cmd.AddCommand(a.archiveCommand())

	return cmd
}

func (a *app) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts and time span",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				stats, err := s.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func (a *app) latestCommand() *cobra.Command {
	var (
		metricType string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the newest records as JSON",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *store.Store) error {
				records, err := s.QueryLatest(cmd.Context(), metricType, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), records)
			})
		},
	}

	cmd.Flags().StringVar(&metricType, "metric-type", "", "filter by metric type")
	cmd.Flags().IntVar(&limit, "limit", config.DefaultLatestLimit, "maximum number of records")

	return cmd
}

func (a *app) cleanupCommand() *cobra.Command {
	var (
		days       int
		dryRun     bool
		archiveDir string
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete records older than the retention period",
		Long: `Delete every record older than --retention-days. With archiving enabled
in the configuration, or --archive-dir set, expired records are first
written to a Parquet file; if that fails nothing is deleted.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			period := a.cfg.Retention.Period
			if cmd.Flags().Changed("retention-days") {
				p, err := span("--retention-days", days, 24*time.Hour)
				if err != nil {
					return err
				}
				period = p
			}

			ctx := logging.ContextWithCommand(cmd.Context(), "cleanup")
			return a.withStore(ctx, func(s *store.Store) error {
				m, err := a.retentionManager(s, a.cfg.Retention, archiveDir)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if dryRun {
					res, err := m.DryRunOlderThan(ctx, period)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Would delete %d old records (before %s)\n", res.Deleted, res.Cutoff.Format(time.RFC3339))
					return nil
				}

				res, err := m.CleanupOlderThan(ctx, period)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %d old records\n", res.Deleted)
				if res.FilesDeleted > 0 {
					fmt.Fprintf(out, "Removed %d archive files (%s)\n", res.FilesDeleted, retention.FormatBytes(res.BytesFreed))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "retention-days", config.DefaultRetentionDays, "days of history to keep")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count expired records without deleting them")
	cmd.Flags().StringVar(&archiveDir, "archive-dir", "", "archive expired records to this directory")

	return cmd
}

// retentionManager builds a manager for s, archiving when configured or
// when dir is set.
func (a *app) retentionManager(s *store.Store, rc storageconfig.RetentionConfig, dir string) (*retention.Manager, error) {
	var opts []retention.Option

	if dir != "" || a.cfg.Archive.Enabled {
		if dir == "" {
			dir = a.cfg.ArchiveDir()
		}
		compression, err := parquet.ParseCompressionType(a.cfg.Archive.Compression)
		if err != nil {
			return nil, err
		}
		popts := parquet.DefaultOptions()
		popts.Compression = compression

		opts = append(opts,
			retention.WithArchiver(parquet.NewArchiver(dir, popts)),
			retention.WithArchivePruning(dir, a.cfg.Archive.Retention),
		)
	}

	return retention.New(s, rc, opts...), nil
}

func (a *app) archiveCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "archive [file]",
		Short: "List archive files or print the records of one",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.ArchiveDir()
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				path := args[0]
				if filepath.Base(path) == path {
					if _, err := parquet.GetFileInfo(path); err != nil {
						path = filepath.Join(dir, path)
					}
				}
				records, err := parquet.ReadRecords(path)
				if err != nil {
					return errors.Wrapf(err, "read archive %s", path)
				}
				return printJSON(out, records)
			}

			files, err := parquet.NewArchiver(dir, parquet.DefaultOptions()).Files()
			if err != nil {
				return errors.Wrap(err, "list archives")
			}
			if len(files) == 0 {
				fmt.Fprintf(out, "No archive files in %s\n", dir)
				return nil
			}

			table := newTable(out, "FILE", "RECORDS", "SIZE")
			for _, f := range files {
				info, err := parquet.GetFileInfo(f)
				if err != nil {
					table.Append([]string{filepath.Base(f), "?", "?"})
					continue
				}
				table.Append([]string{
					filepath.Base(f),
					strconv.FormatInt(info.NumRows, 10),
					retention.FormatBytes(info.Size),
				})
			}
			table.Render()

			usage, err := retention.ArchiveUsage(dir)
			if err == nil {
				fmt.Fprintf(out, "\nTotal: %s\n", usage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "archive-dir", "", "archive directory (default from config)")

	return cmd
}
