package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/healthmon/internal/collector"
	"github.com/xtxerr/healthmon/internal/logging"
	"github.com/xtxerr/healthmon/internal/store"
	"github.com/xtxerr/healthmon/internal/validation"
)

func (a *app) ingestCommand() *cobra.Command {
	var (
		once      bool
		retention bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store readings from a sampler snapshot file",
		Long: `Read the JSON snapshot written by the sampler every --interval and
insert one record per metric type. A snapshot whose timestamp has not
changed since the last read is skipped.

With --retention the cleanup worker runs alongside, sweeping expired
records every retention.interval.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := a.cfg.Collector
			flags := cmd.Flags()
			if flags.Changed("file") {
				cc.File, _ = flags.GetString("file")
			}
			if flags.Changed("interval") {
				cc.Interval, _ = flags.GetDuration("interval")
			}
			if flags.Changed("hostname") {
				cc.Hostname, _ = flags.GetString("hostname")
			}
			if flags.Changed("source") {
				cc.Source, _ = flags.GetString("source")
			}
			if err := cc.Validate(); err != nil {
				return usageError(err)
			}

			if cc.Hostname == "" {
				h, err := os.Hostname()
				if err != nil {
					return fmt.Errorf("resolve hostname: %w", err)
				}
				cc.Hostname = h
			}
			if err := validation.ValidateHostname(cc.Hostname); err != nil {
				return usageError(err)
			}

			ctx := logging.ContextWithHostname(logging.ContextWithCommand(cmd.Context(), "ingest"), cc.Hostname)
			return a.withStore(ctx, func(s *store.Store) error {
				runner, err := collector.NewRunner(
					collector.NewFileSource(cc.File, cc.Hostname, cc.Source), s, cc.Interval,
					collector.WithPendingCapacity(cc.PendingCapacity),
				)
				if err != nil {
					return err
				}

				if once {
					n, err := runner.Collect(ctx)
					fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d readings from %s\n", n, cc.File)
					return err
				}

				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return runner.Run(gctx)
				})
				if retention {
					rc := a.cfg.Retention
					rc.Enabled = true
					m, err := a.retentionManager(s, rc, "")
					if err != nil {
						return err
					}
					g.Go(func() error {
						return m.Run(gctx)
					})
				}

				logging.WithContext(ctx).Info("ingesting", "file", cc.File, "interval", cc.Interval)
				err = g.Wait()

				stats := runner.Stats()
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped after %d cycles: %d inserted, %d failed\n",
					stats.Cycles, stats.Inserted, stats.Failed)
				return err
			})
		},
	}

	cmd.Flags().String("file", "", "snapshot file (default from config)")
	cmd.Flags().Duration("interval", 0, "poll interval (default from config)")
	cmd.Flags().String("hostname", "", "hostname recorded with each reading (default: this host)")
	cmd.Flags().String("source", "", "collector identity recorded with each reading")
	cmd.Flags().BoolVar(&once, "once", false, "read the snapshot once and exit")
	cmd.Flags().BoolVar(&retention, "retention", false, "run the cleanup worker while ingesting")

	return cmd
}
