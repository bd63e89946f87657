package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xtxerr/healthmon/config"
	"github.com/xtxerr/healthmon/internal/constants"
	"github.com/xtxerr/healthmon/internal/errors"
	"github.com/xtxerr/healthmon/internal/logging"
	"github.com/xtxerr/healthmon/internal/store"
)

func (a *app) consoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive shell over the metrics database",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return usageError(errors.New("console needs an interactive terminal"))
			}

			ctx := logging.ContextWithCommand(cmd.Context(), "console")
			return a.withStore(ctx, func(s *store.Store) error {
				c := &console{app: a, store: s, ctx: ctx, out: cmd.OutOrStdout()}
				fmt.Fprintf(c.out, "healthmon %s on %s (%s). Type 'help' for commands.\n", Version, s.Path(), s.Engine())

				p := prompt.New(
					c.execute,
					c.complete,
					prompt.OptionPrefix("healthmon> "),
					prompt.OptionTitle("healthmon"),
					prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return c.done }),
				)
				p.Run()
				return nil
			})
		},
	}
}

// console executes one line at a time against an open store.
type console struct {
	app   *app
	store *store.Store
	ctx   context.Context
	out   io.Writer
	done  bool
}

var consoleCommands = []prompt.Suggest{
	{Text: "stats", Description: "record counts and time span"},
	{Text: "latest", Description: "latest [type] [limit]"},
	{Text: "analyze", Description: "analyze <type> [hours]"},
	{Text: "cleanup", Description: "cleanup <days> [dry-run]"},
	{Text: "help", Description: "list commands"},
	{Text: "exit", Description: "leave the console"},
}

func (c *console) complete(d prompt.Document) []prompt.Suggest {
	fields := strings.Fields(d.TextBeforeCursor())
	word := d.GetWordBeforeCursor()

	if len(fields) == 0 || (len(fields) == 1 && word != "") {
		return prompt.FilterHasPrefix(consoleCommands, word, true)
	}

	switch fields[0] {
	case "latest", "analyze":
		if len(fields) == 1 || (len(fields) == 2 && word != "") {
			var s []prompt.Suggest
			for _, t := range constants.KnownMetricTypes {
				s = append(s, prompt.Suggest{Text: t})
			}
			return prompt.FilterHasPrefix(s, word, true)
		}
	case "cleanup":
		if len(fields) == 2 && word == "" || len(fields) == 3 && word != "" {
			return prompt.FilterHasPrefix([]prompt.Suggest{{Text: "dry-run"}}, word, true)
		}
	}
	return nil
}

// execute runs one console line. Errors are printed, never returned.
func (c *console) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	var err error
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "exit", "quit":
		c.done = true
	case "help":
		for _, s := range consoleCommands {
			fmt.Fprintf(c.out, "  %-8s %s\n", s.Text, s.Description)
		}
	case "stats":
		err = c.stats()
	case "latest":
		err = c.latest(args)
	case "analyze":
		err = c.analyze(args)
	case "cleanup":
		err = c.cleanup(args)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

func (c *console) stats() error {
	stats, err := c.store.Stats(c.ctx)
	if err != nil {
		return err
	}
	return printJSON(c.out, stats)
}

func (c *console) latest(args []string) error {
	metricType, limit := "", config.DefaultLatestLimit
	if len(args) > 0 {
		metricType = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("limit %q: %w", args[1], errors.ErrInvalidArgument)
		}
		limit = n
	}

	records, err := c.store.QueryLatest(c.ctx, metricType, limit)
	if err != nil {
		return err
	}
	return printJSON(c.out, records)
}

func (c *console) analyze(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: analyze <type> [hours]: %w", errors.ErrInvalidArgument)
	}
	metricType, hours := args[0], config.DefaultAnalysisHours
	if !constants.IsAnalyzableMetricType(metricType) {
		return fmt.Errorf("metric type must be one of %s: %w", strings.Join(constants.AnalyzableMetricTypes, ", "), errors.ErrInvalidArgument)
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("hours %q: %w", args[1], errors.ErrInvalidArgument)
		}
		if _, err := span("hours", n, time.Hour); err != nil {
			return err
		}
		hours = n
	}

	analysis, n, err := c.app.analyze(c.ctx, c.store, metricType, c.app.cfg.Analysis.DefaultKey, hours)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintf(c.out, "No data found for %s in the last %d hours\n", metricType, hours)
		return nil
	}
	return printJSON(c.out, analysis)
}

func (c *console) cleanup(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: cleanup <days> [dry-run]: %w", errors.ErrInvalidArgument)
	}
	days, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("days %q: %w", args[0], errors.ErrInvalidArgument)
	}
	period, err := span("days", days, 24*time.Hour)
	if err != nil {
		return err
	}

	m, err := c.app.retentionManager(c.store, c.app.cfg.Retention, "")
	if err != nil {
		return err
	}

	if len(args) > 1 && args[1] == "dry-run" {
		res, err := m.DryRunOlderThan(c.ctx, period)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Would delete %d old records (before %s)\n", res.Deleted, res.Cutoff.Format(time.RFC3339))
		return nil
	}

	res, err := m.CleanupOlderThan(c.ctx, period)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted %d old records\n", res.Deleted)
	return nil
}
