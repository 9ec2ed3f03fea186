package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/announcer/internal/models"
	"github.com/telhawk-systems/announcer/internal/repository"
	"github.com/telhawk-systems/announcer/internal/seeder"
	"github.com/telhawk-systems/announcer/internal/service"
	"github.com/telhawk-systems/announcer/internal/temporal"
	"github.com/telhawk-systems/announcer/migrations"
)

func (c *CLI) newAddCommand() *cobra.Command {
	var (
		text          string
		referenceDate string
	)

	cmd := &cobra.Command{
		Use:   "add [file|-]",
		Short: "Extract an event from an announcement and save it",
		Long: `Extract an event from announcement text and save it to the store.

The announcement is read from --text, from the named file, or from stdin
when the argument is "-" or omitted.`,
		Example: `  announcectl add --text "Dance Night Mon 10pm-1am at The Hall"
  announcectl add announcement.txt
  pbpaste | announcectl add -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := c.format(FormatText)
			if err != nil {
				return err
			}
			if text == "" {
				if text, err = c.readAnnouncement(args); err != nil {
					return err
				}
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var ref time.Time
			if referenceDate != "" {
				if ref, err = temporal.ParseDate(referenceDate, a.Service.Location()); err != nil {
					return fmt.Errorf("--reference-date must be YYYY-MM-DD: %w", err)
				}
			}

			resp, err := a.Service.BeginExtraction(cmd.Context(), text, ref)
			if err != nil {
				return errors.New(service.UserMessage(err))
			}
			if ok, err := c.printer.Structured(format, resp); ok {
				return err
			}
			c.printer.Success("%s", resp.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "announcement text")
	cmd.Flags().StringVar(&referenceDate, "reference-date", "", "date relative phrases resolve against (YYYY-MM-DD)")
	return cmd
}

func (c *CLI) readAnnouncement(args []string) (string, error) {
	var r io.Reader = c.in
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to open announcement: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read announcement: %w", err)
	}
	return string(data), nil
}

func (c *CLI) newListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List upcoming events",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := c.format(FormatText)
			if err != nil {
				return err
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Service.ListUpcoming(cmd.Context(), limit)
			if err != nil {
				return errors.New(service.UserMessage(err))
			}
			if ok, err := c.printer.Structured(format, resp.Events); ok {
				return err
			}
			if format == FormatTable {
				table := NewTable([]string{"ID", "TITLE", "WHEN", "LOCATION"})
				for _, e := range resp.Events {
					table.AddRow([]string{
						strconv.FormatInt(e.ID, 10),
						e.Title,
						temporal.FormatWhen(e.StartUTC, e.EndUTC, a.Formatter.Location()),
						deref(e.Location),
					})
				}
				table.Render(c.printer.out)
				return nil
			}
			c.printer.Text(resp.Text)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of events (default: display.list_limit)")
	return cmd
}

func (c *CLI) newEventsCommand() *cobra.Command {
	var (
		columns []string
		sortBy  string
		desc    bool
		limit   int
		page    int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show a sorted page of stored events",
		Long: `Show a sorted page of stored events with selected columns.

Columns: ` + strings.Join(repository.Columns, ", ") + `
Sort keys: ` + strings.Join(repository.SortKeys, ", "),
		Example: `  announcectl events --columns id,title,start_ts --sort created_at --desc
  announcectl events --page 2 -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := c.format(FormatTable)
			if err != nil {
				return err
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Service.ListSorted(cmd.Context(), models.SortedQuery{
				Columns:   columns,
				SortBy:    sortBy,
				Ascending: !desc,
				Limit:     limit,
				Page:      page,
			})
			if err != nil {
				return errors.New(service.UserMessage(err))
			}
			if ok, err := c.printer.Structured(format, resp); ok {
				return err
			}

			cols := columns
			if len(cols) == 0 {
				cols = repository.DefaultColumns
			}
			if format == FormatText {
				c.printer.Text(a.Formatter.FormatRows(resp.Rows, cols))
				return nil
			}
			headers := make([]string, len(cols))
			for i, col := range cols {
				headers[i] = strings.ToUpper(col)
			}
			table := NewTable(headers)
			for _, row := range resp.Rows {
				table.AddRow(a.Formatter.RowFields(row, cols))
			}
			table.Render(c.printer.out)
			c.printer.Info("page %d, %d rows", resp.Page, len(resp.Rows))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to show (default: id,title)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort key (default: start_ts)")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "rows per page (default: display.list_limit)")
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page number")
	return cmd
}

func (c *CLI) newPurgeCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored event and reset identifiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all events without --yes")
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Service.DeleteAll(cmd.Context()); err != nil {
				return errors.New(service.UserMessage(err))
			}
			c.printer.Success("All events deleted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func (c *CLI) newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or roll back event store migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.settings()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != "postgres" {
				return fmt.Errorf("migrations require the postgres driver, not %q", cfg.Database.Driver)
			}
			dsn := cfg.PostgresDSN()

			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			switch action {
			case "up":
				if err := migrations.Up(dsn); err != nil {
					return err
				}
				c.printer.Success("Migrations applied")
			case "down":
				if err := migrations.Down(dsn); err != nil {
					return err
				}
				c.printer.Success("Rolled back one migration")
			case "version":
				version, dirty, err := migrations.Version(dsn)
				if err != nil {
					return err
				}
				c.printer.Info("schema version %d (dirty: %t)", version, dirty)
			}
			return nil
		},
	}
}

func (c *CLI) newSeedCommand() *cobra.Command {
	var (
		count int
		seed  int64
		days  int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert generated upcoming events for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return errors.New("--count must be positive")
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			g := seeder.NewGenerator(seeder.Config{
				Count:    count,
				Seed:     seed,
				Days:     days,
				Location: a.Service.Location(),
			})
			n, err := seeder.Seed(cmd.Context(), a.Repo, g, time.Now())
			if err != nil {
				return err
			}
			c.printer.Success("Seeded %d events", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 20, "number of events to generate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().IntVar(&days, "days", 30, "spread start dates over this many days")
	return cmd
}

func deref(s *string) string {
	if s == nil {
		return "—"
	}
	return *s
}
