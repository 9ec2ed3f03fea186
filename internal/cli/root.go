// Package cli implements announcectl, the administrative command line for
// the event store.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/announcer/internal/app"
	"github.com/telhawk-systems/announcer/internal/config"
	"github.com/telhawk-systems/announcer/internal/logging"
)

// AppBuilder opens the components a command needs.
type AppBuilder func(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app.App, error)

type CLI struct {
	in      io.Reader
	printer *Printer
	errOut  io.Writer

	loadConfig func(path string) (*config.Config, error)
	build      AppBuilder

	cfgFile string
	output  string
	verbose bool
}

type Option func(*CLI)

// WithIO replaces stdin, stdout and stderr.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(c *CLI) {
		c.in = in
		c.errOut = errOut
		c.printer = NewPrinter(out, errOut)
	}
}

// WithConfigLoader replaces config.Load.
func WithConfigLoader(load func(path string) (*config.Config, error)) Option {
	return func(c *CLI) { c.loadConfig = load }
}

// WithAppBuilder replaces the default component wiring.
func WithAppBuilder(build AppBuilder) Option {
	return func(c *CLI) { c.build = build }
}

func defaultBuilder(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger, app.Options{})
}

// NewRootCommand builds the announcectl command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	c := &CLI{
		in:         os.Stdin,
		errOut:     os.Stderr,
		printer:    NewPrinter(os.Stdout, os.Stderr),
		loadConfig: config.Load,
		build:      defaultBuilder,
	}
	for _, opt := range opts {
		opt(c)
	}

	root := &cobra.Command{
		Use:   "announcectl",
		Short: "Announcer administration CLI",
		Long: `announcectl manages the announcer event store.

Extract announcements from text, list upcoming events, inspect the store,
apply schema migrations and seed development data.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(c.in)
	root.SetOut(c.printer.out)
	root.SetErr(c.errOut)

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default: ./config.yaml or /etc/announcer/config.yaml)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "", "output format: text, table, json, yaml")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level to stderr")

	root.AddCommand(
		c.newAddCommand(),
		c.newListCommand(),
		c.newEventsCommand(),
		c.newPurgeCommand(),
		c.newMigrateCommand(),
		c.newSeedCommand(),
	)
	return root
}

// Execute runs the command tree and reports a failure on stderr.
func Execute(opts ...Option) error {
	c := NewRootCommand(opts...)
	if err := c.Execute(); err != nil {
		NewPrinter(c.OutOrStdout(), c.ErrOrStderr()).Error("%v", err)
		return err
	}
	return nil
}

func (c *CLI) settings() (*config.Config, error) {
	cfg, err := c.loadConfig(c.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	return cfg, nil
}

func (c *CLI) logger() *logging.Logger {
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	return logging.NewWithWriter(c.errOut, logging.ParseLevel(level), "text")
}

func (c *CLI) open(ctx context.Context) (*app.App, error) {
	cfg, err := c.settings()
	if err != nil {
		return nil, err
	}
	return c.build(ctx, cfg, c.logger())
}

// format returns --output, or fallback when it was not given.
func (c *CLI) format(fallback string) (string, error) {
	f := c.output
	if f == "" {
		f = fallback
	}
	switch f {
	case FormatText, FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (use text, table, json or yaml)", f)
}
