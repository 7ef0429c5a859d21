package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quotesync/internal/bootstrap"
	"github.com/jsamuelsen/quotesync/internal/platform/config"
)

// closeTimeout bounds draining background posts on exit.
const closeTimeout = 15 * time.Second

// cli holds the flags and the core shared by every subcommand.
type cli struct {
	profile   string
	configDir string
	backend   string
	dbPath    string
	verbose   bool

	out    io.Writer
	errOut io.Writer

	cfg  *config.Config
	core *bootstrap.Components
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Maintain the quotesync quote store",
		Long: `quotectl works on the same store the quotesync service uses.

Point it at a durable backend to make changes stick between runs:
  quotectl --backend sqlite --db ./data/quotes.db add --text "..." --category life

Available commands:
  export     - Write the quote list as JSON
  import     - Merge quotes from a JSON file
  add        - Add a quote
  random     - Print a random quote
  categories - List or select categories
  sync       - Run one sync cycle against the remote
  push       - Post every local-only quote to the remote`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.profile, "profile", envOr("APP_ENVIRONMENT", "local"), "Configuration profile")
	flags.StringVar(&c.configDir, "config-dir", config.DefaultConfigDir, "Directory holding base.yaml and profile files")
	flags.StringVar(&c.backend, "backend", "", "Store backend override (memory or sqlite)")
	flags.StringVar(&c.dbPath, "db", "", "SQLite database path override")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		c.exportCmd(),
		c.importCmd(),
		c.addCmd(),
		c.randomCmd(),
		c.categoriesCmd(),
		c.syncCmd(),
		c.pushCmd(),
	)

	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadDir(c.configDir, c.profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if c.backend != "" {
		cfg.Store.Backend = c.backend
	}

	if c.dbPath != "" {
		cfg.Store.Path = c.dbPath
	}

	// Logs go to stderr so stdout stays clean for export.
	cfg.Log.Level = "warn"
	if c.verbose {
		cfg.Log.Level = "debug"
	}

	if cfg.Log.Format == "json" {
		cfg.Log.Format = "text"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := bootstrap.NewLogger(cfg, c.errOut)

	core, err := bootstrap.Build(cmd.Context(), cfg, logger, bootstrap.Options{})
	if err != nil {
		return err
	}

	if cfg.Store.Backend == "memory" {
		fmt.Fprintln(c.errOut, "warning: memory backend, changes are discarded on exit")
	}

	c.cfg = cfg
	c.core = core

	return nil
}

// withCore runs fn and always releases the core afterwards. Cobra skips
// post-run hooks when RunE fails, so teardown cannot live there.
func (c *cli) withCore(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		return errors.Join(err, c.teardown(cmd.Context()))
	}
}

func (c *cli) teardown(ctx context.Context) error {
	if c.core == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()

	err := c.core.Close(ctx)
	c.core = nil

	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
