package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quotesync/internal/app"
	"github.com/jsamuelsen/quotesync/internal/domain"
)

func (c *cli) exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the quote list as JSON",
		Args:  cobra.NoArgs,
		RunE: c.withCore(func(*cobra.Command, []string) error {
			if out == "" || out == "-" {
				return c.core.Store.ExportSnapshot(c.out)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}

			if err := c.core.Store.ExportSnapshot(f); err != nil {
				_ = f.Close()
				return err
			}

			if err := f.Close(); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}

			fmt.Fprintf(c.errOut, "exported %d quotes to %s\n", c.core.Store.Len(), out)

			return nil
		}),
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")

	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge quotes from a JSON file",
		Long: `Merge quotes from a JSON array of {text, category} objects.

Records equal to one already stored are skipped. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: c.withCore(func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			added, err := c.core.Store.ImportJSON(cmd.Context(), data)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.out, "imported %d quotes (%d total)\n", added, c.core.Store.Len())

			return nil
		}),
	}
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	return data, nil
}

func (c *cli) addCmd() *cobra.Command {
	var text, category string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a quote",
		Args:  cobra.NoArgs,
		RunE: c.withCore(func(cmd *cobra.Command, _ []string) error {
			q, err := c.core.Store.Add(cmd.Context(), text, category)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.out, "added %q (%s)\n", q.Text, q.Category)

			return nil
		}),
	}

	cmd.Flags().StringVar(&text, "text", "", "Quote text")
	cmd.Flags().StringVar(&category, "category", "", "Quote category")

	return cmd
}

func (c *cli) randomCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Print a random quote",
		Long:  `Print a random quote from --category, or from the selected category when omitted.`,
		Args:  cobra.NoArgs,
		RunE: c.withCore(func(cmd *cobra.Command, _ []string) error {
			if category == "" {
				selected, err := c.core.Store.SelectedCategory(cmd.Context())
				if err != nil {
					return err
				}

				category = selected
			}

			q, err := c.core.Store.Random(category)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.out, "%q (%s)\n", q.Text, q.Category)

			return nil
		}),
	}

	cmd.Flags().StringVar(&category, "category", "", "Category to draw from (\"all\" for every category)")

	return cmd
}

func (c *cli) categoriesCmd() *cobra.Command {
	var selectCategory string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List or select categories",
		Long:  `List categories, marking the selected one with *. --select persists a new selection.`,
		Args:  cobra.NoArgs,
		RunE: c.withCore(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if selectCategory != "" {
				if err := c.core.Store.SelectCategory(ctx, selectCategory); err != nil {
					return err
				}
			}

			selected, err := c.core.Store.SelectedCategory(ctx)
			if err != nil {
				return err
			}

			for _, name := range slices.Concat([]string{domain.AllCategories}, c.core.Store.Categories()) {
				marker := " "
				if name == selected {
					marker = "*"
				}

				fmt.Fprintf(c.out, "%s %s\n", marker, name)
			}

			return nil
		}),
	}

	cmd.Flags().StringVar(&selectCategory, "select", "", "Category to select")

	return cmd
}

func (c *cli) syncCmd() *cobra.Command {
	var prefer string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle against the remote",
		Long: `Fetch remote quotes and merge the ones not yet known locally.

When the remote disagrees with a local quote of the same ID, the cycle holds
the conflicts. --prefer server|local resolves all of them in one go;
without it the conflicts are listed and nothing is merged.`,
		Args: cobra.NoArgs,
		RunE: c.withCore(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if prefer != "" {
				if _, err := domain.ParseResolution(prefer); err != nil {
					return err
				}
			}

			report, err := c.core.Sync.Sync(ctx)
			if err != nil {
				return err
			}

			if report.Error != "" {
				return fmt.Errorf("sync failed: %s", report.Error)
			}

			fmt.Fprintf(c.out, "fetched %d, added %d, conflicts %d\n", report.Fetched, report.Added, len(report.Conflicts))

			if len(report.Conflicts) == 0 {
				return nil
			}

			if prefer == "" {
				printConflicts(c.out, report.Conflicts)
				return errors.New("conflicts pending, rerun with --prefer server or --prefer local")
			}

			return c.resolveAll(cmd, report.Conflicts, prefer)
		}),
	}

	cmd.Flags().StringVar(&prefer, "prefer", "", "Resolve every conflict with this side (server or local)")

	return cmd
}

func (c *cli) resolveAll(cmd *cobra.Command, conflicts []domain.Conflict, prefer string) error {
	for _, conflict := range conflicts {
		if err := c.core.Sync.ResolveConflict(cmd.Context(), conflict.ID, prefer); err != nil {
			return err
		}
	}

	fmt.Fprintf(c.out, "resolved %d conflicts using %s version\n", len(conflicts), prefer)

	if c.core.Sync.Status().State != app.SyncIdle {
		return errors.New("conflicts remain after resolution")
	}

	return nil
}

func printConflicts(w io.Writer, conflicts []domain.Conflict) {
	for _, conflict := range conflicts {
		fmt.Fprintf(w, "conflict %d\n  server: %q (%s)\n  local:  %q (%s)\n",
			conflict.ID,
			conflict.Server.Text, conflict.Server.Category,
			conflict.Local.Text, conflict.Local.Category,
		)
	}
}

func (c *cli) pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Post every local-only quote to the remote",
		Args:  cobra.NoArgs,
		RunE: c.withCore(func(cmd *cobra.Command, _ []string) error {
			report := c.core.Sync.PushLocal(cmd.Context())

			fmt.Fprintf(c.out, "posted %d of %d local quotes\n", report.Posted, report.Attempted)

			for _, msg := range report.Errors {
				fmt.Fprintf(c.errOut, "  %s\n", msg)
			}

			if report.Failed > 0 {
				return fmt.Errorf("%d posts failed", report.Failed)
			}

			return nil
		}),
	}
}
