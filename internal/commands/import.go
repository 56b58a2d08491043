package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sitebooks/sitebooks/internal/importer"
	"github.com/sitebooks/sitebooks/internal/money"
)

func newImportCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Batch journal imports",
	}
	cmd.AddCommand(
		newImportScanCommand(g),
		newImportParseCommand(g),
		newImportCommitCommand(g),
	)
	return cmd
}

func newImportScanCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List files waiting in the import directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			files, err := importer.Scan(a.root, a.cfg.Import.Dir, importer.DefaultRegistry())
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No files to import")
				return nil
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\n", f.Name, f.Format, f.Size)
			}
			return nil
		},
	}
}

// loadMapping reads a YAML (or JSON) column mapping, or detects one from the
// header row when path is empty.
func loadMapping(path string, t importer.Table) (importer.ColumnMapping, error) {
	if path == "" {
		return importer.DetectMapping(t.Columns), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return importer.ColumnMapping{}, fmt.Errorf("reading mapping: %w", err)
	}
	var m importer.ColumnMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return importer.ColumnMapping{}, fmt.Errorf("parsing mapping: %w", err)
	}
	return m, nil
}

// importFile resolves a file argument: as given, else under the import dir.
func (a *app) importFile(arg string) string {
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	return filepath.Join(a.root, a.cfg.Import.Dir, arg)
}

func printParse(w io.Writer, res importer.ParseResult) {
	fmt.Fprintf(w, "%d rows, %d vouchers, %d with errors\n", res.TotalRows, res.TotalVouchers, res.InvalidCount())
	for _, e := range res.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	for _, v := range res.Vouchers {
		state := "ok"
		if !v.Valid() {
			state = "invalid"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\tdebit %s\tcredit %s\n",
			v.Key, v.Date.Format(dateLayout), state, money.Format(v.TotalDebit), money.Format(v.TotalCredit))
		for _, e := range v.Errors {
			fmt.Fprintf(w, "  error: %s\n", e)
		}
		for _, warn := range v.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warn)
		}
	}
}

func newImportParseCommand(g *globals) *cobra.Command {
	var mappingPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Validate an import file without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			t, err := importer.DefaultRegistry().Load(a.importFile(args[0]))
			if err != nil {
				return err
			}
			m, err := loadMapping(mappingPath, t)
			if err != nil {
				return err
			}
			res, err := a.reconciler.Parse(ctx, a.actor, t, m)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printParse(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&mappingPath, "mapping", "", "column mapping file (default: detect from the header)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func newImportCommitCommand(g *globals) *cobra.Command {
	var mappingPath string
	var post bool
	var exclude []string

	cmd := &cobra.Command{
		Use:   "commit <file>",
		Short: "Create draft vouchers from a clean import file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			path := a.importFile(args[0])
			t, err := importer.DefaultRegistry().Load(path)
			if err != nil {
				return err
			}
			m, err := loadMapping(mappingPath, t)
			if err != nil {
				return err
			}
			parsed, err := a.reconciler.Parse(ctx, a.actor, t, m)
			if err != nil {
				return err
			}
			parsed = parsed.Exclude(exclude)
			if err := importer.CheckCommittable(parsed); err != nil {
				printParse(cmd.ErrOrStderr(), parsed)
				return err
			}

			opts := importer.CommitOptions{PostAfterCommit: a.cfg.Import.PostAfterCommit}
			if cmd.Flags().Changed("post") {
				opts.PostAfterCommit = post
			}
			res, err := a.reconciler.Commit(ctx, a.actor, parsed.Vouchers, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d, skipped %d, posted %d\n", res.Imported, res.Skipped, res.Posted)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "%s: %s\n", e.VoucherKey, e.Error)
			}

			inbox := filepath.Join(a.root, a.cfg.Import.Dir)
			if res.Imported > 0 && filepath.Dir(path) == inbox {
				if err := importer.MarkProcessed(a.root, a.cfg.Import.Dir, filepath.Base(path)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mappingPath, "mapping", "", "column mapping file (default: detect from the header)")
	cmd.Flags().BoolVar(&post, "post", false, "post every imported voucher (default: import.post_after_commit)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "voucher keys to leave out of the commit")
	return cmd
}
