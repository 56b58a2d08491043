package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sitebooks/sitebooks/internal/accounts"
)

func newAccountsCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Chart of accounts operations",
	}
	cmd.AddCommand(newAccountsLoadCommand(g), newAccountsExportCommand(g))
	return cmd
}

func newAccountsLoadCommand(g *globals) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Upsert the chart of accounts file into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			var entries []accounts.Entry
			if file == "" {
				entries, err = accounts.Load(a.root)
			} else {
				entries, err = readChartFile(file)
			}
			if err != nil {
				return err
			}

			res, err := accounts.Seed(ctx, a.store, a.actor.CompanyID, entries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chart of accounts: %d created, %d updated\n", res.Created, res.Updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "chart CSV to load (default: the project chart)")
	return cmd
}

func readChartFile(path string) ([]accounts.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return accounts.ReadEntries(f)
}

func newAccountsExportCommand(g *globals) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored chart of accounts as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			entries, err := accounts.Export(ctx, a.store, a.actor.CompanyID)
			if err != nil {
				return err
			}
			w, done, err := output(cmd, out)
			if err != nil {
				return err
			}
			if err := accounts.WriteEntries(w, entries); err != nil {
				return err
			}
			return done()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}
