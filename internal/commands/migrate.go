package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitebooks/sitebooks/internal/accounts"
)

func newMigrateCommand(g *globals) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if a.sql == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "memory driver: nothing to migrate")
				return nil
			}
			if err := a.sql.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Tables are up to date")

			if !seed {
				return nil
			}
			entries, err := accounts.Load(a.root)
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
	cmd.Flags().BoolVar(&seed, "seed", false, "also load the project chart of accounts")
	return cmd
}
