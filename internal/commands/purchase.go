package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPurchaseCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchase",
		Short: "Purchase bill operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ensure <purchase-id>",
		Short: "Create the purchase's draft voucher unless it already has one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.purchases.EnsureVoucher(ctx, a.actor, args[0])
			if err != nil {
				return err
			}
			verb := "existing"
			if res.Created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purchase %s: voucher %s (%s)\n", args[0], res.VoucherID, verb)
			return nil
		},
	})
	return cmd
}
