package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sitebooks/sitebooks/internal/journal"
	"github.com/sitebooks/sitebooks/internal/ledger"
	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/money"
	"github.com/sitebooks/sitebooks/internal/store"
)

const dateLayout = "2006-01-02"

func newVoucherCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voucher",
		Short: "Voucher lifecycle operations",
	}
	cmd.AddCommand(
		newVoucherCreateCommand(g),
		newVoucherTransitionCommand(g, "submit", "Submit a draft for review", func(a *app) transition { return a.machine.Submit }),
		newVoucherTransitionCommand(g, "approve", "Approve a submitted voucher", func(a *app) transition { return a.machine.Approve }),
		newVoucherPostCommand(g),
		newVoucherReverseCommand(g),
		newVoucherExportCommand(g),
	)
	return cmd
}

type transition func(ctx context.Context, actor ledger.Actor, voucherID string) (model.Voucher, error)

func printVoucher(w io.Writer, v model.Voucher) {
	debit, credit := v.Totals()
	fmt.Fprintf(w, "%s %s %s debit %s credit %s (id %s)\n",
		v.VoucherNo, v.Status, v.Date.Format(dateLayout), money.Format(debit), money.Format(credit), v.ID)
}

// parseLine reads "ACCOUNT,DEBIT,CREDIT[,DESCRIPTION]". Blank amounts are zero.
func parseLine(raw string) (string, model.VoucherLine, error) {
	parts := strings.SplitN(raw, ",", 4)
	if len(parts) < 3 {
		return "", model.VoucherLine{}, fmt.Errorf("line %q: want ACCOUNT,DEBIT,CREDIT[,DESCRIPTION]", raw)
	}
	amount := func(s string) (decimal.Decimal, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.Zero, nil
		}
		return money.Parse(s)
	}
	debit, err := amount(parts[1])
	if err != nil {
		return "", model.VoucherLine{}, fmt.Errorf("line %q: debit: %w", raw, err)
	}
	credit, err := amount(parts[2])
	if err != nil {
		return "", model.VoucherLine{}, fmt.Errorf("line %q: credit: %w", raw, err)
	}
	l := model.VoucherLine{Debit: debit, Credit: credit}
	if len(parts) == 4 {
		l.Description = strings.TrimSpace(parts[3])
	}
	return strings.TrimSpace(parts[0]), l, nil
}

// resolveLines maps account codes to ids. Tokens that are not codes are
// passed through as ids.
func (a *app) resolveLines(ctx context.Context, tokens []string, lines []model.VoucherLine) error {
	return a.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		gate := ledger.NewAccountGate(tx)
		for i, tok := range tokens {
			acct, ok, err := gate.ByCode(ctx, a.actor.CompanyID, tok)
			if err != nil {
				return err
			}
			if ok {
				lines[i].AccountID = acct.ID
			} else {
				lines[i].AccountID = tok
			}
		}
		return nil
	})
}

func newVoucherCreateCommand(g *globals) *cobra.Command {
	var (
		date      string
		vtype     string
		narration string
		reference string
		project   string
		rawLines  []string
		post      bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft voucher",
		Example: `  sitebooks voucher create --date 2025-03-01 --narration "Cash sale" \
    --line 1010,100, --line 4010,,100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.Parse(dateLayout, date)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
			tokens := make([]string, 0, len(rawLines))
			lines := make([]model.VoucherLine, 0, len(rawLines))
			for _, raw := range rawLines {
				tok, l, err := parseLine(raw)
				if err != nil {
					return err
				}
				tokens = append(tokens, tok)
				lines = append(lines, l)
			}

			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.resolveLines(ctx, tokens, lines); err != nil {
				return err
			}
			h := ledger.Header{
				Date:      d,
				Type:      model.VoucherType(strings.ToUpper(vtype)),
				Narration: narration,
				ProjectID: project,
				Reference: reference,
			}
			v, err := a.machine.CreateDraft(ctx, a.actor, h, lines)
			if err != nil {
				return err
			}
			if post {
				if v, err = a.machine.Post(ctx, a.actor, v.ID); err != nil {
					return err
				}
			}
			printVoucher(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "voucher date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("date")
	cmd.Flags().StringVar(&vtype, "type", string(model.VoucherTypeJournal), "JOURNAL, PAYMENT, RECEIPT or CONTRA")
	cmd.Flags().StringVar(&narration, "narration", "", "narration")
	cmd.Flags().StringVar(&reference, "reference", "", "external reference, unique per company")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringArrayVar(&rawLines, "line", nil, "ACCOUNT,DEBIT,CREDIT[,DESCRIPTION]; repeat per line")
	cmd.Flags().BoolVar(&post, "post", false, "post the voucher right after creating it")
	return cmd
}

func newVoucherTransitionCommand(g *globals, use, short string, pick func(*app) transition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <voucher-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			v, err := pick(a)(ctx, a.actor, args[0])
			if err != nil {
				return err
			}
			printVoucher(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newVoucherPostCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "post <voucher-id>...",
		Short: "Post vouchers to the ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			res := a.machine.PostBatch(ctx, a.actor, args)
			for _, v := range res.Posted {
				printVoucher(cmd.OutOrStdout(), v)
			}
			var errs []error
			for _, f := range res.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", f.VoucherID, f.Err)
				errs = append(errs, f.Err)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d vouchers not posted: %w", len(errs), len(args), errors.Join(errs...))
			}
			return nil
		},
	}
}

func newVoucherReverseCommand(g *globals) *cobra.Command {
	var date, narration string

	cmd := &cobra.Command{
		Use:   "reverse <voucher-id>",
		Short: "Reverse a posted voucher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ledger.ReverseOptions{Narration: narration}
			if date != "" {
				d, err := time.Parse(dateLayout, date)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
				opts.Date = d
			}

			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.reversals.Reverse(ctx, a.actor, args[0], opts)
			if err != nil {
				return err
			}
			printVoucher(cmd.OutOrStdout(), res.Source)
			printVoucher(cmd.OutOrStdout(), res.Reversal)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "reversal date, YYYY-MM-DD (default: the day after the source)")
	cmd.Flags().StringVar(&narration, "narration", "", "narration (default: Reversal of <voucher no>)")
	return cmd
}

func newVoucherExportCommand(g *globals) *cobra.Command {
	var (
		out      string
		statuses []string
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write vouchers as CSV, one row per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := store.VoucherQuery{}
			for _, s := range statuses {
				q.Statuses = append(q.Statuses, model.VoucherStatus(strings.ToUpper(s)))
			}
			var err error
			if from != "" {
				if q.From, err = time.Parse(dateLayout, from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			if to != "" {
				if q.To, err = time.Parse(dateLayout, to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}

			ctx := cmd.Context()
			a, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			q.CompanyID = a.actor.CompanyID

			w, done, err := output(cmd, out)
			if err != nil {
				return err
			}
			n, err := journal.NewService(a.store).Export(ctx, w, q)
			if err != nil {
				return err
			}
			if err := done(); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d vouchers to %s\n", n, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "statuses to export (default: POSTED,REVERSED)")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	return cmd
}
