// Package journal writes the ledger journal file: one CSV row per voucher
// line.
package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/sitebooks/sitebooks/internal/model"
)

// Header is the CSV header of an exported journal.
const Header = "voucher_no,date,type,status,account_code,account_name,debit,credit,description,narration"

const (
	numFields  = 10
	dateFormat = "2006-01-02"
	colNo      = 0
	colDate    = 1
	colType    = 2
	colStatus  = 3
	colCode    = 4
	colName    = 5
	colDebit   = 6
	colCredit  = 7
	colDesc    = 8
	colNarr    = 9
)

// WriteVouchers writes every line of vouchers, header included. accounts maps
// account id to account; an unknown id is written with its id as the code.
func WriteVouchers(w io.Writer, vouchers []model.Voucher, accounts map[string]model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := 2
	for _, v := range vouchers {
		for _, l := range v.Lines {
			if err := cw.Write(MarshalLine(v, l, accounts[l.AccountID])); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
			row++
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalLine converts one voucher line to a CSV row.
func MarshalLine(v model.Voucher, l model.VoucherLine, acct model.Account) []string {
	rec := make([]string, numFields)
	rec[colNo] = v.VoucherNo
	rec[colDate] = v.Date.Format(dateFormat)
	rec[colType] = string(v.Type)
	rec[colStatus] = string(v.Status)
	rec[colCode] = acct.Code
	if rec[colCode] == "" {
		rec[colCode] = l.AccountID
	}
	rec[colName] = acct.Name

	if !l.Debit.IsZero() {
		rec[colDebit] = l.Debit.StringFixed(2)
	}
	if !l.Credit.IsZero() {
		rec[colCredit] = l.Credit.StringFixed(2)
	}

	rec[colDesc] = l.Description
	rec[colNarr] = v.Narration
	return rec
}
