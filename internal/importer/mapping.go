package importer

import (
	"fmt"
	"strings"
)

// ColumnMapping names the table column that carries each voucher field. Date
// and Account are required, and at least one of Debit or Credit.
type ColumnMapping struct {
	Date        string `json:"date" yaml:"date"`
	Account     string `json:"account" yaml:"account"`
	Debit       string `json:"debit,omitempty" yaml:"debit,omitempty"`
	Credit      string `json:"credit,omitempty" yaml:"credit,omitempty"`
	VoucherKey  string `json:"voucherKey,omitempty" yaml:"voucher_key,omitempty"`
	Reference   string `json:"reference,omitempty" yaml:"reference,omitempty"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Narration   string `json:"narration,omitempty" yaml:"narration,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate checks that the required fields are mapped and, when columns is
// not empty, that every mapped column exists.
func (m ColumnMapping) Validate(columns []string) error {
	if m.Date == "" {
		return fmt.Errorf("date column is not mapped")
	}
	if m.Account == "" {
		return fmt.Errorf("account column is not mapped")
	}
	if m.Debit == "" && m.Credit == "" {
		return fmt.Errorf("neither debit nor credit column is mapped")
	}
	if len(columns) == 0 {
		return nil
	}
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	for _, c := range m.columns() {
		if !have[c] {
			return fmt.Errorf("mapped column %q not in file", c)
		}
	}
	return nil
}

func (m ColumnMapping) columns() []string {
	var out []string
	for _, c := range []string{m.Date, m.Account, m.Debit, m.Credit, m.VoucherKey, m.Reference, m.Type, m.Narration, m.Description} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

var headerAliases = map[string][]string{
	"date":        {"date", "voucher date", "txn date", "transaction date"},
	"account":     {"account", "account code", "account name", "ledger", "gl account"},
	"debit":       {"debit", "dr", "debit amount"},
	"credit":      {"credit", "cr", "credit amount"},
	"voucherKey":  {"voucher", "voucher no", "voucher number", "voucher key", "entry", "journal no"},
	"reference":   {"reference", "reference no", "ref", "ref no"},
	"type":        {"type", "voucher type"},
	"narration":   {"narration", "memo", "remarks"},
	"description": {"description", "details", "particulars"},
}

// DetectMapping guesses a mapping from common header names.
func DetectMapping(columns []string) ColumnMapping {
	byName := make(map[string]string, len(columns))
	for _, c := range columns {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, ok := byName[key]; !ok {
			byName[key] = c
		}
	}
	pick := func(field string) string {
		for _, alias := range headerAliases[field] {
			if c, ok := byName[alias]; ok {
				return c
			}
		}
		return ""
	}
	return ColumnMapping{
		Date:        pick("date"),
		Account:     pick("account"),
		Debit:       pick("debit"),
		Credit:      pick("credit"),
		VoucherKey:  pick("voucherKey"),
		Reference:   pick("reference"),
		Type:        pick("type"),
		Narration:   pick("narration"),
		Description: pick("description"),
	}
}
