package model

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the five account classes.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// Account is a node in a company's chart of accounts. Accounts form a forest
// per company; only leaves may appear on voucher lines.
type Account struct {
	ID        string
	CompanyID string
	Code      string
	Name      string
	Type      AccountType
	ParentID  string // "" = top-level
	IsActive  bool
}

// Label renders the account the way users see it, e.g. "5010 (Direct Materials)".
func (a Account) Label() string {
	return a.Code + " (" + a.Name + ")"
}
