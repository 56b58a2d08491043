package accounts

import "github.com/sitebooks/sitebooks/internal/model"

// DefaultChart returns the starter chart of accounts for a business kind.
// Group accounts (1000, 2000, ...) are parents and never receive postings.
func DefaultChart(kind string) []Entry {
	switch kind {
	case "construction":
		return constructionChart()
	default:
		return constructionChart()
	}
}

func constructionChart() []Entry {
	return []Entry{
		{Code: "1000", Name: "Current Assets", Type: model.AccountTypeAsset, Active: true},
		{Code: "1010", Name: "Cash", Type: model.AccountTypeAsset, ParentCode: "1000", Active: true},
		{Code: "1020", Name: "Bank", Type: model.AccountTypeAsset, ParentCode: "1000", Active: true},
		{Code: "1200", Name: "Inventory", Type: model.AccountTypeAsset, ParentCode: "1000", Active: true},
		{Code: "1300", Name: "Retention Receivable", Type: model.AccountTypeAsset, ParentCode: "1000", Active: true},
		{Code: "2000", Name: "Current Liabilities", Type: model.AccountTypeLiability, Active: true},
		{Code: "2010", Name: "Accounts Payable", Type: model.AccountTypeLiability, ParentCode: "2000", Active: true},
		{Code: "2020", Name: "Retention Payable", Type: model.AccountTypeLiability, ParentCode: "2000", Active: true},
		{Code: "3000", Name: "Equity", Type: model.AccountTypeEquity, Active: true},
		{Code: "3010", Name: "Owner's Capital", Type: model.AccountTypeEquity, ParentCode: "3000", Active: true},
		{Code: "4000", Name: "Revenue", Type: model.AccountTypeIncome, Active: true},
		{Code: "4010", Name: "Contract Revenue", Type: model.AccountTypeIncome, ParentCode: "4000", Active: true},
		{Code: "5000", Name: "Direct Costs", Type: model.AccountTypeExpense, Active: true},
		{Code: "5010", Name: "Direct Materials", Type: model.AccountTypeExpense, ParentCode: "5000", Active: true},
		{Code: "5020", Name: "Subcontractors", Type: model.AccountTypeExpense, ParentCode: "5000", Active: true},
		{Code: "5030", Name: "Site Labour", Type: model.AccountTypeExpense, ParentCode: "5000", Active: true},
		{Code: "5040", Name: "Equipment Hire", Type: model.AccountTypeExpense, ParentCode: "5000", Active: true},
		{Code: "6000", Name: "Overheads", Type: model.AccountTypeExpense, Active: true},
		{Code: "6010", Name: "Office Expenses", Type: model.AccountTypeExpense, ParentCode: "6000", Active: true},
		{Code: "6020", Name: "Professional Fees", Type: model.AccountTypeExpense, ParentCode: "6000", Active: true},
	}
}
