// pkg/registry/aliases.go
package registry

// AliasTableVersion identifies the alias table revision. Changing the table
// is a compatibility-sensitive operation: it affects which historical
// pipelines silently re-resolve to a different tool, so every edit bumps the
// version and ships with a deploy.
const AliasTableVersion = "2026-07-14"

// toolAliases maps canonical tool ids to known hallucinated synonyms as
// emitted by the reasoning service. Process-wide immutable configuration;
// there is deliberately no mutation API.
var toolAliases = map[string][]string{
	"get_all_bills": {
		"get_vendor_bills", "get_bills", "list_bills", "fetch_bills", "vendor_bills",
	},
	"get_all_invoices": {
		"get_invoices", "list_invoices", "fetch_invoices", "customer_invoices", "get_customer_invoices",
	},
	"get_cash_balance": {
		"get_balance", "get_cash", "cash_balance", "get_bank_balance", "fetch_balance",
	},
	"get_all_vendors": {
		"get_vendors", "list_vendors", "fetch_vendors", "vendor_list",
	},
	"get_all_customers": {
		"get_customers", "list_customers", "fetch_customers", "customer_list",
	},
	"get_all_projects": {
		"get_projects", "list_projects", "fetch_projects", "project_list",
	},
	"get_profit_loss": {
		"get_pnl", "profit_loss", "get_income_statement", "pnl_report",
	},
	"get_expense_summary": {
		"get_expenses", "list_expenses", "expense_report", "fetch_expenses",
	},
	"get_ar_aging": {
		"get_receivables", "ar_aging", "accounts_receivable", "get_aging_report",
	},
	"get_ap_aging": {
		"get_payables", "ap_aging", "accounts_payable",
	},
	"create_invoice": {
		"new_invoice", "add_invoice", "make_invoice",
	},
	"record_payment": {
		"add_payment", "create_payment", "log_payment",
	},
}

// ToolAliases returns the canonical-id -> synonyms table. Callers must not
// mutate the returned map.
func ToolAliases() map[string][]string {
	return toolAliases
}
