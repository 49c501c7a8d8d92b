package observability

// Metric name prefixes
const (
	MetricPrefix = "nationbank"
)

// Metric names
const (
	// Ledger metrics
	BalanceChangesTotal   = MetricPrefix + ".ledger.balance_changes_total"
	AmountCredited        = MetricPrefix + ".ledger.amount_credited"
	AmountDebited         = MetricPrefix + ".ledger.amount_debited"
	LedgerMismatchesTotal = MetricPrefix + ".ledger.mismatches_total"
	LedgerDifference      = MetricPrefix + ".ledger.difference"

	// Workflow metrics
	DepositRequestsTotal     = MetricPrefix + ".deposits.requested_total"
	DepositDecisionsTotal    = MetricPrefix + ".deposits.decisions_total"
	WithdrawalRequestsTotal  = MetricPrefix + ".withdrawals.requested_total"
	WithdrawalDecisionsTotal = MetricPrefix + ".withdrawals.decisions_total"
	EscrowReleasesTotal      = MetricPrefix + ".escrow.releases_total"
)

// Label keys
const (
	LabelType   = "type"
	LabelStatus = "status"
)
