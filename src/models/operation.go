// backend/src/models/operation.go
package models

import "time"

// Canonical operation types emitted by the extractors. Every record leaving
// the pipeline carries one of these tags (or, as a last resort, the raw
// broker label / "unknown").
const (
	OpDividend         = "dividend"
	OpCoupon           = "coupon"
	OpRepayment        = "repayment"
	OpAmortization     = "amortization"
	OpDeposit          = "deposit"
	OpWithdrawal       = "withdrawal"
	OpCommission       = "commission"
	OpCommissionRefund = "commission_refund"
	OpWithholding      = "withholding"
	OpRefund           = "refund"
	OpOtherIncome      = "other_income"
	OpOtherExpense     = "other_expense"
	OpTransfer         = "transfer"
	OpBuy              = "buy"
	OpSale             = "sale"
	OpAssetReceive     = "asset_receive"
	OpAssetWithdrawal  = "asset_withdrawal"
	OpUnknown          = "unknown"
)

// OperationRecord is the unified representation of a single financial
// operation extracted from a broker statement. Each extractor populates as
// many fields as its sub-report carries; records are never mutated after
// construction.
type OperationRecord struct {
	// Date is the effective settlement/event date. Nil when the source row
	// carried no parsable date; serialized as JSON null.
	Date          *time.Time `json:"date"`
	OperationType string     `json:"operation_type"`
	PaymentSum    float64    `json:"payment_sum"`
	Currency      string     `json:"currency"`
	Ticker        string     `json:"ticker"`
	ISIN          string     `json:"isin"`
	RegNumber     string     `json:"reg_number"`
	Price         float64    `json:"price"`
	Quantity      float64    `json:"quantity"`
	ACI           float64    `json:"aci"` // accrued coupon interest (НКД), trades only
	Comment       string     `json:"comment"`
	OperationID   string     `json:"operation_id"`
	Commission    float64    `json:"commission"`
}

// TradeStats is the diagnostic block produced by the trade extractor.
type TradeStats struct {
	TotalRows       int     `json:"total_rows"`
	Parsed          int     `json:"parsed"`
	SkippedNoQty    int     `json:"skipped_no_qty"`
	SkippedNoDate   int     `json:"skipped_no_date"`
	SkippedInvalid  int     `json:"skipped_invalid"`
	TotalCommission float64 `json:"total_commission"`
	Error           string  `json:"error,omitempty"`
}

// FinOpsStats is the diagnostic block produced by the financial-operation
// extractor. The running totals are accumulated with decimal precision and
// formatted to 4 decimal places; they are audit artifacts, not inputs to
// any control flow.
type FinOpsStats struct {
	TotalRows       int               `json:"total_rows"`
	Parsed          int               `json:"parsed"`
	Skipped         int               `json:"skipped"`
	TotalsByType    map[string]string `json:"totals_by_type,omitempty"`
	TotalsByLabel   map[string]string `json:"totals_by_label,omitempty"`
	TotalIncome     string            `json:"total_income,omitempty"`
	TotalExpense    string            `json:"total_expense,omitempty"`
	ExampleComments []string          `json:"example_comments,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// TransferStats is the diagnostic block produced by the transfer/conversion
// extractor.
type TransferStats struct {
	TotalRows            int    `json:"total_rows"`
	Parsed               int    `json:"parsed"`
	SkippedNotConversion int    `json:"skipped_not_conversion"`
	SkippedNoDate        int    `json:"skipped_no_date"`
	SkippedNoQty         int    `json:"skipped_no_qty"`
	SkippedInvalid       int    `json:"skipped_invalid"`
	Error                string `json:"error,omitempty"`
}

// ParseMeta aggregates the per-extractor diagnostics for one parse call.
type ParseMeta struct {
	FinOpsRawCount        int           `json:"fin_ops_raw_count"`
	TradeOpsRawCount      int           `json:"trade_ops_raw_count"`
	TransferOpsRawCount   int           `json:"transfer_ops_raw_count"`
	TotalOpsCount         int           `json:"total_ops_count"`
	FinOpsStats           FinOpsStats   `json:"fin_ops_stats"`
	TradeOpsStats         TradeStats    `json:"trade_ops_stats"`
	TransferOpsStats      TransferStats `json:"transfer_ops_stats"`
	AfterDedupeFromFin    int           `json:"after_dedupe_from_fin"`
	AfterDedupeFromTrade  int           `json:"after_dedupe_from_trade"`
	AfterDedupeFromXfer   int           `json:"after_dedupe_from_transfer"`
	Error                 string        `json:"error,omitempty"`
}

// ParseResult is the single structure returned for every parse call,
// whatever happened: on a hard input error Operations is empty and
// Meta.Error describes the failure.
type ParseResult struct {
	Operations []OperationRecord `json:"operations"`
	Meta       ParseMeta         `json:"meta"`
}
