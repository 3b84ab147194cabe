// backend/src/parsers/vtb/finops.go
package vtb

import (
	"context"
	"io"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/vtbparse/backend/src/logger"
	"github.com/username/vtbparse/backend/src/models"
	"github.com/username/vtbparse/backend/src/utils"
)

const maxExampleComments = 5

// ExtractFinOps scans the money-movement sub-report and returns one
// record per classified row: dividends, coupons, redemptions, cash
// deposits/withdrawals, commissions, tax events and the rest of the
// broker's cash ledger. Rows already represented by the trade extractor
// (settlement legs, repo, overnight) are skipped by label.
//
// A failure to read the document is reported through stats.Error with a
// nil record slice; per-row defects only increment Skipped.
func ExtractFinOps(ctx context.Context, src *Source) ([]models.OperationRecord, models.FinOpsStats) {
	log := logger.FromContext(ctx)
	stats := models.FinOpsStats{
		TotalsByType:  map[string]string{},
		TotalsByLabel: map[string]string{},
	}

	var root *xmlNode
	err := src.withReader(func(r io.Reader) error {
		var err error
		root, err = decodeTree(r)
		return err
	})
	if err != nil {
		log.Error("financial operation extraction failed", "error", err)
		stats.Error = err.Error()
		return nil, stats
	}

	report := root.findFirst(func(n *xmlNode) bool { return n.nameContains("BrokerMoneyMove") })
	if report == nil {
		report = root.findFirst(func(n *xmlNode) bool { return n.hasName("Report") })
	}
	if report == nil {
		report = root
	}

	acc := newFinOpsAccumulator()
	var records []models.OperationRecord
	collectFinOpsRows(report, func(row *xmlNode, settlement string) {
		stats.TotalRows++
		rec, ok := buildFinOpsRecord(row, settlement, acc)
		if !ok {
			stats.Skipped++
			return
		}
		records = append(records, rec)
		stats.Parsed++
	})
	acc.fill(&stats)
	return records, stats
}

// collectFinOpsRows enumerates the report's settlement-date grouping nodes
// and emits every "rn" ledger row nested beneath one. Rows outside a
// settlement group are not part of the money-movement table.
func collectFinOpsRows(report *xmlNode, emit func(row *xmlNode, settlement string)) {
	report.walk(func(n *xmlNode) {
		if !n.hasName("settlement_date") {
			return
		}
		settlement := n.attr("settlement_date", "date", "value")
		n.walk(func(row *xmlNode) {
			if row != n && row.hasName("rn") {
				emit(row, settlement)
			}
		})
	})
}

// finOpsAccumulator keeps the exact-precision running totals reported in
// the diagnostics block.
type finOpsAccumulator struct {
	byType   map[string]decimal.Decimal
	byLabel  map[string]decimal.Decimal
	income   decimal.Decimal
	expense  decimal.Decimal
	comments []string
}

func newFinOpsAccumulator() *finOpsAccumulator {
	return &finOpsAccumulator{
		byType:  map[string]decimal.Decimal{},
		byLabel: map[string]decimal.Decimal{},
	}
}

func (a *finOpsAccumulator) add(opType, label string, amount decimal.Decimal) {
	a.byType[opType] = a.byType[opType].Add(amount)
	if label = strings.TrimSpace(label); label != "" {
		a.byLabel[label] = a.byLabel[label].Add(amount)
	}
	if amount.IsPositive() {
		a.income = a.income.Add(amount)
	} else {
		a.expense = a.expense.Add(amount.Abs())
	}
}

// noteComment records the first few non-empty comments seen in document
// order, skipped rows included, as a diagnostic sample.
func (a *finOpsAccumulator) noteComment(comment string) {
	if comment != "" && len(a.comments) < maxExampleComments {
		a.comments = append(a.comments, comment)
	}
}

func (a *finOpsAccumulator) fill(stats *models.FinOpsStats) {
	for k, v := range a.byType {
		stats.TotalsByType[k] = v.StringFixed(4)
	}
	for k, v := range a.byLabel {
		stats.TotalsByLabel[k] = v.StringFixed(4)
	}
	if !a.income.IsZero() || !a.expense.IsZero() {
		stats.TotalIncome = a.income.StringFixed(4)
		stats.TotalExpense = a.expense.StringFixed(4)
	}
	stats.ExampleComments = a.comments
}

// buildFinOpsRecord turns one rn element into a record, or reports false
// when the row is on the skip list, classified as droppable, or carries
// nothing at all.
func buildFinOpsRecord(row *xmlNode, settlement string, acc *finOpsAccumulator) (models.OperationRecord, bool) {
	operNode := row.findFirst(func(n *xmlNode) bool { return n.hasName("oper_type") })
	label := row.attr("oper_type")
	if operNode != nil {
		if v := operNode.attr("oper_type"); v != "" {
			label = v
		}
	}

	// The free-text detail lives in a nested comment element, under the
	// operation-type node first, else directly under the row. Older
	// vintages inline it as an attribute instead.
	var commentNode *xmlNode
	if operNode != nil {
		commentNode = operNode.findFirst(func(n *xmlNode) bool { return n.hasName("comment") })
	}
	if commentNode == nil {
		commentNode = row.findFirst(func(n *xmlNode) bool { return n.hasName("comment") })
	}
	comment := ""
	if commentNode != nil {
		comment = commentNode.attr("comment", "notes1")
	}
	if comment == "" {
		comment = row.attr("comment", "notes1")
		if operNode != nil {
			if v := operNode.attr("comment", "notes1"); v != "" {
				comment = v
			}
		}
	}
	comment = strings.TrimSpace(comment)
	acc.noteComment(comment)

	amountStr, currency := finOpsAmount(row)
	amount := toFloat(amountStr)

	if shouldSkip(label, comment) {
		return models.OperationRecord{}, false
	}
	if strings.TrimSpace(label) == "" && amount == 0 {
		return models.OperationRecord{}, false
	}

	opType := classifyOperation(label, comment, amount)
	if opType == opDrop {
		return models.OperationRecord{}, false
	}

	payment := amount
	commission := 0.0
	if strings.Contains(strings.ToLower(label), "комисси") {
		commission = math.Abs(amount)
		payment = 0
	}

	var date *time.Time
	if t, ok := parseDateTime(settlement); ok {
		date = &t
	} else if t, ok := parseDateTime(row.attr("last_update")); ok {
		date = &t
	}

	dec, hasDec := parseDecimal(amountStr)
	if !hasDec {
		dec = decimal.Zero
	}
	acc.add(opType, label, dec)

	return models.OperationRecord{
		Date:          date,
		OperationType: opType,
		PaymentSum:    payment,
		Currency:      utils.CanonicalCurrency(currency),
		ISIN:          findISIN(comment),
		RegNumber:     extractRegNumber(comment),
		Comment:       comment,
		// ISIN digit runs would otherwise win the id scan over contract
		// numbers, so they are masked first.
		OperationID: firstNumericID(label, reISIN.ReplaceAllString(comment, " ")),
		Commission:  commission,
	}, true
}

// finOpsAmount resolves the row's monetary value: a currency-tagged child
// first, then the vintage textbox fallbacks. Returns the raw string so
// the decimal totals keep full precision.
func finOpsAmount(row *xmlNode) (amount, currency string) {
	var found *xmlNode
	row.walk(func(n *xmlNode) {
		if found != nil || n == row {
			return
		}
		if n.attr("p_code", "currency") == "" {
			return
		}
		if n.attr("volume", "volume1", "amount") != "" {
			found = n
		}
	})
	if found != nil {
		return found.attr("volume", "volume1", "amount"), found.attr("p_code", "currency")
	}

	currency = row.attr("p_code", "currency")
	for _, fb := range []struct{ name, attr string }{
		{"Textbox83", "money_volume"},
		{"Textbox84", "all_volume"},
		{"Textbox93", "debet_volume"},
	} {
		node := row
		if !row.hasName(fb.name) {
			node = row.findFirst(func(n *xmlNode) bool { return n.hasName(fb.name) })
		}
		if node == nil {
			continue
		}
		if v := node.attr(strings.ToLower(fb.attr)); v != "" {
			return v, currency
		}
	}
	return row.attr("volume", "volume1", "amount"), currency
}
