// backend/src/parsers/vtb/rules.go
package vtb

import (
	"strings"

	"github.com/username/vtbparse/backend/src/models"
)

// Classification of raw broker labels onto canonical operation types. The
// broker vocabulary is an evolving set of free-text phrases, so the rules
// live in ordered tables consulted by a single resolver; rule order is
// load-bearing and mirrors the precedence the reports require.

// opDrop marks a row that must be excluded from the output entirely.
const opDrop = "__drop__"

// signRule resolves a label whose canonical type depends on the amount.
// Checked first, by case-insensitive substring match against the raw label.
type signRule struct {
	substr  string
	resolve func(amount float64) string
}

var signRules = []signRule{
	{"ндфл", func(a float64) string {
		if a > 0 {
			return models.OpRefund
		}
		return models.OpWithholding
	}},
	{"комиссия по сделке", func(a float64) string {
		if a > 0 {
			return models.OpCommissionRefund
		}
		return models.OpCommission
	}},
	{`проценты по займам "овернайт цб"`, func(a float64) string {
		if a != 0 {
			return models.OpOtherIncome
		}
		return models.OpOtherExpense
	}},
	{`проценты по займам "овернайт"`, func(a float64) string {
		if a != 0 {
			return models.OpOtherIncome
		}
		return models.OpOtherExpense
	}},
}

// labelRule maps a broker operation label to a canonical type. The
// resolver does an exact pass first, then a substring pass in the same
// order; "частичное погашение" must precede "погашение" so the partial
// redemption wording is not swallowed by the full one.
type labelRule struct {
	label  string
	opType string
}

var labelRules = []labelRule{
	{"Дивиденды", models.OpDividend},
	{"Купоны", models.OpCoupon},
	{"Частичное погашение облигации", models.OpAmortization},
	{"Погашение облигации", models.OpRepayment},
	{"Приход ДС", models.OpDeposit},
	{"Вывод ДС", models.OpWithdrawal},
}

// skipLabels lists bookkeeping entries already captured by the trade
// extractor (settlement legs, repo, overnight loans, interplatform moves).
// Matched case-insensitively as substrings against the label, or against
// the comment when the label is empty.
var skipLabels = []string{
	"Расчеты по сделке",
	`Займы "овернайт"`,
	"НКД по сделке",
	"Покупка/Продажа",
	"Переводы между площадками",
}

// commentRule classifies a "transfer"-labelled row by its free-text
// comment. Groups are checked in order; within a group any pattern hit
// wins. The dividend wordings are full payout phrases so the earlier
// dividend group cannot swallow the interim-dividend wording, which must
// fall through to the drop rule.
type commentRule struct {
	patterns []string
	opType   string
}

var transferCommentRules = []commentRule{
	{[]string{"погашение купона", "выплата купона"}, models.OpCoupon},
	{[]string{"частичное погашение облигации", "частичное погашение номинала"}, models.OpAmortization},
	{[]string{"погашение облигации", "погашение номинала"}, models.OpRepayment},
	{[]string{"из банка втб", "перевод из банка"}, models.OpDeposit},
	{[]string{"зачисление дивидендов", "выплата дивидендов"}, models.OpDividend},
	{[]string{"по поручению клиента", "возврат по договору"}, models.OpWithdrawal},
	{[]string{"в рамках акции", "акция для клиентов"}, models.OpOtherIncome},
	{[]string{"промежуточных дивидендов", "промежуточные дивиденды"}, opDrop},
}

// classifyOperation maps a raw operation label plus its comment text onto a
// canonical operation type. Returns opDrop when the row must be discarded.
// Precedence: sign-dependent handlers, exact label table, substring label
// table, transfer comment patterns, empty-label comment retry, then the
// trimmed raw label itself or "unknown".
func classifyOperation(label, comment string, amount float64) string {
	trimmed := strings.TrimSpace(label)
	low := strings.ToLower(trimmed)

	if low != "" {
		for _, r := range signRules {
			if strings.Contains(low, r.substr) {
				return r.resolve(amount)
			}
		}
	}
	for _, r := range labelRules {
		if trimmed == r.label {
			return r.opType
		}
	}
	if low != "" {
		for _, r := range labelRules {
			if strings.Contains(low, strings.ToLower(r.label)) {
				return r.opType
			}
		}
	}
	if strings.Contains(low, "перевод") {
		if t, ok := matchCommentRules(comment); ok {
			return t
		}
		return models.OpTransfer
	}
	if low == "" {
		if t, ok := matchCommentRules(comment); ok {
			return t
		}
	}
	if trimmed != "" {
		return trimmed
	}
	return models.OpUnknown
}

func matchCommentRules(comment string) (string, bool) {
	low := strings.ToLower(strings.TrimSpace(comment))
	if low == "" {
		return "", false
	}
	for _, r := range transferCommentRules {
		for _, p := range r.patterns {
			if strings.Contains(low, p) {
				return r.opType, true
			}
		}
	}
	return "", false
}

// shouldSkip reports whether the row is on the ignore list. The label is
// the subject when present, else the comment.
func shouldSkip(label, comment string) bool {
	subject := strings.TrimSpace(label)
	if subject == "" {
		subject = strings.TrimSpace(comment)
	}
	if subject == "" {
		return false
	}
	low := strings.ToLower(subject)
	for _, s := range skipLabels {
		if strings.Contains(low, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
