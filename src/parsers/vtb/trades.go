// backend/src/parsers/vtb/trades.go
package vtb

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/username/vtbparse/backend/src/logger"
	"github.com/username/vtbparse/backend/src/models"
	"github.com/username/vtbparse/backend/src/utils"
)

// Attribute aliases for the completed-trades sub-report, oldest vintage
// last. Each logical field is resolved against its list in order.
var (
	tradeQtyKeys      = []string{"qty", "quantity", "textbox14"}
	tradeDateKeys     = []string{"db_time", "dbtime", "settlement_time", "save_settlement_date", "save_depo_settlement_date"}
	tradePriceKeys    = []string{"price", "textbox25"}
	tradeTotalKeys    = []string{"summ_trade", "summtrade"}
	tradeACIKeys      = []string{"summ_nkd", "summnkd"}
	tradeCurrencyKeys = []string{"curr_calc", "curr"}
	tradeISINKeys     = []string{"isin_reg", "isin1", "isin"}
	tradeNameKeys     = []string{"p_name", "pname", "active_name"}
	tradeNoKeys       = []string{"trade_no", "tradeno", "trade"}
	tradeFeeKeys      = []string{"bank_tax", "banktax"}
	tradePlaceKeys    = []string{"place_name", "place"}
)

// ExtractTrades scans the completed-trades rows of a statement and returns
// one buy/sale record per usable row. The statement is streamed token by
// token so memory stays proportional to a single row, not the report.
//
// A failure to read or tokenize the document is reported through
// stats.Error with a nil record slice; per-row defects only increment the
// skip counters.
func ExtractTrades(ctx context.Context, src *Source) ([]models.OperationRecord, models.TradeStats) {
	log := logger.FromContext(ctx)
	var stats models.TradeStats
	var records []models.OperationRecord

	err := src.withFile(func(r io.Reader) error {
		dec := xml.NewDecoder(r)
		for {
			tok, err := dec.Token()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading statement tokens: %w", err)
			}
			se, ok := tok.(xml.StartElement)
			if !ok || !strings.EqualFold(se.Name.Local, "details") {
				continue
			}
			attrs := lowerAttrs(se.Attr)
			if err := dec.Skip(); err != nil {
				return fmt.Errorf("skipping trade row subtree: %w", err)
			}
			stats.TotalRows++

			fee := math.Abs(toFloat(firstAttr(attrs, tradeFeeKeys)))
			stats.TotalCommission = utils.RoundFloat(stats.TotalCommission+fee, 2)

			qty := toFloat(firstAttr(attrs, tradeQtyKeys))
			if qty == 0 {
				stats.SkippedNoQty++
				continue
			}
			date, ok := tradeDate(attrs)
			if !ok {
				stats.SkippedNoDate++
				continue
			}
			rec, err := buildTradeRecord(attrs, qty, date)
			if err != nil {
				log.Warn("dropping malformed trade row", "error", err, "trade_no", firstAttr(attrs, tradeNoKeys))
				stats.SkippedInvalid++
				continue
			}
			records = append(records, rec)
			stats.Parsed++
		}
	})
	if err != nil {
		log.Error("trade extraction failed", "error", err)
		stats.Error = err.Error()
		return nil, stats
	}
	return records, stats
}

// tradeDate tries each date alias in turn until one parses. Aliases that
// are present but unparsable do not stop the scan; an older field may
// still carry a usable value.
func tradeDate(attrs map[string]string) (time.Time, bool) {
	for _, k := range tradeDateKeys {
		v := strings.TrimSpace(attrs[k])
		if v == "" {
			continue
		}
		if parsed, ok := parseDateTime(v); ok {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func buildTradeRecord(attrs map[string]string, qty float64, date time.Time) (models.OperationRecord, error) {
	total := toFloat(firstAttr(attrs, tradeTotalKeys))
	price := toFloat(firstAttr(attrs, tradePriceKeys))
	aci := toFloat(firstAttr(attrs, tradeACIKeys))
	fee := toFloat(firstAttr(attrs, tradeFeeKeys))
	for _, v := range []float64{qty, total, price, aci, fee} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.OperationRecord{}, fmt.Errorf("non-finite numeric value in trade row")
		}
	}

	opType := models.OpSale
	if qty > 0 {
		opType = models.OpBuy
	}

	name := firstAttr(attrs, tradeNameKeys)
	// The report carries the settlement amount as-is; direction is already
	// expressed by the operation type.
	return models.OperationRecord{
		Date:          &date,
		OperationType: opType,
		PaymentSum:    total,
		Currency:      utils.CanonicalCurrency(firstAttr(attrs, tradeCurrencyKeys)),
		Ticker:        extractTicker(name),
		ISIN:          extractISIN(firstAttr(attrs, tradeISINKeys)),
		RegNumber:     extractRegNumber(firstAttr(attrs, tradeISINKeys)),
		Price:         price,
		Quantity:      math.Abs(qty),
		ACI:           aci,
		Comment:       firstAttr(attrs, tradePlaceKeys),
		OperationID:   firstToken(firstAttr(attrs, tradeNoKeys)),
		Commission:    math.Abs(fee),
	}, nil
}
