// backend/src/parsers/vtb/transfers.go
package vtb

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/username/vtbparse/backend/src/logger"
	"github.com/username/vtbparse/backend/src/models"
)

// ExtractTransfers scans the securities-movement rows and keeps only the
// currency-conversion legs: rows whose operation type is a transfer and
// whose comment mentions a conversion. Each kept leg becomes an asset
// receive or withdrawal depending on the quantity sign.
//
// The sub-report is absent from many statement vintages, so a failure
// here is non-fatal to the aggregate parse; the caller degrades to zero
// transfers when stats.Error is set.
func ExtractTransfers(ctx context.Context, src *Source) ([]models.OperationRecord, models.TransferStats) {
	log := logger.FromContext(ctx)
	var stats models.TransferStats
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
				return fmt.Errorf("skipping transfer row subtree: %w", err)
			}
			stats.TotalRows++

			comment := squashSpaces(attrs["comment_new"])
			if !strings.EqualFold(strings.TrimSpace(attrs["oper_type"]), "перевод") ||
				!strings.Contains(strings.ToLower(comment), "конвертация") {
				stats.SkippedNotConversion++
				continue
			}
			qty := toFloat(firstAttr(attrs, tradeQtyKeys))
			if qty == 0 {
				stats.SkippedNoQty++
				continue
			}
			date, ok := parseSettlement(attrs["settlement_date"], attrs["settlement_time"])
			if !ok {
				stats.SkippedNoDate++
				continue
			}
			if math.IsNaN(qty) || math.IsInf(qty, 0) {
				log.Warn("dropping malformed conversion row", "comment", comment)
				stats.SkippedInvalid++
				continue
			}

			opType := models.OpAssetWithdrawal
			if qty > 0 {
				opType = models.OpAssetReceive
			}
			name := firstAttr(attrs, tradeNameKeys)
			records = append(records, models.OperationRecord{
				Date:          &date,
				OperationType: opType,
				Quantity:      math.Abs(qty),
				Ticker:        extractTicker(name),
				ISIN:          extractISIN(name),
				Comment:       comment,
			})
			stats.Parsed++
		}
	})
	if err != nil {
		log.Error("transfer extraction failed", "error", err)
		stats.Error = err.Error()
		return nil, stats
	}
	return records, stats
}
