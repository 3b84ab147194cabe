// backend/src/services/statement_service.go
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/vtbparse/backend/src/logger"
	"github.com/username/vtbparse/backend/src/models"
	"github.com/username/vtbparse/backend/src/parsers/vtb"
)

const (
	ckParseResult          = "res_parse_%s"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// StatementService runs the three statement extractors and merges their
// output into one deduplicated, date-ordered operation list. Parsing is
// pure: the same bytes always yield the same result, which is what makes
// the content-hash response cache safe.
type StatementService interface {
	ParseBytes(ctx context.Context, data []byte) *models.ParseResult
	ParseFile(ctx context.Context, path string) *models.ParseResult
}

type statementServiceImpl struct {
	resultCache *cache.Cache
}

// NewStatementService returns a service backed by the given result cache.
// A nil cache disables response caching.
func NewStatementService(resultCache *cache.Cache) StatementService {
	return &statementServiceImpl{resultCache: resultCache}
}

func (s *statementServiceImpl) ParseBytes(ctx context.Context, data []byte) *models.ParseResult {
	var cacheKey string
	if s.resultCache != nil {
		sum := sha256.Sum256(data)
		cacheKey = fmt.Sprintf(ckParseResult, hex.EncodeToString(sum[:]))
		if cached, found := s.resultCache.Get(cacheKey); found {
			logger.FromContext(ctx).Debug("parse result served from cache", "key", cacheKey)
			return cached.(*models.ParseResult)
		}
	}
	result := s.parseSource(ctx, vtb.FromBytes(data))
	if cacheKey != "" {
		s.resultCache.Set(cacheKey, result, DefaultCacheExpiration)
	}
	return result
}

func (s *statementServiceImpl) ParseFile(ctx context.Context, path string) *models.ParseResult {
	return s.parseSource(ctx, vtb.FromPath(path))
}

func (s *statementServiceImpl) parseSource(ctx context.Context, src *vtb.Source) *models.ParseResult {
	log := logger.FromContext(ctx)
	start := time.Now()

	tradeOps, tradeStats := vtb.ExtractTrades(ctx, src)
	finOps, finStats := vtb.ExtractFinOps(ctx, src)
	transferOps, transferStats := vtb.ExtractTransfers(ctx, src)

	meta := models.ParseMeta{
		FinOpsRawCount:      finStats.TotalRows,
		TradeOpsRawCount:    tradeStats.TotalRows,
		TransferOpsRawCount: transferStats.TotalRows,
		FinOpsStats:         finStats,
		TradeOpsStats:       tradeStats,
		TransferOpsStats:    transferStats,
	}

	// A document the trade or money-movement extractor cannot read is a
	// hard failure. The transfer sub-report is absent from many statement
	// vintages, so its failure only degrades the result to zero transfers.
	if tradeStats.Error != "" || finStats.Error != "" {
		meta.Error = tradeStats.Error
		if meta.Error == "" {
			meta.Error = finStats.Error
		}
		log.Error("statement parse failed", "error", meta.Error)
		return &models.ParseResult{Operations: []models.OperationRecord{}, Meta: meta}
	}
	if transferStats.Error != "" {
		log.Warn("transfer extraction degraded, continuing without conversions", "error", transferStats.Error)
		transferOps = nil
	}

	seen := make(map[string]struct{})
	merged := make([]models.OperationRecord, 0, len(finOps)+len(tradeOps)+len(transferOps))
	appendUnique := func(prefix string, ops []models.OperationRecord) int {
		kept := 0
		for _, op := range ops {
			key := dedupeKey(prefix, op)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, op)
			kept++
		}
		return kept
	}
	meta.AfterDedupeFromFin = appendUnique("fin", finOps)
	meta.AfterDedupeFromTrade = appendUnique("trade", tradeOps)
	meta.AfterDedupeFromXfer = appendUnique("transfer", transferOps)

	sortOperations(merged)
	meta.TotalOpsCount = len(merged)

	log.Info("statement parsed",
		"operations", meta.TotalOpsCount,
		"trade_rows", tradeStats.TotalRows,
		"fin_rows", finStats.TotalRows,
		"transfer_rows", transferStats.TotalRows,
		"duration", time.Since(start))
	return &models.ParseResult{Operations: merged, Meta: meta}
}

// dedupeKey identifies a record within one extractor's output. Keys are
// namespaced per extractor so the same broker operation id appearing in
// two sub-reports never collapses records across them. Records without an
// external id fall back to a content key.
func dedupeKey(prefix string, op models.OperationRecord) string {
	if op.OperationID != "" {
		return prefix + ":id:" + op.OperationID
	}
	date := ""
	if op.Date != nil {
		date = op.Date.Format(time.RFC3339)
	}
	return strings.Join([]string{
		prefix + ":auto",
		date,
		op.OperationType,
		fmt.Sprintf("%.4f", op.PaymentSum),
		op.Ticker,
		op.ISIN,
	}, "|")
}

// sortOperations orders records by date ascending with undated records
// first, then by operation type for a deterministic order within a day.
func sortOperations(ops []models.OperationRecord) {
	sort.SliceStable(ops, func(i, j int) bool {
		di, dj := sortDate(ops[i].Date), sortDate(ops[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return ops[i].OperationType < ops[j].OperationType
	})
}

func sortDate(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
