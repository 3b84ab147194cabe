package vtb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/username/vtbparse/backend/src/models"
)

const tradesXML = `<?xml version="1.0" encoding="utf-8"?>
<Report Name="broker_rep">
  <Tablix1>
    <Details_Collection>
      <Details qty="10" price="150,5" summ_trade="-1505" summ_nkd="0" curr_calc="RUB"
               isin_reg="RU0009029540" p_name="SBER Сбербанк ПАО ао" trade_no="111222333 444555666"
               bank_tax="1,51" db_time="2024-03-15T10:30:00" place_name="МБ ФР"/>
      <Details qty="-5" price="200" summ_trade="1000" summ_nkd="12,34" curr_calc="USD"
               isin_reg="US0378331005" p_name="AAPL Apple Inc" trade_no="777888999"
               bank_tax="-0,75" save_settlement_date="18.03.2024 12:00:00"/>
      <Details qty="0" price="100" summ_trade="0" curr_calc="RUB" p_name="GAZP Газпром" bank_tax="0,10"/>
      <Details qty="3" price="50" summ_trade="150" curr_calc="RUB" p_name="LKOH Лукойл" bank_tax="0,05"/>
    </Details_Collection>
  </Tablix1>
</Report>`

func TestExtractTrades(t *testing.T) {
	ctx := context.Background()
	ops, stats := ExtractTrades(ctx, FromString(tradesXML))

	require.Empty(t, stats.Error)
	require.Equal(t, 4, stats.TotalRows)
	require.Equal(t, 2, stats.Parsed)
	require.Equal(t, 1, stats.SkippedNoQty)
	require.Equal(t, 1, stats.SkippedNoDate)
	require.Equal(t, 0, stats.SkippedInvalid)
	// Commission accumulates over every row, skipped ones included.
	require.InDelta(t, 1.51+0.75+0.10+0.05, stats.TotalCommission, 1e-9)
	require.Len(t, ops, 2)

	buy := ops[0]
	require.Equal(t, models.OpBuy, buy.OperationType)
	require.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), *buy.Date)
	// The settlement amount is carried through with the sign the report
	// gave it.
	require.InDelta(t, -1505, buy.PaymentSum, 1e-9)
	require.InDelta(t, 10, buy.Quantity, 1e-9)
	require.InDelta(t, 150.5, buy.Price, 1e-9)
	require.Equal(t, "RUB", buy.Currency)
	require.Equal(t, "SBER", buy.Ticker)
	require.Equal(t, "RU0009029540", buy.ISIN)
	require.Equal(t, "МБ ФР", buy.Comment)
	require.Equal(t, "111222333", buy.OperationID)
	require.InDelta(t, 1.51, buy.Commission, 1e-9)

	sale := ops[1]
	require.Equal(t, models.OpSale, sale.OperationType)
	require.Equal(t, time.Date(2024, 3, 18, 12, 0, 0, 0, time.UTC), *sale.Date)
	require.InDelta(t, 1000, sale.PaymentSum, 1e-9)
	require.InDelta(t, 5, sale.Quantity, 1e-9)
	require.InDelta(t, 12.34, sale.ACI, 1e-9)
	require.Equal(t, "USD", sale.Currency)
	require.Equal(t, "AAPL", sale.Ticker)
	require.InDelta(t, 0.75, sale.Commission, 1e-9)
}

func TestExtractTradesBOM(t *testing.T) {
	ctx := context.Background()
	plain, plainStats := ExtractTrades(ctx, FromBytes([]byte(tradesXML)))
	bom := append([]byte{0xEF, 0xBB, 0xBF}, []byte(tradesXML)...)
	withBOM, bomStats := ExtractTrades(ctx, FromBytes(bom))

	require.Empty(t, plainStats.Error)
	require.Empty(t, bomStats.Error)
	require.Equal(t, plainStats, bomStats)
	require.Equal(t, plain, withBOM)
}

func TestExtractTradesMalformedXML(t *testing.T) {
	ops, stats := ExtractTrades(context.Background(), FromString("<Report><Details qty=\"1\""))
	require.Nil(t, ops)
	require.NotEmpty(t, stats.Error)
}

func TestExtractTradesEmptyReport(t *testing.T) {
	ops, stats := ExtractTrades(context.Background(), FromString("<Report/>"))
	require.Empty(t, stats.Error)
	require.Equal(t, 0, stats.TotalRows)
	require.Empty(t, ops)
}
