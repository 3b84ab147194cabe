package vtb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/username/vtbparse/backend/src/models"
)

const transfersXML = `<?xml version="1.0" encoding="utf-8"?>
<Report Name="broker_rep">
  <Tablix2>
    <Details_Collection>
      <Details oper_type="Перевод" comment_new="Конвертация иностранной валюты по заявке 123456"
               qty="100" p_name="USD" settlement_date="2024-03-05T00:00:00" settlement_time="10:15:30"/>
      <Details oper_type="Перевод" comment_new="Конвертация иностранной валюты по заявке 123456"
               qty="-9250" p_name="RUB" settlement_date="2024-03-05T00:00:00" settlement_time="10:15:30"/>
      <Details oper_type="Зачисление" comment_new="Зачисление ценных бумаг" qty="10"
               p_name="SBER Сбербанк" settlement_date="2024-03-06T00:00:00"/>
      <Details oper_type="Перевод" comment_new="Перевод между площадками" qty="5"
               p_name="SBER Сбербанк" settlement_date="2024-03-06T00:00:00"/>
      <Details oper_type="Перевод" comment_new="Конвертация валюты" qty="0"
               p_name="EUR" settlement_date="2024-03-07T00:00:00"/>
      <Details oper_type="Перевод" comment_new="Конвертация валюты" qty="15"
               p_name="EUR" settlement_date=""/>
    </Details_Collection>
  </Tablix2>
</Report>`

func TestExtractTransfers(t *testing.T) {
	ops, stats := ExtractTransfers(context.Background(), FromString(transfersXML))

	require.Empty(t, stats.Error)
	require.Equal(t, 6, stats.TotalRows)
	require.Equal(t, 2, stats.Parsed)
	require.Equal(t, 2, stats.SkippedNotConversion)
	require.Equal(t, 1, stats.SkippedNoQty)
	require.Equal(t, 1, stats.SkippedNoDate)
	require.Len(t, ops, 2)

	receive := ops[0]
	require.Equal(t, models.OpAssetReceive, receive.OperationType)
	require.InDelta(t, 100, receive.Quantity, 1e-9)
	require.Equal(t, "USD", receive.ISIN)
	require.Equal(t, time.Date(2024, 3, 5, 10, 15, 30, 0, time.UTC), *receive.Date)

	withdrawal := ops[1]
	require.Equal(t, models.OpAssetWithdrawal, withdrawal.OperationType)
	require.InDelta(t, 9250, withdrawal.Quantity, 1e-9)
	require.Equal(t, "RUB", withdrawal.ISIN)
}

func TestExtractTransfersDateFallback(t *testing.T) {
	const xml = `<Report>
  <Details oper_type="Перевод" comment_new="Конвертация валюты" qty="7"
           p_name="EUR" settlement_date="2024-04-01T00:00:00"/>
</Report>`
	ops, stats := ExtractTransfers(context.Background(), FromString(xml))
	require.Empty(t, stats.Error)
	require.Len(t, ops, 1)
	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *ops[0].Date)
}

func TestExtractTransfersMalformedXML(t *testing.T) {
	ops, stats := ExtractTransfers(context.Background(), FromString("<Report><Details"))
	require.Nil(t, ops)
	require.NotEmpty(t, stats.Error)
}
