package vtb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/username/vtbparse/backend/src/models"
)

const finOpsXML = `<?xml version="1.0" encoding="utf-8"?>
<Report Name="broker_rep">
  <BrokerMoneyMove>
    <Tablix3>
      <settlement_date_Collection>
        <settlement_date settlement_date="2024-03-01T00:00:00">
          <rn_Collection>
            <rn last_update="01.03.2024 10:00:00">
              <oper_type oper_type="Дивиденды">
                <comment comment="Зачисление дивидендов ПАО Сбербанк ISIN RU0009029540, договор 123456">
                  <p_code_Collection>
                    <p_code p_code="RUB" volume="100,5"/>
                  </p_code_Collection>
                </comment>
              </oper_type>
            </rn>
            <rn>
              <oper_type oper_type="НДФЛ" comment="Удержание налога, договор 222333444">
                <p_code_Collection>
                  <p_code p_code="RUB" volume="-13"/>
                </p_code_Collection>
              </oper_type>
            </rn>
            <rn>
              <oper_type oper_type="НДФЛ" comment="Возврат налога, договор 333444555">
                <p_code_Collection>
                  <p_code p_code="RUB" volume="13"/>
                </p_code_Collection>
              </oper_type>
            </rn>
            <rn>
              <oper_type oper_type="Комиссия по сделке 987654321" comment="Вознаграждение брокера">
                <p_code_Collection>
                  <p_code p_code="RUB" volume="-25,5"/>
                </p_code_Collection>
              </oper_type>
            </rn>
            <rn>
              <oper_type oper_type="Покупка/Продажа" comment="Сделка 555666777">
                <p_code_Collection>
                  <p_code p_code="RUB" volume="-1000"/>
                </p_code_Collection>
              </oper_type>
            </rn>
            <rn>
              <oper_type oper_type="Перевод денежных средств" comment="Выплата промежуточных дивидендов по договору 888999000">
                <p_code_Collection>
                  <p_code p_code="RUB" volume="50"/>
                </p_code_Collection>
              </oper_type>
            </rn>
            <rn>
              <oper_type oper_type="Перевод денежных средств">
                <comment comment="Выплата купона по облигации RU000A0ZYBS1, операция 777777">
                  <p_code_Collection>
                    <p_code p_code="RUB" volume="35,6"/>
                  </p_code_Collection>
                </comment>
              </oper_type>
            </rn>
          </rn_Collection>
        </settlement_date>
        <settlement_date>
          <rn>
            <oper_type oper_type="Приход ДС" comment="Перевод из банка ВТБ, заявка 444555666"/>
            <Textbox83 money_volume="5000"/>
          </rn>
        </settlement_date>
      </settlement_date_Collection>
    </Tablix3>
  </BrokerMoneyMove>
</Report>`

func TestExtractFinOps(t *testing.T) {
	ops, stats := ExtractFinOps(context.Background(), FromString(finOpsXML))

	require.Empty(t, stats.Error)
	require.Equal(t, 8, stats.TotalRows)
	require.Equal(t, 6, stats.Parsed)
	require.Equal(t, 2, stats.Skipped)
	require.Len(t, ops, 6)

	byType := map[string]models.OperationRecord{}
	for _, op := range ops {
		byType[op.OperationType] = op
	}

	// The dividend row carries its detail in a nested comment element with
	// the currency/amount pair beneath it.
	div, ok := byType[models.OpDividend]
	require.True(t, ok)
	require.InDelta(t, 100.5, div.PaymentSum, 1e-9)
	require.Equal(t, "RUB", div.Currency)
	require.Equal(t, "RU0009029540", div.ISIN)
	require.Equal(t, "123456", div.OperationID)
	require.NotNil(t, div.Date)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *div.Date)

	// A transfer-labelled row resolves through its nested comment's wording.
	coupon, ok := byType[models.OpCoupon]
	require.True(t, ok)
	require.InDelta(t, 35.6, coupon.PaymentSum, 1e-9)
	require.Equal(t, "RU000A0ZYBS1", coupon.ISIN)
	require.Equal(t, "777777", coupon.OperationID)
	require.Equal(t, "RUB", coupon.Currency)

	withholding, ok := byType[models.OpWithholding]
	require.True(t, ok)
	require.InDelta(t, -13, withholding.PaymentSum, 1e-9)

	refund, ok := byType[models.OpRefund]
	require.True(t, ok)
	require.InDelta(t, 13, refund.PaymentSum, 1e-9)

	// Commission rows keep the magnitude in the commission field only.
	comm, ok := byType[models.OpCommission]
	require.True(t, ok)
	require.InDelta(t, 0, comm.PaymentSum, 1e-9)
	require.InDelta(t, 25.5, comm.Commission, 1e-9)
	require.Equal(t, "987654321", comm.OperationID)

	// Vintage without p_code children resolves the amount from the textbox
	// fallback and the date stays unset.
	dep, ok := byType[models.OpDeposit]
	require.True(t, ok)
	require.InDelta(t, 5000, dep.PaymentSum, 1e-9)
	require.Nil(t, dep.Date)
	require.Equal(t, "444555666", dep.OperationID)

	require.Equal(t, "100.5000", stats.TotalsByType[models.OpDividend])
	require.Equal(t, "-25.5000", stats.TotalsByType[models.OpCommission])
	require.Equal(t, "35.6000", stats.TotalsByType[models.OpCoupon])
	require.Equal(t, "5149.1000", stats.TotalIncome)
	require.Equal(t, "38.5000", stats.TotalExpense)
	// Comment samples come in document order before any skip decision, so
	// the fifth one belongs to the skipped settlement row.
	require.Len(t, stats.ExampleComments, 5)
	require.Equal(t, "Сделка 555666777", stats.ExampleComments[4])
}

func TestExtractFinOpsMalformedXML(t *testing.T) {
	ops, stats := ExtractFinOps(context.Background(), FromString("<Report><rn"))
	require.Nil(t, ops)
	require.NotEmpty(t, stats.Error)
}

func TestClassifyOperation(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		comment string
		amount  float64
		want    string
	}{
		{"dividend exact", "Дивиденды", "", 10, models.OpDividend},
		{"coupon exact", "Купоны", "", 10, models.OpCoupon},
		{"partial redemption wins over full", "Частичное погашение облигации", "", 10, models.OpAmortization},
		{"full redemption", "Погашение облигации", "", 10, models.OpRepayment},
		{"ndfl negative", "НДФЛ", "", -13, models.OpWithholding},
		{"ndfl positive", "НДФЛ", "", 13, models.OpRefund},
		{"trade commission negative", "Комиссия по сделке 123456", "", -1, models.OpCommission},
		{"trade commission positive", "Комиссия по сделке 123456", "", 1, models.OpCommissionRefund},
		{"overnight nonzero", `Проценты по займам "овернайт"`, "", 5, models.OpOtherIncome},
		{"overnight zero", `Проценты по займам "овернайт"`, "", 0, models.OpOtherExpense},
		{"transfer coupon comment", "Перевод денежных средств", "Выплата купона по облигации", 10, models.OpCoupon},
		{"transfer deposit comment", "Перевод денежных средств", "Перевод из банка ВТБ", 10, models.OpDeposit},
		{"transfer interim dividend dropped", "Перевод денежных средств", "Выплата промежуточных дивидендов", 10, opDrop},
		{"transfer without match", "Перевод денежных средств", "что-то другое", 10, models.OpTransfer},
		{"empty label comment retry", "", "Зачисление дивидендов по акциям", 10, models.OpDividend},
		{"unmatched label passes through", "Прочее списание", "", -1, "Прочее списание"},
		{"nothing at all", "", "", 0, models.OpUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, classifyOperation(tt.label, tt.comment, tt.amount))
		})
	}
}

func TestShouldSkip(t *testing.T) {
	require.True(t, shouldSkip("Расчеты по сделке", ""))
	require.True(t, shouldSkip("Покупка/Продажа", ""))
	require.True(t, shouldSkip(`Займы "овернайт"`, ""))
	require.True(t, shouldSkip("", "НКД по сделке 123"))
	require.False(t, shouldSkip("Дивиденды", ""))
	require.False(t, shouldSkip("", ""))
}
