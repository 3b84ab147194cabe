package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"RUB", "RUB"},
		{"rur", "RUB"},
		{"РУБ", "RUB"},
		{"руб.", "RUB"},
		{"Рубль", "RUB"},
		{"Доллар США", "USD"},
		{"usd", "USD"},
		{"ЕВРО", "EUR"},
		{"Юань", "CNY"},
		{" GBP ", "GBP"},
		{"XYZ", "XYZ"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, CanonicalCurrency(tt.in), "input %q", tt.in)
	}
}
