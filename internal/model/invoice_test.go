package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	total := decimal.RequireFromString("1000")
	cases := map[string]InvoiceStatus{
		"0":       InvoiceStatusPending,
		"-5":      InvoiceStatusPending,
		"0.01":    InvoiceStatusPartial,
		"999.99":  InvoiceStatusPartial,
		"1000":    InvoiceStatusPaid,
		"1000.00": InvoiceStatusPaid,
		"1200":    InvoiceStatusPaid,
	}
	for paid, want := range cases {
		assert.Equal(t, want, DeriveStatus(decimal.RequireFromString(paid), total), "paid=%s", paid)
	}
}

func TestParseReportRange(t *testing.T) {
	assert.Equal(t, RangeWeek, ParseReportRange("week"))
	assert.Equal(t, RangeYear, ParseReportRange("year"))
	assert.Equal(t, RangeMonth, ParseReportRange("month"))
	assert.Equal(t, RangeMonth, ParseReportRange(""))
	assert.Equal(t, RangeMonth, ParseReportRange("decade"))
}

func TestInvoiceStatusValid(t *testing.T) {
	assert.True(t, InvoiceStatusPartial.Valid())
	assert.False(t, InvoiceStatus("refunded").Valid())
	assert.True(t, WeightUnitGram.Valid())
	assert.False(t, WeightUnit("lb").Valid())
}

func TestLineTotalRoundsToMoneyScale(t *testing.T) {
	cases := []struct{ qty, price, want string }{
		{"1.5", "0.99", "1.49"},
		{"0.333", "3", "1"},
		{"2.125", "1", "2.13"},
		{"100", "10", "1000"},
	}
	for _, tc := range cases {
		l := LineRequest{Quantity: decimal.RequireFromString(tc.qty), PricePerUnit: decimal.RequireFromString(tc.price)}
		got := l.LineTotal()
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "%s x %s = %s", tc.qty, tc.price, got)
		assert.True(t, FitsScale(got, MoneyPlaces))
	}
}

func TestFitsScale(t *testing.T) {
	assert.True(t, FitsScale(decimal.RequireFromString("1.49"), MoneyPlaces))
	assert.True(t, FitsScale(decimal.RequireFromString("12"), MoneyPlaces))
	assert.False(t, FitsScale(decimal.RequireFromString("1.485"), MoneyPlaces))
	assert.True(t, FitsScale(decimal.RequireFromString("1.485"), QuantityPlaces))
	assert.False(t, FitsScale(decimal.RequireFromString("0.0005"), QuantityPlaces))
}
