package shared

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoneyJSON(t *testing.T) {
	var payload struct {
		MRP        Money `json:"mrp"`
		SalesPrice Money `json:"sales_price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"mrp": 10, "sales_price": "9.5"}`), &payload))
	require.Equal(t, Money(1000), payload.MRP)
	require.Equal(t, Money(950), payload.SalesPrice)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	require.JSONEq(t, `{"mrp": 10.00, "sales_price": 9.50}`, string(out))
}

func TestParseMoneyRounds(t *testing.T) {
	m, err := ParseMoney("12.345")
	require.NoError(t, err)
	require.Equal(t, Money(1235), m)

	m, err = ParseMoney("-0.05")
	require.NoError(t, err)
	require.Equal(t, "-0.05", m.String())

	_, err = ParseMoney("ten")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseMoneyRejectsOutOfRangeExponent(t *testing.T) {
	for _, raw := range []string{"1e18", "-1e18", "9.3e16"} {
		_, err := ParseMoney(raw)
		require.ErrorIs(t, err, ErrInvalidAmount, raw)
	}

	m, err := ParseMoney("1.5e3")
	require.NoError(t, err)
	require.Equal(t, "1500.00", m.String())
}

func TestMoneyExceeds(t *testing.T) {
	require.False(t, MaxMoney.Exceeds())
	require.Equal(t, "9999999999.99", MaxMoney.String())

	m, err := ParseMoney("99999999999999.99")
	require.NoError(t, err)
	require.True(t, m.Exceeds())
}
