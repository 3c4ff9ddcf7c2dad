package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundsToPrecision(t *testing.T) {
	a, err := Parse("10.005")
	require.NoError(t, err)
	assert.Equal(t, "10.01", a.String())

	b, err := Parse("10.004")
	require.NoError(t, err)
	assert.Equal(t, "10.00", b.String())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("ten dollars")
	require.Error(t, err)

	var ia *InvalidAmountError
	require.ErrorAs(t, err, &ia)
	assert.Equal(t, "ten dollars", ia.Value)
}

func TestParsePositive(t *testing.T) {
	_, err := ParsePositive("0")
	assert.Error(t, err)

	_, err = ParsePositive("-5.00")
	assert.Error(t, err)

	_, err = ParsePositive("1000000000000.00")
	assert.Error(t, err)

	a, err := ParsePositive("125000.00")
	require.NoError(t, err)
	assert.True(t, a.IsPositive())
}

func TestArithmeticStaysAtPrecision(t *testing.T) {
	a := FromFloat(0.1)
	b := FromFloat(0.2)
	assert.Equal(t, "0.30", a.Add(b).String())

	c := FromFloat(100)
	d := FromFloat(99.99)
	assert.Equal(t, "0.01", c.Sub(d).String())
}

func TestComparisons(t *testing.T) {
	a := FromFloat(10)
	b := FromFloat(20)

	assert.True(t, a.LessThan(b))
	assert.True(t, b.GreaterThan(a))
	assert.True(t, a.Equal(FromFloat(10.00)))
	assert.Equal(t, -1, a.Cmp(b))
	assert.True(t, FromFloat(-3).IsNegative())
	assert.True(t, Zero().IsZero())
	assert.Equal(t, "5.00", FromFloat(-5).Abs().String())
	assert.Equal(t, "-5.00", FromFloat(5).Neg().String())
}

func TestMulRateRoundsOnce(t *testing.T) {
	// 100000 * 0.025 = 2500 exactly.
	principal := FromFloat(100000)
	rate := decimal.RequireFromString("0.025")
	assert.Equal(t, "2500.00", principal.MulRate(rate).String())

	// 1234.56 * 0.0375 = 46.296 -> 46.30 after a single final rounding.
	p2 := FromFloat(1234.56)
	r2 := decimal.RequireFromString("0.0375")
	assert.Equal(t, "46.30", p2.MulRate(r2).String())
}

func TestJSONRoundTrip(t *testing.T) {
	a := FromFloat(125000.5)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"125000.50"`, string(data))

	var fromString Amount
	require.NoError(t, json.Unmarshal([]byte(`"42.10"`), &fromString))
	assert.Equal(t, "42.10", fromString.String())

	var fromNumber Amount
	require.NoError(t, json.Unmarshal([]byte(`42.1`), &fromNumber))
	assert.Equal(t, "42.10", fromNumber.String())

	var bad Amount
	assert.Error(t, json.Unmarshal([]byte(`"not-money"`), &bad))
}
