package amount

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func sum(parts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range parts {
		total = total.Add(p)
	}
	return total
}

func TestSplitByPercent(t *testing.T) {
	parts, err := SplitByPercent(d(3500), []int{25, 35, 25, 15})
	require.NoError(t, err)
	assert.Equal(t, []string{"875", "1225", "875", "525"}, strs(parts))
	assert.True(t, sum(parts).Equal(d(3500)))
}

func TestSplitByPercentRemainderGoesToLast(t *testing.T) {
	parts, err := SplitByPercent(d(1001), []int{33, 33, 34})
	require.NoError(t, err)
	assert.Equal(t, []string{"330", "330", "341"}, strs(parts))
	assert.True(t, sum(parts).Equal(d(1001)))
}

func TestSplitByPercentRejectsBadTotals(t *testing.T) {
	_, err := SplitByPercent(d(1000), []int{50, 40})
	assert.True(t, errors.Is(err, ErrPercentSum))

	_, err = SplitByPercent(d(1000), []int{0, 100})
	assert.Error(t, err)

	_, err = SplitByPercent(d(1000), []int{101, -1})
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	a, err := Parse("2500")
	require.NoError(t, err)
	assert.True(t, a.Equal(d(2500)))

	_, err = Parse("25.5")
	assert.True(t, errors.Is(err, ErrNotInteger))

	_, err = Parse("-3")
	assert.True(t, errors.Is(err, ErrNegative))

	_, err = Parse("abc")
	assert.Error(t, err)
}

func TestPercentOfAndProRata(t *testing.T) {
	assert.Equal(t, "18", PercentOf(d(100), d(18)).String())
	assert.Equal(t, "4", PercentOf(d(25), d(18)).String())
	assert.Equal(t, "333", ProRata(d(500), d(2000), d(3000)).String())
	assert.True(t, ProRata(d(500), d(1), decimal.Zero).IsZero())
	assert.Equal(t, "3", Min(d(3), d(7)).String())
}

func strs(parts []decimal.Decimal) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.String()
	}
	return out
}
