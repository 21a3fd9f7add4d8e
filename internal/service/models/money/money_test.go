package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m, err := New(10000)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), m.Int64())

	_, err = New(-1)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestAdd(t *testing.T) {
	sum, err := MustNew(300).Add(MustNew(700))
	require.NoError(t, err)
	assert.Equal(t, MustNew(1000), sum)

	_, err = Money(math.MaxInt64).Add(MustNew(1))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestSub(t *testing.T) {
	diff, err := MustNew(1000).Sub(MustNew(300))
	require.NoError(t, err)
	assert.Equal(t, MustNew(700), diff)

	_, err = MustNew(300).Sub(MustNew(1000))
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestMulQuantity(t *testing.T) {
	total, err := MustNew(10000).MulQuantity(2)
	require.NoError(t, err)
	assert.Equal(t, MustNew(20000), total)

	zero, err := MustNew(10000).MulQuantity(0)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = Money(math.MaxInt64 / 2).MulQuantity(3)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestRatioFloors(t *testing.T) {
	tests := []struct {
		name  string
		m     int64
		part  int64
		whole int64
		want  int64
	}{
		{"exact half", 1000, 5000, 10000, 500},
		{"floors remainder down", 1000, 1, 3, 333},
		{"full ratio", 777, 10000, 10000, 777},
		{"zero part", 777, 0, 10000, 0},
		{"one third of spent mileage", 500, 10000, 30000, 166},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Money(tt.m).Ratio(Money(tt.part), Money(tt.whole))
			require.NoError(t, err)
			assert.Equal(t, Money(tt.want), got)
		})
	}
}

func TestRatioErrors(t *testing.T) {
	_, err := MustNew(100).Ratio(MustNew(1), 0)
	assert.ErrorIs(t, err, ErrZeroDivisor)

	_, err = MustNew(100).Ratio(MustNew(2), MustNew(1))
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestRatioLargeAmountsDoNotOverflow(t *testing.T) {
	// Amounts big enough that m*part would overflow int64.
	m := Money(math.MaxInt64 / 3)
	got, err := m.Ratio(MustNew(1), MustNew(2))
	require.NoError(t, err)
	assert.Equal(t, Money(int64(m)/2), got)
}
