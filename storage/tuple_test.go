package storage

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/aggengine/common"
)

func TestTupleFromValues(t *testing.T) {
	val1 := common.NewIntValue(1)
	val2 := common.NewStringValue("hello")
	tup := FromValues(val1, val2)

	assert.Equal(t, 2, tup.NumColumns())
	assert.Equal(t, val1, tup.GetValue(0))
	assert.Equal(t, val2, tup.GetValue(1))
	assert.False(t, tup.IsNil())
	assert.Equal(t, "(1, hello)", tup.String())
	assert.Panics(t, func() { tup.GetValue(2) })
}

func TestTupleExtendDoesNotAlias(t *testing.T) {
	base := FromValues(common.NewIntValue(100))
	a := base.Extend([]common.Value{common.NewStringValue("a")})
	b := base.Extend([]common.Value{common.NewStringValue("b")})

	assert.Equal(t, 1, base.NumColumns())
	assert.Equal(t, "a", a.GetValue(1).StringValue())
	assert.Equal(t, "b", b.GetValue(1).StringValue())
}

func TestCodecRoundTrip(t *testing.T) {
	values := []common.Value{
		common.NewIntValue(-42),
		common.NewIntValue(math.MinInt64),
		common.NewFloatValue(3.25),
		common.NewDecimalValue(decimal.RequireFromString("-12.345")),
		common.NewStringValue(""),
		common.NewStringValue("a somewhat longer string than the fixed width pages allowed"),
		common.NewNullInt(),
		common.NewNullValue(common.DecimalType),
	}

	buf := EncodeKey(nil, values...)
	decoded, rest, err := DecodeTuple(buf, len(values))
	require.NoError(t, err)
	assert.Empty(t, rest)
	for i, v := range values {
		got := decoded.GetValue(i)
		assert.Equal(t, v.Type(), got.Type(), "column %d", i)
		assert.Equal(t, v.IsNull(), got.IsNull(), "column %d", i)
		assert.True(t, v.Equal(got), "column %d: got %s want %s", i, got, v)
	}
}

func TestCodecCanonicalKeys(t *testing.T) {
	tests := []struct {
		name string
		a, b common.Value
	}{
		{"decimal trailing zeros", common.NewDecimalValue(decimal.RequireFromString("1.0")),
			common.NewDecimalValue(decimal.RequireFromString("1.00"))},
		{"negative zero", common.NewFloatValue(math.Copysign(0, -1)), common.NewFloatValue(0)},
		{"nan payloads", common.NewFloatValue(math.NaN()), common.NewFloatValue(math.Float64frombits(0x7FF0000000000002))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, AppendValue(nil, tt.a), AppendValue(nil, tt.b))
		})
	}

	assert.NotEqual(t, AppendValue(nil, common.NewIntValue(1)), AppendValue(nil, common.NewFloatValue(1)),
		"type tag is part of the key")
	assert.NotEqual(t, AppendValue(nil, common.NewNullInt()), AppendValue(nil, common.NewIntValue(0)))
}

func TestCodecRejectsCorruptInput(t *testing.T) {
	good := AppendValue(nil, common.NewStringValue("hello"))

	inputs := map[string][]byte{
		"empty":           {},
		"unknown tag":     {99, 0},
		"truncated int":   {byte(common.IntType), 0, 1, 2},
		"truncated bytes": good[:len(good)-2],
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeValue(in)
			assert.True(t, common.IsErrorCode(err, common.CorruptStateError), "got %v", err)
		})
	}
}
