package merge

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charting-systemv1/internal/model"
)

func row(t int64, o, h, l, c, v float64) RawBar {
	return RawBar{Time: t, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestNormalize_SortsAndDedups(t *testing.T) {
	rows := []RawBar{
		row(120, 10, 11, 9, 10.5, 5),
		row(60, 9, 10, 8, 9.5, 3),
		row(120, 10.2, 11.2, 9.2, 10.7, 6), // duplicate key, last seen wins
	}

	out := Normalize(rows)
	require.Len(t, out, 2)
	assert.Equal(t, int64(60), out[0].Time)
	assert.Equal(t, int64(120), out[1].Time)
	assert.Equal(t, 10.2, out[1].Open)
	assert.Equal(t, 6.0, out[1].Volume)
}

func TestNormalize_RecomputesHighLow(t *testing.T) {
	// Inconsistent quadruple: close above reported high, open below reported low.
	out := Normalize([]RawBar{row(0, 9.0, 10.0, 9.5, 12.0, 1)})
	require.Len(t, out, 1)
	assert.Equal(t, 12.0, out[0].High)
	assert.Equal(t, 9.0, out[0].Low)
	assert.True(t, out[0].Low <= math.Min(out[0].Open, out[0].Close))
	assert.True(t, out[0].High >= math.Max(out[0].Open, out[0].Close))
}

func TestNormalize_DropsNonFiniteRows(t *testing.T) {
	rows := []RawBar{
		row(60, 10, 11, 9, 10, 1),
		row(120, math.NaN(), 11, 9, 10, 1),
		row(180, 10, math.Inf(1), 9, 10, 1),
		row(240, 10, 11, 9, 10, math.Inf(-1)),
	}
	out := Normalize(rows)
	require.Len(t, out, 1)
	assert.Equal(t, int64(60), out[0].Time)
}

func TestNormalize_Idempotent(t *testing.T) {
	rows := []RawBar{
		row(300, 5, 4, 6, 5.5, 2), // garbled quadruple
		row(240, 7, 8, 6, 7.5, 1),
		row(300, 5.1, 6.1, 4.9, 5.6, 3),
	}
	once := Normalize(rows)
	twice := NormalizeBars(once)
	assert.Equal(t, once, twice)
}

func TestRawBar_UnmarshalAlternateKeys(t *testing.T) {
	var short RawBar
	require.NoError(t, json.Unmarshal([]byte(`{"t":60,"o":1,"h":2,"l":0.5,"c":1.5,"v":10}`), &short))
	assert.Equal(t, int64(60), short.Time)
	assert.Equal(t, 1.5, short.Close)

	var long RawBar
	require.NoError(t, json.Unmarshal(
		[]byte(`{"time":120,"open":1,"high":2,"low":0.5,"close":1.5,"session":"pre","isExtended":true}`), &long))
	assert.Equal(t, int64(120), long.Time)
	assert.Equal(t, model.SessionPre, long.Session)
	assert.True(t, long.IsExtended)
	assert.Equal(t, 0.0, long.Volume, "missing volume defaults to zero")
}

func TestNormalize_MissingPriceFieldDropped(t *testing.T) {
	var r RawBar
	require.NoError(t, json.Unmarshal([]byte(`{"t":60,"o":1,"h":2,"c":1.5}`), &r))
	assert.Empty(t, Normalize([]RawBar{r}), "row without a low must be dropped")
}
