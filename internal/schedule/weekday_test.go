package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekdaySet(t *testing.T) {
	tests := []struct {
		in   string
		want WeekdaySet
	}{
		{"", 0},
		{"mon", NewWeekdaySet(Monday)},
		{"mon,wed", NewWeekdaySet(Monday, Wednesday)},
		{" Mon , WED ,", NewWeekdaySet(Monday, Wednesday)},
		{"sun,sat,sun", NewWeekdaySet(Saturday, Sunday)},
	}
	for _, tt := range tests {
		got, err := ParseWeekdaySet(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseWeekdaySet("mon,funday")
	assert.Error(t, err)
}

func TestWeekdaySetHas(t *testing.T) {
	s := NewWeekdaySet(Monday, Sunday)
	assert.True(t, s.Has(time.Monday))
	assert.True(t, s.Has(time.Sunday))
	assert.False(t, s.Has(time.Tuesday))
	assert.False(t, s.Empty())
	assert.True(t, WeekdaySet(0).Empty())
	assert.Equal(t, "mon,sun", s.String())
}

func TestWeekdayOf(t *testing.T) {
	assert.Equal(t, Monday, WeekdayOf(time.Monday))
	assert.Equal(t, Saturday, WeekdayOf(time.Saturday))
	assert.Equal(t, Sunday, WeekdayOf(time.Sunday))
}

func TestWeekdaySetJSON(t *testing.T) {
	b, err := json.Marshal(NewWeekdaySet(Wednesday, Monday))
	require.NoError(t, err)
	assert.JSONEq(t, `["mon","wed"]`, string(b))

	var s WeekdaySet
	require.NoError(t, json.Unmarshal([]byte(`["fri","tue"]`), &s))
	assert.Equal(t, NewWeekdaySet(Tuesday, Friday), s)

	require.NoError(t, json.Unmarshal([]byte(`"thu, sat"`), &s))
	assert.Equal(t, NewWeekdaySet(Thursday, Saturday), s)

	assert.Error(t, json.Unmarshal([]byte(`["xyz"]`), &s))

	b, err = json.Marshal(WeekdaySet(0))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestWeekdaySetSQL(t *testing.T) {
	v, err := NewWeekdaySet(Monday, Wednesday).Value()
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	var s WeekdaySet
	require.NoError(t, s.Scan(int64(5)))
	assert.Equal(t, NewWeekdaySet(Monday, Wednesday), s)
	require.NoError(t, s.Scan(nil))
	assert.True(t, s.Empty())
	assert.Error(t, s.Scan(int64(200)))
	assert.Error(t, s.Scan("mon"))
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("14:00")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(14, 0), tod)
	assert.Equal(t, "14:00", tod.String())
	assert.Equal(t, "14:00:00", tod.isoClock())

	tod, err = ParseTimeOfDay("09:05:59")
	require.NoError(t, err)
	assert.Equal(t, "09:05", tod.String())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC), NewTimeOfDay(15, 30).On(day))
	assert.True(t, NewTimeOfDay(23, 59).Valid())
	assert.False(t, TimeOfDay(24*60).Valid())
}
