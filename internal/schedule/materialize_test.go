package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tod(h, m int) *TimeOfDay {
	t := NewTimeOfDay(h, m)
	return &t
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMaterializeTwoWeeks(t *testing.T) {
	c := Class{
		ID:       7,
		Name:     "Math A",
		Weekdays: NewWeekdaySet(Monday, Wednesday),
		Start:    tod(14, 0),
		End:      tod(15, 30),
	}
	// Monday 2 March through Sunday 15 March
	occ := Materialize([]Class{c}, date(2026, 3, 2), date(2026, 3, 15))
	require.Len(t, occ, 4)

	want := []time.Time{date(2026, 3, 2), date(2026, 3, 4), date(2026, 3, 9), date(2026, 3, 11)}
	for i, o := range occ {
		assert.Equal(t, want[i], o.Date)
		assert.Contains(t, []time.Weekday{time.Monday, time.Wednesday}, o.Date.Weekday())
		assert.Equal(t, "14:00", o.Start.String())
		assert.Equal(t, "15:30", o.End.String())
		assert.Equal(t, "Math A", o.Title)
		assert.Equal(t, ColorFor(7), o.Color)
	}
	assert.Equal(t, "class_7_2026-03-02", occ[0].ID())
}

func TestMaterializeSkipsIncompleteClasses(t *testing.T) {
	classes := []Class{
		{ID: 1, Weekdays: 0, Start: tod(9, 0), End: tod(10, 0)},
		{ID: 2, Weekdays: NewWeekdaySet(Monday), Start: nil, End: tod(10, 0)},
		{ID: 3, Weekdays: NewWeekdaySet(Monday), Start: tod(9, 0), End: nil},
	}
	assert.Empty(t, Materialize(classes, date(2026, 3, 1), date(2026, 3, 31)))
}

func TestMaterializeInvertedRange(t *testing.T) {
	c := Class{ID: 1, Weekdays: allWeekdays, Start: tod(9, 0), End: tod(10, 0)}
	assert.Empty(t, Materialize([]Class{c}, date(2026, 3, 10), date(2026, 3, 9)))
	assert.Len(t, Materialize([]Class{c}, date(2026, 3, 10), date(2026, 3, 10)), 1, "single day range is inclusive")
}

func TestMaterializeIgnoresTimeOfDayInBounds(t *testing.T) {
	c := Class{ID: 1, Weekdays: NewWeekdaySet(Tuesday), Start: tod(9, 0), End: tod(10, 0)}
	start := time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)
	assert.Len(t, Materialize([]Class{c}, start, end), 1)
}

func TestMaterializeUniqueIDs(t *testing.T) {
	classes := []Class{
		{ID: 1, Weekdays: allWeekdays, Start: tod(9, 0), End: tod(10, 0)},
		{ID: 2, Weekdays: allWeekdays, Start: tod(11, 0), End: tod(12, 0)},
	}
	occ := Materialize(classes, date(2026, 1, 1), date(2026, 3, 31))
	assert.Len(t, occ, 2*90)
	seen := map[string]bool{}
	for _, o := range occ {
		assert.False(t, seen[o.ID()], o.ID())
		seen[o.ID()] = true
	}
}

func TestColorForIsStable(t *testing.T) {
	for id := int64(1); id < 50; id++ {
		c := ColorFor(id)
		assert.Equal(t, c, ColorFor(id))
		assert.Contains(t, classPalette, c)
	}
	used := map[string]bool{}
	for id := int64(1); id <= 30; id++ {
		used[ColorFor(id)] = true
	}
	assert.Greater(t, len(used), 1, "ids should spread over the palette")
}
