package schedule_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/internal/schedule"
	"academy/internal/store/inmem"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tod(h, m int) *schedule.TimeOfDay {
	t := schedule.NewTimeOfDay(h, m)
	return &t
}

func id(v int64) *int64 { return &v }

func seed() *inmem.ScheduleStore {
	st := inmem.NewScheduleStore()
	st.AddClass(schedule.Class{
		ID: 1, Name: "Math A", Subject: "math", TeacherID: id(100), TeacherName: "Kim",
		Weekdays: schedule.NewWeekdaySet(schedule.Monday, schedule.Wednesday),
		Start:    tod(14, 0), End: tod(15, 30), StudentCount: 8, MaxStudents: 12,
	}, true)
	st.AddClass(schedule.Class{
		ID: 2, Name: "English B", TeacherID: id(200),
		Weekdays: schedule.NewWeekdaySet(schedule.Friday),
		Start:    tod(18, 0), End: tod(19, 0),
	}, true)
	st.AddClass(schedule.Class{
		ID: 3, Name: "Closed", Weekdays: schedule.NewWeekdaySet(schedule.Monday),
		Start: tod(9, 0), End: tod(10, 0),
	}, false)

	st.AddEvent(schedule.StoredEvent{
		ID: 5, Title: "Spring camp", Type: schedule.TypeCamp, StartDate: day(2026, 3, 6),
		EndDate: func() *time.Time { d := day(2026, 3, 7); return &d }(), AllDay: true,
	})
	st.AddEvent(schedule.StoredEvent{
		ID: 6, Title: "Makeup", Type: schedule.TypeMakeup, StartDate: day(2026, 3, 10),
		Start: tod(10, 0), End: tod(11, 0), ClassID: id(1), TeacherID: id(100), Color: "#123456",
	})
	st.AddEvent(schedule.StoredEvent{
		ID: 7, Title: "Outside", Type: schedule.TypeOther, StartDate: day(2026, 4, 20),
	})

	st.AddHoliday(schedule.Holiday{
		ID: 9, Title: "Independence day", Type: schedule.HolidayNational,
		StartDate: day(2026, 3, 2), EndDate: day(2026, 3, 2), AffectsAll: true,
	})
	st.AddHoliday(schedule.Holiday{
		ID: 10, Title: "English break", Type: schedule.HolidayTemporary,
		StartDate: day(2026, 3, 9), EndDate: day(2026, 3, 13), ClassIDs: []int64{2},
	})
	return st
}

func byID(events []schedule.Event) map[string]schedule.Event {
	m := map[string]schedule.Event{}
	for _, e := range events {
		m[e.ID] = e
	}
	return m
}

func TestCalendarMergesSources(t *testing.T) {
	cal := schedule.NewCalendar(seed(), nil)
	w := schedule.Window{Start: day(2026, 3, 2), End: day(2026, 3, 15)}

	events, err := cal.Events(context.Background(), w, schedule.Filter{})
	require.NoError(t, err)

	// 2 stored + 2 holidays + 4 Math + 2 English
	require.Len(t, events, 10)
	assert.Equal(t, "event_5", events[0].ID, "stored events come first")
	assert.Equal(t, "holiday_9", events[2].ID)

	m := byID(events)

	camp := m["event_5"]
	assert.True(t, camp.AllDay)
	assert.Equal(t, "2026-03-06", camp.Start)
	assert.Equal(t, "2026-03-08", camp.End, "all-day end is exclusive")
	assert.Equal(t, "#9c27b0", camp.BackgroundColor)

	makeup := m["event_6"]
	assert.Equal(t, "2026-03-10T10:00:00", makeup.Start)
	assert.Equal(t, "2026-03-10T11:00:00", makeup.End)
	assert.Equal(t, "#123456", makeup.BackgroundColor)

	hol := m["holiday_9"]
	assert.Equal(t, "background", hol.Display)
	assert.Equal(t, "2026-03-03", hol.End)
	assert.Equal(t, "#ea4335", hol.BorderColor)
	assert.Equal(t, "holiday", hol.ExtendedProps["type"])

	// the holiday on 2 March does not suppress the Monday class
	math := m["class_1_2026-03-02"]
	assert.Equal(t, "Math A", math.Title)
	assert.Equal(t, "2026-03-02T14:00:00", math.Start)
	assert.Equal(t, "2026-03-02T15:30:00", math.End)
	assert.Equal(t, schedule.ColorFor(1), math.BackgroundColor)
	assert.Equal(t, "regular_class", math.ExtendedProps["type"])
	assert.Equal(t, int64(1), math.ExtendedProps["class_id"])
	assert.Equal(t, "Kim", math.ExtendedProps["teacher"])
	assert.Equal(t, 8, math.ExtendedProps["student_count"])

	_, ok := m["class_3_2026-03-02"]
	assert.False(t, ok, "inactive classes are not materialized")
	_, ok = m["event_7"]
	assert.False(t, ok)
}

func TestCalendarClassFilter(t *testing.T) {
	cal := schedule.NewCalendar(seed(), nil)
	w := schedule.Window{Start: day(2026, 3, 2), End: day(2026, 3, 15)}

	events, err := cal.Events(context.Background(), w, schedule.Filter{ClassID: id(1)})
	require.NoError(t, err)
	m := byID(events)

	assert.Contains(t, m, "event_6")
	assert.NotContains(t, m, "event_5", "events without a class are filtered out")
	assert.Contains(t, m, "holiday_9", "holidays for all classes stay")
	assert.NotContains(t, m, "holiday_10", "holidays for other classes are hidden")
	assert.NotContains(t, m, "class_2_2026-03-06")
	assert.Contains(t, m, "class_1_2026-03-11")

	events, err = cal.Events(context.Background(), w, schedule.Filter{ClassID: id(2)})
	require.NoError(t, err)
	assert.Contains(t, byID(events), "holiday_10")
}

func TestCalendarTeacherFilter(t *testing.T) {
	cal := schedule.NewCalendar(seed(), nil)
	w := schedule.Window{Start: day(2026, 3, 2), End: day(2026, 3, 15)}

	events, err := cal.Events(context.Background(), w, schedule.Filter{TeacherID: id(200)})
	require.NoError(t, err)
	for _, e := range events {
		if e.ExtendedProps["type"] == "regular_class" {
			assert.Equal(t, int64(2), e.ExtendedProps["class_id"])
		}
	}
	assert.NotContains(t, byID(events), "event_6")
}

func TestCalendarInvertedWindow(t *testing.T) {
	cal := schedule.NewCalendar(seed(), nil)
	events, err := cal.Events(context.Background(), schedule.Window{Start: day(2026, 3, 15), End: day(2026, 3, 2)}, schedule.Filter{})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NotNil(t, events)
}

func TestEventJSONShape(t *testing.T) {
	cal := schedule.NewCalendar(seed(), nil)
	events, err := cal.Events(context.Background(), schedule.Window{Start: day(2026, 3, 2), End: day(2026, 3, 2)}, schedule.Filter{ClassID: id(1)})
	require.NoError(t, err)
	require.NotEmpty(t, events)

	b, err := json.Marshal(events[len(events)-1])
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	for _, key := range []string{"id", "title", "start", "end", "allDay", "backgroundColor", "borderColor", "extendedProps"} {
		assert.Contains(t, raw, key)
	}
	assert.NotContains(t, raw, "display")
}

func TestParseWindow(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		start, end string
		want       schedule.Window
	}{
		{"dates", "2026-03-01", "2026-04-12", schedule.Window{Start: day(2026, 3, 1), End: day(2026, 4, 12)}},
		{"utc date-times", "2026-03-01T00:00:00Z", "2026-04-12T00:00:00Z", schedule.Window{Start: day(2026, 3, 1), End: day(2026, 4, 12)}},
		{"offset keeps local date", "2026-03-01T00:00:00+09:00", "2026-04-12T00:00:00+09:00", schedule.Window{Start: day(2026, 3, 1), End: day(2026, 4, 12)}},
		{"unescaped plus", "2026-03-01T00:00:00 09:00", "2026-04-12T00:00:00 09:00", schedule.Window{Start: day(2026, 3, 1), End: day(2026, 4, 12)}},
		{"naive date-time", "2026-03-01T08:30:00", "2026-03-02T08:30", schedule.Window{Start: day(2026, 3, 1), End: day(2026, 3, 2)}},
		{"fallback on garbage", "yesterday", "2026-04-12", schedule.Window{Start: day(2026, 9, 19), End: day(2026, 12, 18)}},
		{"fallback on missing", "", "", schedule.Window{Start: day(2026, 9, 19), End: day(2026, 12, 18)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := schedule.ParseWindow(tt.start, tt.end, now)
			assert.True(t, tt.want.Start.Equal(got.Start), "start %s", got.Start)
			assert.True(t, tt.want.End.Equal(got.End), "end %s", got.End)
		})
	}
}

func TestStoredEventOverlaps(t *testing.T) {
	w := schedule.Window{Start: day(2026, 3, 1), End: day(2026, 3, 31)}
	end := day(2026, 3, 2)
	assert.True(t, schedule.StoredEvent{StartDate: day(2026, 2, 20), EndDate: &end}.Overlaps(w))
	assert.False(t, schedule.StoredEvent{StartDate: day(2026, 2, 20)}.Overlaps(w), "open-ended events must start inside")
	assert.True(t, schedule.StoredEvent{StartDate: day(2026, 3, 31)}.Overlaps(w))
	assert.False(t, schedule.StoredEvent{StartDate: day(2026, 4, 1)}.Overlaps(w))
}
