package schedule

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"time"
)

// classPalette is cycled across classes in the calendar view.
var classPalette = []string{"#4285f4", "#34a853", "#9c27b0", "#ff5722", "#00bcd4", "#795548"}

// ColorFor returns the display color of a class. It depends only on the id.
func ColorFor(classID int64) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(classID, 10)))
	return classPalette[h.Sum32()%uint32(len(classPalette))]
}

// Class is an active class with its weekly pattern.
type Class struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Subject      string     `json:"subject"`
	TeacherID    *int64     `json:"teacher_id,omitempty"`
	TeacherName  string     `json:"teacher"`
	Weekdays     WeekdaySet `json:"weekdays"`
	Start        *TimeOfDay `json:"start_time,omitempty"`
	End          *TimeOfDay `json:"end_time,omitempty"`
	StudentCount int        `json:"student_count"`
	MaxStudents  int        `json:"max_students"`
}

// Schedulable reports whether the class has enough data to be materialized.
func (c Class) Schedulable() bool {
	return !c.Weekdays.Empty() && c.Start != nil && c.End != nil
}

// Occurrence is one dated instance of a class.
type Occurrence struct {
	ClassID      int64
	Date         time.Time
	Start        TimeOfDay
	End          TimeOfDay
	Title        string
	Subject      string
	Teacher      string
	StudentCount int
	MaxStudents  int
	Color        string
}

// ID is stable for a (class, date) pair.
func (o Occurrence) ID() string {
	return fmt.Sprintf("class_%d_%s", o.ClassID, o.Date.Format(time.DateOnly))
}

// Materialize expands classes over the inclusive date range [start, end].
// Classes without weekdays or times are skipped. An inverted range yields nothing.
func Materialize(classes []Class, start, end time.Time) []Occurrence {
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		return nil
	}
	var out []Occurrence
	for _, c := range classes {
		if !c.Schedulable() {
			continue
		}
		color := ColorFor(c.ID)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			if !c.Weekdays.Has(d.Weekday()) {
				continue
			}
			out = append(out, Occurrence{
				ClassID:      c.ID,
				Date:         d,
				Start:        *c.Start,
				End:          *c.End,
				Title:        c.Name,
				Subject:      c.Subject,
				Teacher:      c.TeacherName,
				StudentCount: c.StudentCount,
				MaxStudents:  c.MaxStudents,
				Color:        color,
			})
		}
	}
	return out
}

// truncateDay keeps the calendar date of t as midnight UTC.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
