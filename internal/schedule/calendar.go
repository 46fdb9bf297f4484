package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"academy/internal/metrics"
)

// EventType classifies stored calendar events.
type EventType string

const (
	TypeClass   EventType = "class"
	TypeMakeup  EventType = "makeup"
	TypeHoliday EventType = "holiday"
	TypeSpecial EventType = "special"
	TypeCamp    EventType = "camp"
	TypeOther   EventType = "other"
)

var typeColors = map[EventType]string{
	TypeClass:   "#4285f4",
	TypeMakeup:  "#34a853",
	TypeHoliday: "#ea4335",
	TypeSpecial: "#fbbc04",
	TypeCamp:    "#9c27b0",
	TypeOther:   "#607d8b",
}

var typeLabels = map[EventType]string{
	TypeClass:   "Regular class",
	TypeMakeup:  "Makeup class",
	TypeHoliday: "Closure",
	TypeSpecial: "Special lecture",
	TypeCamp:    "Camp",
	TypeOther:   "Other",
}

const (
	defaultColor = "#607d8b"
	holidayColor = "#ea4335"
)

// Color is the default display color for the type.
func (t EventType) Color() string {
	if c, ok := typeColors[t]; ok {
		return c
	}
	return defaultColor
}

func (t EventType) Label() string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// StoredEvent is a one-off calendar entry.
type StoredEvent struct {
	ID          int64
	Title       string
	Type        EventType
	Description string
	StartDate   time.Time
	EndDate     *time.Time
	Start       *TimeOfDay
	End         *TimeOfDay
	AllDay      bool
	ClassID     *int64
	ClassName   string
	TeacherID   *int64
	TeacherName string
	Location    string
	Color       string
}

// Overlaps reports whether the event touches w. An event without an end date
// only counts when it starts inside the window.
func (e StoredEvent) Overlaps(w Window) bool {
	if e.StartDate.After(w.End) {
		return false
	}
	if e.EndDate == nil {
		return !e.StartDate.Before(w.Start)
	}
	return !e.EndDate.Before(w.Start)
}

// HolidayType classifies closures.
type HolidayType string

const (
	HolidayRegular   HolidayType = "regular"
	HolidayNational  HolidayType = "national"
	HolidayTemporary HolidayType = "temporary"
	HolidayOther     HolidayType = "other"
)

var holidayLabels = map[HolidayType]string{
	HolidayRegular:   "Regular closure",
	HolidayNational:  "Public holiday",
	HolidayTemporary: "Temporary closure",
	HolidayOther:     "Other",
}

func (t HolidayType) Label() string {
	if l, ok := holidayLabels[t]; ok {
		return l
	}
	return string(t)
}

// Holiday is an inclusive closed date range.
type Holiday struct {
	ID          int64
	Title       string
	Type        HolidayType
	StartDate   time.Time
	EndDate     time.Time
	Description string
	AffectsAll  bool
	ClassIDs    []int64
}

// Affects reports whether the closure applies to classID.
func (h Holiday) Affects(classID int64) bool {
	if h.AffectsAll {
		return true
	}
	for _, id := range h.ClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}

// Window is an inclusive range of calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

const (
	fallbackBefore = 30
	fallbackAfter  = 60
)

var windowLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ParseWindow parses ISO-8601 dates or date-times. If either bound cannot be
// parsed the window is [today-30d, today+60d] around now.
func ParseWindow(start, end string, now time.Time) Window {
	s, okS := parseDate(start)
	e, okE := parseDate(end)
	if !okS || !okE {
		today := truncateDay(now)
		return Window{Start: today.AddDate(0, 0, -fallbackBefore), End: today.AddDate(0, 0, fallbackAfter)}
	}
	return Window{Start: s, End: e}
}

func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	// "+09:00" arrives as " 09:00" when the query string was not escaped.
	if i := strings.LastIndex(v, " "); i > 0 && strings.Contains(v[:i], "T") {
		v = v[:i] + "+" + v[i+1:]
	}
	for _, layout := range windowLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return truncateDay(t), true
		}
	}
	return time.Time{}, false
}

// Filter narrows the calendar to one class and/or teacher.
type Filter struct {
	ClassID   *int64
	TeacherID *int64
}

// Matches reports whether an item with the given class and teacher passes f.
func (f Filter) Matches(classID, teacherID *int64) bool {
	if f.ClassID != nil && (classID == nil || *classID != *f.ClassID) {
		return false
	}
	if f.TeacherID != nil && (teacherID == nil || *teacherID != *f.TeacherID) {
		return false
	}
	return true
}

// Event is one calendar item in the shape FullCalendar consumes.
type Event struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Start           string         `json:"start"`
	End             string         `json:"end,omitempty"`
	AllDay          bool           `json:"allDay"`
	BackgroundColor string         `json:"backgroundColor"`
	BorderColor     string         `json:"borderColor"`
	Display         string         `json:"display,omitempty"`
	ExtendedProps   map[string]any `json:"extendedProps"`
}

// Store reads the calendar sources. Implementations apply the window and filter.
type Store interface {
	ActiveClasses(ctx context.Context, f Filter) ([]Class, error)
	EventsBetween(ctx context.Context, w Window, f Filter) ([]StoredEvent, error)
	HolidaysBetween(ctx context.Context, w Window) ([]Holiday, error)
}

// Calendar builds the merged event list.
type Calendar struct {
	store Store
	log   *zap.Logger
}

func NewCalendar(store Store, log *zap.Logger) *Calendar {
	if log == nil {
		log = zap.NewNop()
	}
	return &Calendar{store: store, log: log}
}

// Events returns stored events, then holiday backgrounds, then class instances
// for the window. Holidays never remove class instances.
func (c *Calendar) Events(ctx context.Context, w Window, f Filter) ([]Event, error) {
	w = Window{Start: truncateDay(w.Start), End: truncateDay(w.End)}
	out := []Event{}
	if w.End.Before(w.Start) {
		return out, nil
	}

	stored, err := c.store.EventsBetween(ctx, w, f)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	for _, e := range stored {
		out = append(out, storedEvent(e))
	}

	holidays, err := c.store.HolidaysBetween(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	for _, h := range holidays {
		if f.ClassID != nil && !h.Affects(*f.ClassID) {
			continue
		}
		out = append(out, holidayEvent(h))
	}

	classes, err := c.store.ActiveClasses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load classes: %w", err)
	}
	occ := Materialize(classes, w.Start, w.End)
	for _, o := range occ {
		out = append(out, classEvent(o))
	}
	metrics.Occurrences.Observe(float64(len(occ)))

	c.log.Debug("calendar built",
		zap.Time("start", w.Start),
		zap.Time("end", w.End),
		zap.Int("stored", len(stored)),
		zap.Int("holidays", len(holidays)),
		zap.Int("occurrences", len(occ)),
	)
	return out, nil
}

func storedEvent(e StoredEvent) Event {
	color := e.Color
	if color == "" {
		color = e.Type.Color()
	}
	ev := Event{
		ID:              fmt.Sprintf("event_%d", e.ID),
		Title:           e.Title,
		AllDay:          e.AllDay,
		BackgroundColor: color,
		BorderColor:     color,
		ExtendedProps: map[string]any{
			"type":         string(e.Type),
			"type_display": e.Type.Label(),
			"description":  e.Description,
			"class_name":   e.ClassName,
			"teacher":      e.TeacherName,
			"location":     e.Location,
		},
	}
	startDay := e.StartDate.Format(time.DateOnly)
	switch {
	case e.AllDay:
		ev.Start = startDay
		if e.EndDate != nil {
			ev.End = e.EndDate.AddDate(0, 0, 1).Format(time.DateOnly)
		}
	default:
		ev.Start = startDay
		if e.Start != nil {
			ev.Start = startDay + "T" + e.Start.isoClock()
		}
		if e.End != nil {
			endDay := startDay
			if e.EndDate != nil {
				endDay = e.EndDate.Format(time.DateOnly)
			}
			ev.End = endDay + "T" + e.End.isoClock()
		}
	}
	return ev
}

func holidayEvent(h Holiday) Event {
	return Event{
		ID:              fmt.Sprintf("holiday_%d", h.ID),
		Title:           h.Title,
		Start:           h.StartDate.Format(time.DateOnly),
		End:             h.EndDate.AddDate(0, 0, 1).Format(time.DateOnly),
		AllDay:          true,
		BackgroundColor: holidayColor,
		BorderColor:     holidayColor,
		Display:         "background",
		ExtendedProps: map[string]any{
			"type":         string(TypeHoliday),
			"type_display": h.Type.Label(),
			"description":  h.Description,
		},
	}
}

func classEvent(o Occurrence) Event {
	day := o.Date.Format(time.DateOnly)
	return Event{
		ID:              o.ID(),
		Title:           o.Title,
		Start:           day + "T" + o.Start.isoClock(),
		End:             day + "T" + o.End.isoClock(),
		BackgroundColor: o.Color,
		BorderColor:     o.Color,
		ExtendedProps: map[string]any{
			"type":          "regular_class",
			"type_display":  TypeClass.Label(),
			"class_id":      o.ClassID,
			"teacher":       o.Teacher,
			"subject":       o.Subject,
			"student_count": o.StudentCount,
			"max_students":  o.MaxStudents,
		},
	}
}
