package inmem

import (
	"context"
	"sort"
	"sync"

	"academy/internal/schedule"
)

// ScheduleStore implements schedule.Store over slices.
type ScheduleStore struct {
	mu       sync.RWMutex
	classes  []schedule.Class
	inactive map[int64]bool
	events   []schedule.StoredEvent
	holidays []schedule.Holiday
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{inactive: map[int64]bool{}}
}

var _ schedule.Store = (*ScheduleStore)(nil)

// AddClass registers a class; inactive classes are never returned.
func (m *ScheduleStore) AddClass(c schedule.Class, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes = append(m.classes, c)
	m.inactive[c.ID] = !active
}

func (m *ScheduleStore) AddEvent(e schedule.StoredEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *ScheduleStore) AddHoliday(h schedule.Holiday) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays = append(m.holidays, h)
}

func (m *ScheduleStore) ActiveClasses(_ context.Context, f schedule.Filter) ([]schedule.Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []schedule.Class
	for _, c := range m.classes {
		id := c.ID
		if m.inactive[id] || !f.Matches(&id, c.TeacherID) {
			continue
		}
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m *ScheduleStore) EventsBetween(_ context.Context, w schedule.Window, f schedule.Filter) ([]schedule.StoredEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []schedule.StoredEvent
	for _, e := range m.events {
		if e.Overlaps(w) && f.Matches(e.ClassID, e.TeacherID) {
			res = append(res, e)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].StartDate.Before(res[j].StartDate) })
	return res, nil
}

func (m *ScheduleStore) HolidaysBetween(_ context.Context, w schedule.Window) ([]schedule.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []schedule.Holiday
	for _, h := range m.holidays {
		if !h.StartDate.After(w.End) && !h.EndDate.Before(w.Start) {
			res = append(res, h)
		}
	}
	return res, nil
}
