// Package inmem provides mutex-guarded in-memory stores for development and tests.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"academy/internal/attendance"
)

type attendanceKey struct {
	studentID int64
	date      string
}

// AttendanceStore implements attendance.Store in memory, enforcing the same
// uniqueness rules as the Postgres schema.
type AttendanceStore struct {
	mu       sync.RWMutex
	classes  map[int64]bool
	students map[int64]attendance.Student
	sessions map[string]*attendance.Session
	tokens   map[string]string
	records  map[attendanceKey]attendance.Record
	logs     []attendance.ScanLog
}

// NewAttendanceStore returns an empty store.
func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{
		classes:  map[int64]bool{},
		students: map[int64]attendance.Student{},
		sessions: map[string]*attendance.Session{},
		tokens:   map[string]string{},
		records:  map[attendanceKey]attendance.Record{},
	}
}

var _ attendance.Store = (*AttendanceStore)(nil)

// AddClass registers a class id.
func (m *AttendanceStore) AddClass(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[id] = true
}

// AddStudent registers or replaces a student.
func (m *AttendanceStore) AddStudent(st attendance.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[st.ID] = st
}

// PutSession stores s as-is, bypassing the open-session rules.
func (m *AttendanceStore) PutSession(s attendance.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &s
	m.tokens[s.Token] = s.ID
}

// Logs returns a copy of every scan log in insertion order.
func (m *AttendanceStore) Logs() []attendance.ScanLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]attendance.ScanLog(nil), m.logs...)
}

// Records returns every attendance record.
func (m *AttendanceStore) Records() []attendance.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]attendance.Record, 0, len(m.records))
	for _, r := range m.records {
		res = append(res, r)
	}
	return res
}

func (m *AttendanceStore) ClassExists(_ context.Context, classID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.classes[classID], nil
}

func (m *AttendanceStore) OpenSession(_ context.Context, s attendance.Session) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.tokens[s.Token]; taken {
		return 0, attendance.ErrDuplicateToken
	}
	var closed int64
	for _, cur := range m.sessions {
		if cur.ClassID == s.ClassID && cur.Status == attendance.SessionActive {
			cur.Status = attendance.SessionClosed
			closed++
		}
	}
	m.sessions[s.ID] = &s
	m.tokens[s.Token] = s.ID
	return closed, nil
}

func (m *AttendanceStore) SessionByToken(_ context.Context, token string) (*attendance.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tokens[token]
	if !ok {
		return nil, nil
	}
	s := *m.sessions[id]
	return &s, nil
}

func (m *AttendanceStore) SessionByID(_ context.Context, id string) (*attendance.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	s := *cur
	return &s, nil
}

func (m *AttendanceStore) ListSessions(_ context.Context, classID *int64, limit int) ([]attendance.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []attendance.Session
	for _, s := range m.sessions {
		if classID != nil && s.ClassID != *classID {
			continue
		}
		res = append(res, *s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *AttendanceStore) MarkSessionExpired(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != attendance.SessionActive {
		return false, nil
	}
	s.Status = attendance.SessionExpired
	return true, nil
}

func (m *AttendanceStore) ExpireSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.Status == attendance.SessionActive && !s.ExpiresAt.After(now) {
			s.Status = attendance.SessionExpired
			n++
		}
	}
	return n, nil
}

func (m *AttendanceStore) StudentByID(_ context.Context, id int64) (*attendance.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *AttendanceStore) EnrolledStudents(_ context.Context, classID int64) ([]attendance.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []attendance.Student
	for _, st := range m.students {
		if st.InClass(classID) && st.Status == "enrolled" {
			res = append(res, st)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (m *AttendanceStore) AttendanceExists(_ context.Context, studentID int64, date time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[attendanceKey{studentID, date.Format(time.DateOnly)}]
	return ok, nil
}

func (m *AttendanceStore) InsertAttendance(_ context.Context, r attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attendanceKey{r.StudentID, r.Date.Format(time.DateOnly)}
	if _, ok := m.records[key]; ok {
		return attendance.Record{}, attendance.ErrDuplicateAttendance
	}
	m.records[key] = r
	return r, nil
}

func (m *AttendanceStore) InsertScanLog(_ context.Context, l attendance.ScanLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
	return nil
}

func (m *AttendanceStore) ListScanLogs(_ context.Context, f attendance.LogFilter) ([]attendance.ScanLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []attendance.ScanLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		l := m.logs[i]
		switch {
		case f.ClassID != nil && (l.ClassID == nil || *l.ClassID != *f.ClassID):
			continue
		case f.Result != "" && l.Result != f.Result:
			continue
		case f.From != nil && l.ScannedAt.Before(*f.From):
			continue
		case f.To != nil && !l.ScannedAt.Before(*f.To):
			continue
		}
		res = append(res, l)
	}
	if f.Offset >= len(res) {
		return nil, nil
	}
	res = res[f.Offset:]
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}
