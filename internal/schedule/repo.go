package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Repository reads classes, calendar events and holidays from Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// filterClauses appends class/teacher conditions on the given columns.
func filterClauses(f Filter, classCol, teacherCol string, args []any, clauses []string) ([]any, []string) {
	if f.ClassID != nil {
		args = append(args, *f.ClassID)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", classCol, len(args)))
	}
	if f.TeacherID != nil {
		args = append(args, *f.TeacherID)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", teacherCol, len(args)))
	}
	return args, clauses
}

func minutes(n sql.NullInt16) *TimeOfDay {
	if !n.Valid {
		return nil
	}
	t := TimeOfDay(n.Int16)
	return &t
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// ActiveClasses lists active classes with their enrolled student counts.
func (r *Repository) ActiveClasses(ctx context.Context, f Filter) ([]Class, error) {
	query := `
		SELECT c.id, c.name, c.subject, c.teacher_id, COALESCE(t.name, ''),
		       c.weekday_mask, c.start_minute, c.end_minute, c.max_students,
		       (SELECT COUNT(*) FROM students s WHERE s.assigned_class_id = c.id AND s.status = 'enrolled')
		FROM classes c
		LEFT JOIN teachers t ON t.id = c.teacher_id`
	args, clauses := filterClauses(f, "c.id", "c.teacher_id", nil, []string{"c.is_active"})
	query += " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY c.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Class
	for rows.Next() {
		var (
			c          Class
			teacherID  sql.NullInt64
			start, end sql.NullInt16
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Subject, &teacherID, &c.TeacherName,
			&c.Weekdays, &start, &end, &c.MaxStudents, &c.StudentCount); err != nil {
			return nil, err
		}
		c.TeacherID = int64Ptr(teacherID)
		c.Start, c.End = minutes(start), minutes(end)
		res = append(res, c)
	}
	return res, rows.Err()
}

// EventsBetween lists stored events overlapping w.
func (r *Repository) EventsBetween(ctx context.Context, w Window, f Filter) ([]StoredEvent, error) {
	query := `
		SELECT e.id, e.title, e.event_type, e.description, e.start_date, e.end_date,
		       e.start_minute, e.end_minute, e.all_day, e.class_id, COALESCE(c.name, ''),
		       e.teacher_id, COALESCE(t.name, ''), e.location, e.color
		FROM calendar_events e
		LEFT JOIN classes c ON c.id = e.class_id
		LEFT JOIN teachers t ON t.id = e.teacher_id`
	args := []any{dateParam(w.Start), dateParam(w.End)}
	clauses := []string{"e.start_date <= $2", "(e.end_date >= $1 OR (e.end_date IS NULL AND e.start_date >= $1))"}
	args, clauses = filterClauses(f, "e.class_id", "e.teacher_id", args, clauses)
	query += " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY e.start_date, e.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []StoredEvent
	for rows.Next() {
		var (
			e                  StoredEvent
			endDate            sql.NullTime
			start, end         sql.NullInt16
			classID, teacherID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Type, &e.Description, &e.StartDate, &endDate,
			&start, &end, &e.AllDay, &classID, &e.ClassName,
			&teacherID, &e.TeacherName, &e.Location, &e.Color); err != nil {
			return nil, err
		}
		if endDate.Valid {
			e.EndDate = &endDate.Time
		}
		e.Start, e.End = minutes(start), minutes(end)
		e.ClassID, e.TeacherID = int64Ptr(classID), int64Ptr(teacherID)
		res = append(res, e)
	}
	return res, rows.Err()
}

// HolidaysBetween lists holiday ranges overlapping w with their class subsets.
func (r *Repository) HolidaysBetween(ctx context.Context, w Window) ([]Holiday, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.id, h.title, h.holiday_type, h.start_date, h.end_date, h.description, h.affects_all, hc.class_id
		FROM holiday_ranges h
		LEFT JOIN holiday_range_classes hc ON hc.holiday_id = h.id
		WHERE h.start_date <= $2 AND h.end_date >= $1
		ORDER BY h.start_date, h.id
	`, dateParam(w.Start), dateParam(w.End))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Holiday
	for rows.Next() {
		var (
			h       Holiday
			classID sql.NullInt64
		)
		if err := rows.Scan(&h.ID, &h.Title, &h.Type, &h.StartDate, &h.EndDate, &h.Description, &h.AffectsAll, &classID); err != nil {
			return nil, err
		}
		if n := len(res); n == 0 || res[n-1].ID != h.ID {
			res = append(res, h)
		}
		if classID.Valid {
			last := &res[len(res)-1]
			last.ClassIDs = append(last.ClassIDs, classID.Int64)
		}
	}
	return res, rows.Err()
}

// dateParam keeps only the date part for DATE comparisons.
func dateParam(t time.Time) string {
	return t.Format(time.DateOnly)
}
