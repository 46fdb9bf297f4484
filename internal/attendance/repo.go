package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"academy/internal/store"
)

// Repository persists QR sessions, scan logs and attendance in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const sessionColumns = `id, class_id, lesson_date, token, status, created_at, starts_at, expires_at, created_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.ClassID, &s.LessonDate, &s.Token, &s.Status, &s.CreatedAt, &s.StartsAt, &s.ExpiresAt, &s.CreatedBy)
	return s, err
}

// ClassExists reports whether the class row exists.
func (r *Repository) ClassExists(ctx context.Context, classID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM classes WHERE id = $1)`, classID).Scan(&ok)
	return ok, err
}

// OpenSession closes the class's active sessions and inserts s in one transaction.
func (r *Repository) OpenSession(ctx context.Context, s Session) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE qr_sessions SET status = 'closed'
		WHERE class_id = $1 AND status = 'active'
	`, s.ClassID)
	if err != nil {
		return 0, fmt.Errorf("close active sessions: %w", err)
	}
	closed, _ := res.RowsAffected()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO qr_sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, s.ID, s.ClassID, s.LessonDate, s.Token, s.Status, s.CreatedAt, s.StartsAt, s.ExpiresAt, s.CreatedBy)
	if err != nil {
		if store.IsUniqueViolation(err) {
			switch store.ConstraintName(err) {
			case "qr_sessions_token_key":
				return 0, ErrDuplicateToken
			case "qr_sessions_one_active_per_class":
				return 0, ErrConcurrentOpen
			}
		}
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return closed, tx.Commit()
}

// SessionByToken returns the session for token, or nil.
func (r *Repository) SessionByToken(ctx context.Context, token string) (*Session, error) {
	return r.oneSession(ctx, `SELECT `+sessionColumns+` FROM qr_sessions WHERE token = $1`, token)
}

// SessionByID returns the session with id, or nil.
func (r *Repository) SessionByID(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.oneSession(ctx, `SELECT `+sessionColumns+` FROM qr_sessions WHERE id = $1`, id)
}

func (r *Repository) oneSession(ctx context.Context, query string, arg any) (*Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListSessions returns the newest sessions first.
func (r *Repository) ListSessions(ctx context.Context, classID *int64, limit int) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM qr_sessions`
	args := []any{}
	if classID != nil {
		query += ` WHERE class_id = $1`
		args = append(args, *classID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// MarkSessionExpired moves an active session to expired.
func (r *Repository) MarkSessionExpired(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE qr_sessions SET status = 'expired' WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ExpireSessions expires every active session whose expiry is at or before now.
func (r *Repository) ExpireSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE qr_sessions SET status = 'expired' WHERE status = 'active' AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const studentColumns = `id, name, assigned_class_id, status, parent_phone`

func scanStudent(row rowScanner) (Student, error) {
	var (
		st      Student
		classID sql.NullInt64
	)
	if err := row.Scan(&st.ID, &st.Name, &classID, &st.Status, &st.ParentPhone); err != nil {
		return Student{}, err
	}
	if classID.Valid {
		st.ClassID = &classID.Int64
	}
	return st, nil
}

// StudentByID returns the student, or nil.
func (r *Repository) StudentByID(ctx context.Context, id int64) (*Student, error) {
	st, err := scanStudent(r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// EnrolledStudents lists enrolled students of a class by name.
func (r *Repository) EnrolledStudents(ctx context.Context, classID int64) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studentColumns+` FROM students
		WHERE assigned_class_id = $1 AND status = 'enrolled'
		ORDER BY name
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

// AttendanceExists reports whether the student has a record on date.
func (r *Repository) AttendanceExists(ctx context.Context, studentID int64, date time.Time) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM attendance WHERE student_id = $1 AND date = $2)`,
		studentID, date).Scan(&ok)
	return ok, err
}

// InsertAttendance writes a record; the (student_id, date) constraint maps to ErrDuplicateAttendance.
func (r *Repository) InsertAttendance(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (id, student_id, class_id, date, status, note)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, rec.ID, rec.StudentID, rec.ClassID, rec.Date, rec.Status, rec.Note)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		if store.IsUniqueViolation(err) {
			return Record{}, fmt.Errorf("%w: %v", ErrDuplicateAttendance, err)
		}
		return Record{}, err
	}
	return rec, nil
}

// InsertScanLog appends an audit row.
func (r *Repository) InsertScanLog(ctx context.Context, l ScanLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO qr_scan_logs (id, session_id, student_id, scanned_at, result, fail_reason, client_ip, user_agent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, l.ID, l.SessionID, l.StudentID, l.ScannedAt, l.Result, l.FailReason, l.ClientIP, l.UserAgent)
	return err
}

// ListScanLogs returns logs with basic filters, newest first.
func (r *Repository) ListScanLogs(ctx context.Context, f LogFilter) ([]ScanLog, error) {
	query := `
		SELECT l.id, l.session_id, s.class_id, l.student_id, l.scanned_at, l.result, l.fail_reason, l.client_ip, l.user_agent
		FROM qr_scan_logs l
		LEFT JOIN qr_sessions s ON s.id = l.session_id`
	args := []any{}
	clauses := []string{}
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.ClassID != nil {
		add("s.class_id = $%d", *f.ClassID)
	}
	if f.Result != "" {
		add("l.result = $%d", f.Result)
	}
	if f.From != nil {
		add("l.scanned_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("l.scanned_at < $%d", *f.To)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY l.scanned_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ScanLog
	for rows.Next() {
		var (
			l         ScanLog
			sessionID sql.NullString
			classID   sql.NullInt64
			studentID sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &sessionID, &classID, &studentID, &l.ScannedAt, &l.Result, &l.FailReason, &l.ClientIP, &l.UserAgent); err != nil {
			return nil, err
		}
		if sessionID.Valid {
			l.SessionID = &sessionID.String
		}
		if classID.Valid {
			l.ClassID = &classID.Int64
		}
		if studentID.Valid {
			l.StudentID = &studentID.Int64
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
