package attendance

import (
	"errors"
	"time"
)

// SessionStatus is the lifecycle state of a QR session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionExpired SessionStatus = "expired"
	SessionClosed  SessionStatus = "closed"
)

// Session is one open attendance window for a class on a lesson date.
type Session struct {
	ID         string        `json:"id"`
	ClassID    int64         `json:"class_id"`
	LessonDate time.Time     `json:"lesson_date"`
	Token      string        `json:"-"`
	Status     SessionStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	StartsAt   time.Time     `json:"starts_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
	CreatedBy  string        `json:"created_by"`
}

// IsExpired reports whether now is at or past the session expiry, whatever the
// persisted status says.
func (s Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Admits reports whether the session accepts scans at now.
func (s Session) Admits(now time.Time) bool {
	return s.Status == SessionActive && !s.IsExpired(now)
}

// ScanResult is the outcome recorded in a scan log.
type ScanResult string

const (
	ScanSuccess ScanResult = "success"
	ScanFail    ScanResult = "fail"
)

// FailReason is the closed set of scan failure codes.
type FailReason string

const (
	ReasonInvalidToken FailReason = "invalid_token"
	ReasonExpired      FailReason = "expired"
	ReasonNotEnrolled  FailReason = "not_enrolled"
	ReasonDuplicate    FailReason = "duplicate"
	ReasonUnknown      FailReason = "unknown"
)

// ScanLog is the append-only audit row of one scan attempt.
type ScanLog struct {
	ID         string     `json:"id"`
	SessionID  *string    `json:"session_id,omitempty"`
	ClassID    *int64     `json:"class_id,omitempty"`
	StudentID  *int64     `json:"student_id,omitempty"`
	ScannedAt  time.Time  `json:"scanned_at"`
	Result     ScanResult `json:"result"`
	FailReason FailReason `json:"fail_reason,omitempty"`
	ClientIP   string     `json:"client_ip"`
	UserAgent  string     `json:"user_agent"`
}

// RecordStatus is the attendance state of a student on a date.
type RecordStatus string

const (
	StatusPresent    RecordStatus = "present"
	StatusAbsent     RecordStatus = "absent"
	StatusLate       RecordStatus = "late"
	StatusEarlyLeave RecordStatus = "early_leave"
)

// Record is the canonical attendance fact, unique per (student, date).
type Record struct {
	ID        string       `json:"id"`
	StudentID int64        `json:"student_id"`
	ClassID   *int64       `json:"class_id,omitempty"`
	Date      time.Time    `json:"date"`
	Status    RecordStatus `json:"status"`
	Note      string       `json:"note"`
	CreatedAt time.Time    `json:"created_at"`
}

// Student is the read-only view of an enrolled student.
type Student struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ClassID     *int64 `json:"class_id,omitempty"`
	Status      string `json:"status"`
	ParentPhone string `json:"-"`
}

// InClass reports whether the student is assigned to classID.
func (s Student) InClass(classID int64) bool {
	return s.ClassID != nil && *s.ClassID == classID
}

// LogFilter narrows scan log listings.
type LogFilter struct {
	ClassID *int64
	Result  ScanResult
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

var (
	ErrClassNotFound   = errors.New("class not found")
	ErrSessionNotFound = errors.New("qr session not found")
	ErrInvalidExpiry   = errors.New("expiry must be a positive number of seconds")

	// ErrDuplicateAttendance is returned by stores when the (student, date)
	// uniqueness constraint rejects an insert.
	ErrDuplicateAttendance = errors.New("attendance already recorded for student and date")

	// ErrDuplicateToken is returned by stores when a session token collides.
	ErrDuplicateToken = errors.New("qr session token already in use")

	// ErrConcurrentOpen is returned by stores when another open for the same
	// class committed an active session first.
	ErrConcurrentOpen = errors.New("another qr session was opened for the class concurrently")
)

// ScanError is the structured failure returned by Scan.
type ScanError struct {
	Reason  FailReason
	Message string
	Err     error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return string(e.Reason) + ": " + e.Err.Error()
	}
	return string(e.Reason) + ": " + e.Message
}

func (e *ScanError) Unwrap() error { return e.Err }

// messages shown to the person scanning.
var failMessages = map[FailReason]string{
	ReasonInvalidToken: "This QR code is not valid.",
	ReasonExpired:      "This QR code has expired.",
	ReasonNotEnrolled:  "Student is not enrolled in this class.",
	ReasonDuplicate:    "Attendance has already been recorded.",
	ReasonUnknown:      "Attendance could not be recorded, please try again.",
}

func newScanError(reason FailReason, err error) *ScanError {
	return &ScanError{Reason: reason, Message: failMessages[reason], Err: err}
}

// dateOf returns the calendar date of t in loc as midnight UTC, the form
// DATE columns round-trip through.
func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
