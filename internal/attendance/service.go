package attendance

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"academy/internal/metrics"
	"academy/internal/queue"
)

// EventRecorded is the queue message type published after a successful scan.
const EventRecorded = "attendance.recorded"

const (
	tokenBytes      = 32
	openAttempts    = 3
	maxUserAgentLen = 500
	maxClientIPLen  = 64
	publishTimeout  = 2 * time.Second
	defaultLogLimit = 50
	maxLogLimit     = 200
	qrNote          = "QR attendance"
)

// Store is the persistence the QR protocol needs. Lookups return (nil, nil)
// when the row does not exist.
type Store interface {
	ClassExists(ctx context.Context, classID int64) (bool, error)
	// OpenSession closes every active session of s.ClassID and inserts s, atomically.
	OpenSession(ctx context.Context, s Session) (closed int64, err error)
	SessionByToken(ctx context.Context, token string) (*Session, error)
	SessionByID(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, classID *int64, limit int) ([]Session, error)
	// MarkSessionExpired is idempotent; it reports whether a row changed.
	MarkSessionExpired(ctx context.Context, id string) (bool, error)
	ExpireSessions(ctx context.Context, now time.Time) (int64, error)
	StudentByID(ctx context.Context, id int64) (*Student, error)
	EnrolledStudents(ctx context.Context, classID int64) ([]Student, error)
	AttendanceExists(ctx context.Context, studentID int64, date time.Time) (bool, error)
	// InsertAttendance returns ErrDuplicateAttendance when (student, date) exists.
	InsertAttendance(ctx context.Context, r Record) (Record, error)
	InsertScanLog(ctx context.Context, l ScanLog) error
	ListScanLogs(ctx context.Context, f LogFilter) ([]ScanLog, error)
}

// Publisher receives attendance.recorded messages.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Options configures a Service. Zero values get defaults.
type Options struct {
	Location   *time.Location
	BaseURL    string
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	Publisher  Publisher
	Logger     *zap.Logger
	Now        func() time.Time
}

// Service runs the QR attendance session protocol.
type Service struct {
	store      Store
	pub        Publisher
	log        *zap.Logger
	loc        *time.Location
	baseURL    string
	defaultTTL time.Duration
	maxTTL     time.Duration
	now        func() time.Time
	newToken   func() (string, error)
}

// NewService creates a service backed by a store.
func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:      store,
		pub:        opts.Publisher,
		log:        opts.Logger,
		loc:        opts.Location,
		baseURL:    opts.BaseURL,
		defaultTTL: opts.DefaultTTL,
		maxTTL:     opts.MaxTTL,
		now:        opts.Now,
		newToken:   randomToken,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.defaultTTL <= 0 {
		s.defaultTTL = 120 * time.Second
	}
	if s.maxTTL <= 0 {
		s.maxTTL = time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Opened is a freshly created session and the URL to encode in its QR code.
type Opened struct {
	Session Session `json:"session"`
	Token   string  `json:"token"`
	ScanURL string  `json:"scan_url"`
}

// Open closes any active session of the class and starts a new one that
// expires after expiry (the configured default when zero).
func (s *Service) Open(ctx context.Context, classID int64, expiry time.Duration, actor string) (Opened, error) {
	if expiry == 0 {
		expiry = s.defaultTTL
	}
	if expiry < time.Second || expiry > s.maxTTL {
		return Opened{}, fmt.Errorf("%w: got %s, max %s", ErrInvalidExpiry, expiry, s.maxTTL)
	}

	ok, err := s.store.ClassExists(ctx, classID)
	if err != nil {
		return Opened{}, fmt.Errorf("lookup class: %w", err)
	}
	if !ok {
		return Opened{}, ErrClassNotFound
	}

	now := s.now()
	sess := Session{
		ClassID:    classID,
		LessonDate: dateOf(now, s.loc),
		Status:     SessionActive,
		CreatedAt:  now,
		StartsAt:   now,
		ExpiresAt:  now.Add(expiry),
		CreatedBy:  actor,
	}

	for attempt := 1; ; attempt++ {
		sess.ID = uuid.NewString()
		sess.Token, err = s.newToken()
		if err != nil {
			return Opened{}, fmt.Errorf("generate token: %w", err)
		}
		closed, err := s.store.OpenSession(ctx, sess)
		// a retry closes whichever session won the race
		if (errors.Is(err, ErrDuplicateToken) || errors.Is(err, ErrConcurrentOpen)) && attempt < openAttempts {
			continue
		}
		if err != nil {
			return Opened{}, fmt.Errorf("open session: %w", err)
		}
		s.log.Info("qr session opened",
			zap.String("session_id", sess.ID),
			zap.Int64("class_id", classID),
			zap.Int64("closed_previous", closed),
			zap.Time("expires_at", sess.ExpiresAt),
			zap.String("actor", actor),
		)
		metrics.SessionsOpened.Inc()
		return Opened{Session: sess, Token: sess.Token, ScanURL: s.ScanURL(sess.Token)}, nil
	}
}

// ScanURL is the student-facing URL carrying token as a query parameter.
func (s *Service) ScanURL(token string) string {
	return s.baseURL + "/attendance/qr/scan?" + url.Values{"token": {token}}.Encode()
}

// ScanRequest is one scan attempt as received from the transport.
type ScanRequest struct {
	Token     string
	StudentID int64
	ClientIP  string
	UserAgent string
}

// Confirmation is returned for a successful scan.
type Confirmation struct {
	Student Student `json:"student"`
	Record  Record  `json:"attendance"`
	Message string  `json:"message"`
}

// Scan validates a scan and records attendance. Every call writes exactly one
// scan log. Failures are returned as *ScanError.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (Confirmation, error) {
	now := s.now()
	entry := ScanLog{
		ScannedAt: now,
		ClientIP:  truncate(req.ClientIP, maxClientIPLen),
		UserAgent: truncate(req.UserAgent, maxUserAgentLen),
	}

	var sess *Session
	if req.Token != "" {
		var err error
		sess, err = s.store.SessionByToken(ctx, req.Token)
		if err != nil {
			return Confirmation{}, s.fail(ctx, entry, newScanError(ReasonUnknown, fmt.Errorf("load session: %w", err)))
		}
	}
	if sess == nil {
		return Confirmation{}, s.fail(ctx, entry, newScanError(ReasonInvalidToken, nil))
	}
	entry.SessionID = &sess.ID
	entry.ClassID = &sess.ClassID

	if !s.admit(ctx, sess, now) {
		return Confirmation{}, s.fail(ctx, entry, newScanError(ReasonExpired, nil))
	}

	student, err := s.store.StudentByID(ctx, req.StudentID)
	if err != nil {
		return Confirmation{}, s.fail(ctx, entry, newScanError(ReasonUnknown, fmt.Errorf("load student: %w", err)))
	}
	if student == nil {
		serr := newScanError(ReasonNotEnrolled, nil)
		serr.Message = "Student not found."
		return Confirmation{}, s.fail(ctx, entry, serr)
	}
	entry.StudentID = &student.ID

	if !student.InClass(sess.ClassID) {
		return Confirmation{}, s.fail(ctx, entry, newScanError(ReasonNotEnrolled, nil))
	}

	exists, err := s.store.AttendanceExists(ctx, student.ID, sess.LessonDate)
	if err != nil {
		return Confirmation{}, s.fail(ctx, entry, newScanError(ReasonUnknown, fmt.Errorf("check attendance: %w", err)))
	}
	if exists {
		return Confirmation{}, s.fail(ctx, entry, newScanError(ReasonDuplicate, nil))
	}

	classID := sess.ClassID
	rec, err := s.store.InsertAttendance(ctx, Record{
		ID:        uuid.NewString(),
		StudentID: student.ID,
		ClassID:   &classID,
		Date:      sess.LessonDate,
		Status:    StatusPresent,
		Note:      qrNote,
		CreatedAt: now,
	})
	switch {
	case errors.Is(err, ErrDuplicateAttendance):
		return Confirmation{}, s.fail(ctx, entry, newScanError(ReasonDuplicate, err))
	case err != nil:
		return Confirmation{}, s.fail(ctx, entry, newScanError(ReasonUnknown, fmt.Errorf("insert attendance: %w", err)))
	}

	entry.Result = ScanSuccess
	s.writeLog(ctx, entry)
	metrics.Scans.WithLabelValues(string(ScanSuccess), "").Inc()
	s.publishRecorded(ctx, rec, now)

	return Confirmation{
		Student: *student,
		Record:  rec,
		Message: fmt.Sprintf("Attendance recorded for %s.", student.Name),
	}, nil
}

// admit applies the expiry predicate and persists a detected expiry.
func (s *Service) admit(ctx context.Context, sess *Session, now time.Time) bool {
	if sess.Status == SessionActive && sess.IsExpired(now) {
		changed, err := s.store.MarkSessionExpired(ctx, sess.ID)
		if err != nil {
			s.log.Warn("mark session expired", zap.String("session_id", sess.ID), zap.Error(err))
		} else if changed {
			metrics.SessionsExpired.WithLabelValues("scan").Inc()
		}
		sess.Status = SessionExpired
	}
	return sess.Admits(now)
}

func (s *Service) fail(ctx context.Context, entry ScanLog, serr *ScanError) error {
	entry.Result = ScanFail
	entry.FailReason = serr.Reason
	s.writeLog(ctx, entry)
	metrics.Scans.WithLabelValues(string(ScanFail), string(serr.Reason)).Inc()

	fields := []zap.Field{zap.String("reason", string(serr.Reason)), zap.String("ip", entry.ClientIP)}
	if entry.SessionID != nil {
		fields = append(fields, zap.String("session_id", *entry.SessionID))
	}
	if entry.StudentID != nil {
		fields = append(fields, zap.Int64("student_id", *entry.StudentID))
	}
	if serr.Reason == ReasonUnknown {
		s.log.Error("qr scan failed", append(fields, zap.Error(serr.Err))...)
	} else {
		s.log.Info("qr scan rejected", fields...)
	}
	return serr
}

func (s *Service) writeLog(ctx context.Context, entry ScanLog) {
	entry.ID = uuid.NewString()
	if err := s.store.InsertScanLog(ctx, entry); err != nil {
		s.log.Error("write scan log", zap.String("result", string(entry.Result)), zap.Error(err))
	}
}

// RecordedEvent is the body of an attendance.recorded message.
type RecordedEvent struct {
	RecordID  string    `json:"record_id"`
	StudentID int64     `json:"student_id"`
	ClassID   int64     `json:"class_id"`
	Date      string    `json:"date"`
	ScannedAt time.Time `json:"scanned_at"`
}

func (s *Service) publishRecorded(ctx context.Context, rec Record, at time.Time) {
	if s.pub == nil {
		return
	}
	evt := RecordedEvent{
		RecordID:  rec.ID,
		StudentID: rec.StudentID,
		Date:      rec.Date.Format(time.DateOnly),
		ScannedAt: at,
	}
	if rec.ClassID != nil {
		evt.ClassID = *rec.ClassID
	}
	msg, err := queue.NewMessage(EventRecorded, evt)
	if err == nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err = s.pub.Publish(pubCtx, msg)
		cancel()
	}
	if err != nil {
		s.log.Warn("queue publish failed", zap.String("record_id", rec.ID), zap.Error(err))
	}
}

// Roster is what the scan page shows for an admitting session.
type Roster struct {
	Session  Session   `json:"session"`
	Students []Student `json:"students"`
}

// Roster resolves token to an admitting session and lists the enrolled
// students of its class. It does not write a scan log.
func (s *Service) Roster(ctx context.Context, token string) (Roster, error) {
	if token == "" {
		return Roster{}, newScanError(ReasonInvalidToken, nil)
	}
	sess, err := s.store.SessionByToken(ctx, token)
	if err != nil {
		return Roster{}, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return Roster{}, newScanError(ReasonInvalidToken, nil)
	}
	if !s.admit(ctx, sess, s.now()) {
		return Roster{}, newScanError(ReasonExpired, nil)
	}
	students, err := s.store.EnrolledStudents(ctx, sess.ClassID)
	if err != nil {
		return Roster{}, fmt.Errorf("list students: %w", err)
	}
	if students == nil {
		students = []Student{}
	}
	return Roster{Session: *sess, Students: students}, nil
}

// Session returns one session with its effective status.
func (s *Service) Session(ctx context.Context, id string) (Session, error) {
	sess, err := s.store.SessionByID(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return Session{}, ErrSessionNotFound
	}
	return s.effective(*sess), nil
}

// Sessions lists recent sessions, optionally for one class.
func (s *Service) Sessions(ctx context.Context, classID *int64) ([]Session, error) {
	list, err := s.store.ListSessions(ctx, classID, defaultLogLimit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for i := range list {
		list[i] = s.effective(list[i])
	}
	return list, nil
}

// effective reports a lapsed active session as expired without writing.
func (s *Service) effective(sess Session) Session {
	if sess.Status == SessionActive && sess.IsExpired(s.now()) {
		sess.Status = SessionExpired
	}
	return sess
}

// ScanLogs lists audit entries newest first.
func (s *Service) ScanLogs(ctx context.Context, f LogFilter) ([]ScanLog, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLogLimit
	}
	if f.Limit > maxLogLimit {
		f.Limit = maxLogLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.ListScanLogs(ctx, f)
}

// ExpireStale marks every lapsed active session expired.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	if n > 0 {
		metrics.SessionsExpired.WithLabelValues("sweep").Add(float64(n))
	}
	return n, nil
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// truncate replaces invalid UTF-8 and cuts s to n runes.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
