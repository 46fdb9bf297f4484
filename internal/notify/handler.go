package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"academy/internal/attendance"
	"academy/internal/metrics"
	"academy/internal/queue"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Students resolves the student named in an event.
type Students interface {
	StudentByID(ctx context.Context, id int64) (*attendance.Student, error)
}

// Handler turns attendance.recorded messages into parent notices.
type Handler struct {
	students Students
	sender   Sender
	loc      *time.Location
	log      *zap.Logger
}

func NewHandler(students Students, sender Sender, loc *time.Location, log *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{students: students, sender: sender, loc: loc, log: log}
}

// Run handles messages until the queue channel closes or ctx is done.
// Failures are logged and not retried.
func (h *Handler) Run(ctx context.Context, q queue.Queue) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for msg := range msgs {
		if err := h.Handle(ctx, msg); err != nil {
			h.log.Warn("notification failed", zap.String("type", msg.Type), zap.Error(err))
		}
	}
	return nil
}

// Handle processes one message. Unknown message types are ignored.
func (h *Handler) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != attendance.EventRecorded {
		return nil
	}
	var evt attendance.RecordedEvent
	if err := msg.Decode(&evt); err != nil {
		metrics.Notifications.WithLabelValues("invalid").Inc()
		return fmt.Errorf("decode event: %w", err)
	}

	st, err := h.students.StudentByID(ctx, evt.StudentID)
	if err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		return fmt.Errorf("load student %d: %w", evt.StudentID, err)
	}
	if st == nil || st.ParentPhone == "" {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		h.log.Debug("no parent contact", zap.Int64("student_id", evt.StudentID))
		return nil
	}

	m := Message{
		To:        st.ParentPhone,
		Body:      CheckInText(st.Name, evt.ScannedAt.In(h.loc)),
		Channel:   "sms",
		Reference: evt.RecordID,
	}
	if err := h.sender.Send(ctx, m); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		return err
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	h.log.Info("parent notified", zap.Int64("student_id", st.ID), zap.String("record_id", evt.RecordID))
	return nil
}

// CheckInText is the notice body sent to parents.
func CheckInText(name string, at time.Time) string {
	return fmt.Sprintf("[Academy] %s checked in at %s on %s.", name, at.Format("15:04"), at.Format(time.DateOnly))
}
