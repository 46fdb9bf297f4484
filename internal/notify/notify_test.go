package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/internal/attendance"
	"academy/internal/notify"
	"academy/internal/queue"
	"academy/internal/store/inmem"
)

func TestClientSend(t *testing.T) {
	var got notify.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := notify.New(srv.URL, "tok", false, nil)
	require.NoError(t, c.Send(context.Background(), notify.Message{To: "01012345678", Body: "hi", Channel: "sms"}))
	assert.Equal(t, "01012345678", got.To)
	assert.Equal(t, "hi", got.Body)
}

func TestClientSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := notify.New(srv.URL, "", false, nil)
	err := c.Send(context.Background(), notify.Message{To: "010"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	assert.Error(t, c.Send(context.Background(), notify.Message{}), "recipient is required")
}

func TestClientSkipAndHealth(t *testing.T) {
	c := notify.New("http://127.0.0.1:1", "", true, nil)
	assert.NoError(t, c.Send(context.Background(), notify.Message{To: "01012345678"}))
	assert.NoError(t, c.Health(context.Background()))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	assert.Error(t, notify.New(srv.URL, "", false, nil).Health(context.Background()))
}

type recorder struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (r *recorder) Send(_ context.Context, m notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func (r *recorder) Sent() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.sent...)
}

func recorded(t *testing.T, studentID int64) queue.Message {
	t.Helper()
	msg, err := queue.NewMessage(attendance.EventRecorded, attendance.RecordedEvent{
		RecordID:  "rec-1",
		StudentID: studentID,
		ClassID:   1,
		Date:      "2026-03-02",
		ScannedAt: time.Date(2026, 3, 2, 5, 3, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return msg
}

func students() *inmem.AttendanceStore {
	st := inmem.NewAttendanceStore()
	st.AddStudent(attendance.Student{ID: 10, Name: "Minji", ParentPhone: "01012345678"})
	st.AddStudent(attendance.Student{ID: 11, Name: "Jisoo"})
	return st
}

func TestHandlerSendsNotice(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	rec := &recorder{}
	h := notify.NewHandler(students(), rec, seoul, nil)

	require.NoError(t, h.Handle(context.Background(), recorded(t, 10)))
	sent := rec.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "01012345678", sent[0].To)
	assert.Equal(t, "[Academy] Minji checked in at 14:03 on 2026-03-02.", sent[0].Body)
	assert.Equal(t, "rec-1", sent[0].Reference)
}

func TestHandlerSkips(t *testing.T) {
	rec := &recorder{}
	h := notify.NewHandler(students(), rec, nil, nil)
	ctx := context.Background()

	assert.NoError(t, h.Handle(ctx, recorded(t, 11)), "no parent phone")
	assert.NoError(t, h.Handle(ctx, recorded(t, 999)), "unknown student")
	assert.NoError(t, h.Handle(ctx, queue.Message{Type: "something.else"}))
	assert.Empty(t, rec.Sent())

	assert.Error(t, h.Handle(ctx, queue.Message{Type: attendance.EventRecorded, Body: []byte("{")}))
}

func TestHandlerPropagatesSendError(t *testing.T) {
	rec := &recorder{err: errors.New("gateway down")}
	h := notify.NewHandler(students(), rec, nil, nil)
	assert.EqualError(t, h.Handle(context.Background(), recorded(t, 10)), "gateway down")
}

func TestHandlerRunDrainsQueue(t *testing.T) {
	rec := &recorder{}
	h := notify.NewHandler(students(), rec, nil, nil)
	q := queue.NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, q.Publish(ctx, recorded(t, 10)))
	require.NoError(t, q.Publish(ctx, recorded(t, 11)))

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, q) }()

	assert.Eventually(t, func() bool { return len(rec.Sent()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
