package handler

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"academy/internal/attendance"
	"academy/internal/auth"
	"academy/internal/qrimage"
)

// ---------- Sessions (operator) ----------

const maxExpirySeconds = math.MaxInt64 / int64(time.Second)

type openRequest struct {
	ClassID       int64 `json:"class_id" binding:"required"`
	ExpirySeconds int64 `json:"expiry_seconds"`
}

func (h *Handler) OpenSession(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// larger values would overflow time.Duration
	if req.ExpirySeconds < 0 || req.ExpirySeconds > maxExpirySeconds {
		c.JSON(http.StatusBadRequest, gin.H{"error": attendance.ErrInvalidExpiry.Error()})
		return
	}
	claims, _ := auth.ClaimsFrom(c)

	opened, err := h.att.Open(c.Request.Context(), req.ClassID, time.Duration(req.ExpirySeconds)*time.Second, claims.Subject)
	switch {
	case errors.Is(err, attendance.ErrClassNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, attendance.ErrInvalidExpiry):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, attendance.ErrConcurrentOpen):
		c.JSON(http.StatusConflict, gin.H{"error": attendance.ErrConcurrentOpen.Error()})
		return
	case err != nil:
		h.internal(c, "open session", err)
		return
	}
	c.JSON(http.StatusCreated, opened)
}

func (h *Handler) ListSessions(c *gin.Context) {
	classID, err := optionalInt64(c, "class_id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sessions, err := h.att.Sessions(c.Request.Context(), classID)
	if err != nil {
		h.internal(c, "list sessions", err)
		return
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.att.Session(c.Request.Context(), c.Param("id"))
	if errors.Is(err, attendance.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.internal(c, "get session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "scan_url": h.att.ScanURL(sess.Token)})
}

// SessionQR renders the scan URL of an active session as PNG.
func (h *Handler) SessionQR(c *gin.Context) {
	sess, err := h.att.Session(c.Request.Context(), c.Param("id"))
	if errors.Is(err, attendance.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.internal(c, "get session", err)
		return
	}
	if sess.Status != attendance.SessionActive {
		c.JSON(http.StatusGone, gin.H{"error": "session is " + string(sess.Status)})
		return
	}
	png, err := qrimage.Render(h.att.ScanURL(sess.Token), intQuery(c, "size", h.qrSize))
	if err != nil {
		h.internal(c, "render qr", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// ---------- Scan logs (operator) ----------

func (h *Handler) ScanLogs(c *gin.Context) {
	var (
		f   attendance.LogFilter
		err error
	)
	if f.ClassID, err = optionalInt64(c, "class_id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch r := attendance.ScanResult(c.Query("result")); r {
	case "", attendance.ScanSuccess, attendance.ScanFail:
		f.Result = r
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "result must be success or fail"})
		return
	}
	if v := c.Query("date_from"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date_from must be YYYY-MM-DD"})
			return
		}
		f.From = &d
	}
	if v := c.Query("date_to"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date_to must be YYYY-MM-DD"})
			return
		}
		end := d.AddDate(0, 0, 1)
		f.To = &end
	}
	f.Limit = intQuery(c, "limit", 50)
	f.Offset = intQuery(c, "offset", 0)
	if page := intQuery(c, "page", 0); page > 1 {
		f.Offset = (page - 1) * f.Limit
	}

	logs, err := h.att.ScanLogs(c.Request.Context(), f)
	if err != nil {
		h.internal(c, "list scan logs", err)
		return
	}
	if logs == nil {
		logs = []attendance.ScanLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "limit": f.Limit, "offset": f.Offset})
}

// ---------- Scan (student, rate limited) ----------

var reasonStatus = map[attendance.FailReason]int{
	attendance.ReasonInvalidToken: http.StatusNotFound,
	attendance.ReasonExpired:      http.StatusGone,
	attendance.ReasonNotEnrolled:  http.StatusForbidden,
	attendance.ReasonDuplicate:    http.StatusConflict,
	attendance.ReasonUnknown:      http.StatusInternalServerError,
}

func (h *Handler) scanFailure(c *gin.Context, err error) {
	var serr *attendance.ScanError
	if !errors.As(err, &serr) {
		h.internal(c, "scan", err)
		return
	}
	status, ok := reasonStatus[serr.Reason]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"success": false, "reason": serr.Reason, "error": serr.Message})
}

// ScanRoster backs the scan page: the session and its enrolled students.
func (h *Handler) ScanRoster(c *gin.Context) {
	roster, err := h.att.Roster(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.scanFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": roster.Session, "students": roster.Students})
}

type scanRequest struct {
	Token     string `json:"token" form:"token"`
	StudentID int64  `json:"student_id" form:"student_id"`
}

func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.Token == "" {
		req.Token = c.Query("token")
	}

	conf, err := h.att.Scan(c.Request.Context(), attendance.ScanRequest{
		Token:     req.Token,
		StudentID: req.StudentID,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.scanFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    conf.Message,
		"student":    gin.H{"id": conf.Student.ID, "name": conf.Student.Name},
		"attendance": conf.Record,
	})
}
