package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"academy/internal/attendance"
	"academy/internal/auth"
	"academy/internal/schedule"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Options configures a Handler. Zero values get defaults.
type Options struct {
	QRSize   int
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
	Checks   map[string]HealthCheck
}

type Handler struct {
	att    *attendance.Service
	cal    *schedule.Calendar
	authn  *auth.Authenticator
	qrSize int
	loc    *time.Location
	now    func() time.Time
	log    *zap.Logger
	checks map[string]HealthCheck
}

func New(att *attendance.Service, cal *schedule.Calendar, authn *auth.Authenticator, opts Options) *Handler {
	h := &Handler{
		att:    att,
		cal:    cal,
		authn:  authn,
		qrSize: opts.QRSize,
		loc:    opts.Location,
		now:    opts.Now,
		log:    opts.Logger,
		checks: opts.Checks,
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// Register mounts every route. scanLimit guards the unauthenticated scan endpoints.
func (h *Handler) Register(r *gin.Engine, scanLimit gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	r.POST("/v1/auth/token", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)

	if scanLimit == nil {
		scanLimit = func(c *gin.Context) { c.Next() }
	}
	r.GET("/v1/qr/scan", scanLimit, h.ScanRoster)
	r.POST("/v1/qr/scan", scanLimit, h.Scan)
	// path embedded in printed QR codes
	r.GET("/attendance/qr/scan", scanLimit, h.ScanRoster)
	r.POST("/attendance/qr/scan", scanLimit, h.Scan)

	op := r.Group("/v1", auth.OperatorAuth(h.authn.Signer()))
	{
		op.POST("/qr/sessions", h.OpenSession)
		op.GET("/qr/sessions", h.ListSessions)
		op.GET("/qr/sessions/:id", h.GetSession)
		op.GET("/qr/sessions/:id/qr.png", h.SessionQR)
		op.GET("/qr/logs", h.ScanLogs)
		op.GET("/calendar/events", h.CalendarEvents)
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Auth ----------

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	op, tokens, err := h.authn.Login(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.internal(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"operator":      op,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := h.authn.Refresh(c.Request.Context(), req.RefreshToken)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.internal(c, "refresh", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// ---------- helpers ----------

func (h *Handler) internal(c *gin.Context, op string, err error) {
	h.log.Error(op+" failed", zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// optionalInt64 parses a query parameter; absent means nil.
func optionalInt64(c *gin.Context, key string) (*int64, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, errors.New(key + " must be an integer")
	}
	return &n, nil
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
