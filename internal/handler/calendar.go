package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"academy/internal/schedule"
)

// CalendarEvents returns stored events, holidays and class instances for the
// visible window in FullCalendar's event format.
func (h *Handler) CalendarEvents(c *gin.Context) {
	var (
		f   schedule.Filter
		err error
	)
	if f.ClassID, err = optionalInt64(c, "class_id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if f.TeacherID, err = optionalInt64(c, "teacher_id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w := schedule.ParseWindow(c.Query("start"), c.Query("end"), h.now().In(h.loc))

	events, err := h.cal.Events(c.Request.Context(), w, f)
	if err != nil {
		h.internal(c, "calendar events", err)
		return
	}
	c.JSON(http.StatusOK, events)
}
