package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/api/ws"
)

// LogEntry is one console call made by a test page.
type LogEntry struct {
	Level string `json:"level"`
	Args  []any  `json:"args"`
}

// LogStreamRequest is a batch of console calls for one test, posted by pages
// that cannot hold a socket open.
type LogStreamRequest struct {
	Session string     `json:"session" binding:"required"`
	Test    string     `json:"test"`
	Entries []LogEntry `json:"entries"`
}

// StreamLogs feeds posted console calls through the same path as socket
// console events.
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req LogStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log request format"})
		return
	}
	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no log entries provided"})
		return
	}

	processed := 0
	for _, entry := range req.Entries {
		level := entry.Level
		if level == "" {
			level = "log"
		}
		err := h.events.Handle(ws.Event{
			Type:    ws.EventConsole,
			Session: req.Session,
			Test:    req.Test,
			Args:    append([]any{level}, entry.Args...),
		})
		if err != nil {
			h.logger.Warn("failed to process log entry",
				zap.String("session", req.Session),
				zap.String("test", req.Test),
				zap.Error(err),
			)
			continue
		}
		processed++
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": processed,
		"total":     len(req.Entries),
	})
}
