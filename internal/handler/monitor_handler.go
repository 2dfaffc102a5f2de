package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/examsession"
	"github.com/stemsi/oralexam/internal/response"
	"github.com/stemsi/oralexam/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
)

// MonitorHandler exposes live sessions to examiners.
type MonitorHandler struct {
	rdb      *redis.Client
	sessions *service.SessionManager
	log      zerolog.Logger
}

func NewMonitorHandler(rdb *redis.Client, sessions *service.SessionManager, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:      rdb,
		sessions: sessions,
		log:      log.With().Str("component", "monitor_handler").Logger(),
	}
}

// ListSessions godoc
// GET /api/v1/admin/sessions
// Lists live sessions and the stored snapshots of interrupted ones.
func (h *MonitorHandler) ListSessions(c *gin.Context) {
	interrupted, err := h.sessions.Interrupted(c.Request.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to list interrupted sessions")
		interrupted = []examsession.State{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"sessions":    h.sessions.List(),
		"interrupted": interrupted,
	})
}

// GetSession godoc
// GET /api/v1/admin/sessions/:id
func (h *MonitorHandler) GetSession(c *gin.Context) {
	attemptID, ok := attemptParam(c)
	if !ok {
		return
	}
	st, err := h.sessions.Recall(c.Request.Context(), attemptID)
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": st})
}

// ResetSession godoc
// DELETE /api/v1/admin/sessions/:id
// Clears a stuck live session. Stored responses are kept.
func (h *MonitorHandler) ResetSession(c *gin.Context) {
	attemptID, ok := attemptParam(c)
	if !ok {
		return
	}
	if err := h.sessions.Reset(c.Request.Context(), attemptID); err != nil {
		failSession(c, err)
		return
	}
	h.log.Info().Str("attempt_id", attemptID.String()).Msg("Session reset by admin")
	response.Success(c, http.StatusOK, gin.H{"message": "session reset"})
}

// MonitorSSE godoc
// GET /api/v1/admin/sessions/stream
// Sends a snapshot of every live session, then forwards each state change.
func (h *MonitorHandler) MonitorSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c)

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamMonitorChannel())
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	// Countdown ticks are not published, so resync periodically.
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Msg("Admin attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payload is already a JSON snapshot.
			c.Writer.Write([]byte(`data: {"type":"state","data":`))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("}\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			if h.sessions.Len() == 0 {
				continue
			}
			h.sendSnapshot(c)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context) {
	interrupted, err := h.sessions.Interrupted(c.Request.Context())
	if err != nil {
		interrupted = []examsession.State{}
	}
	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": gin.H{"sessions": h.sessions.List(), "interrupted": interrupted},
	})
	c.Writer.Flush()
}
