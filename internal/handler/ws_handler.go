package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/examsession"
	"github.com/stemsi/oralexam/internal/response"
	"github.com/stemsi/oralexam/internal/service"
	ws "github.com/stemsi/oralexam/internal/websocket"
)

// statePushInterval matches the countdown resolution.
const statePushInterval = time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live session state and accepts session actions.
type WSHandler struct {
	sessions *service.SessionManager
	log      zerolog.Logger
	upgrader websocket.Upgrader
	interval time.Duration
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionManager, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
		interval: statePushInterval,
	}
}

// ExamStream godoc
// WS /ws/v1/exam/attempts/:id/stream
// Pushes a state event every second and after every action.
func (h *WSHandler) ExamStream(c *gin.Context) {
	attemptID, ok := attemptParam(c)
	if !ok {
		return
	}
	// Refuse before upgrading so the client gets a normal JSON error.
	if _, err := h.sessions.Get(attemptID); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotLive)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().Str("attempt_id", attemptID.String()).Logger()
	wsLog.Info().Msg("Client connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !h.pushState(conn, attemptID) {
		return
	}
	go h.pushLoop(ctx, cancel, conn, attemptID)

	for {
		var msg ws.RequestEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		switch {
		case msg.Action == ws.ActionPing:
			if err := conn.WriteTyped(ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
			continue
		case !isSessionAction(msg.Action):
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			if err := conn.WriteError(msg.Action, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action)); err != nil {
				return
			}
			continue
		}

		st, err := h.dispatch(ctx, attemptID, msg.Action)
		if err != nil {
			status, code := classifySessionError(err)
			wsLog.Warn().Err(err).Str("action", string(msg.Action)).Msg("Action failed")
			if werr := conn.WriteError(msg.Action, string(code), err.Error()); werr != nil {
				return
			}
			if status == http.StatusNotFound {
				return
			}
			continue
		}
		if err := conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: st}); err != nil {
			return
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, attemptID uuid.UUID, action ws.Action) (examsession.State, error) {
	switch action {
	case ws.ActionStartTimer:
		return h.sessions.StartTimer(ctx, attemptID)
	case ws.ActionStopTimer:
		return h.sessions.StopTimer(ctx, attemptID)
	case ws.ActionStartRecording:
		return h.sessions.StartRecording(ctx, attemptID)
	case ws.ActionStopRecording:
		return h.sessions.StopRecording(ctx, attemptID)
	case ws.ActionAdvance:
		return h.sessions.Advance(ctx, attemptID)
	default:
		return h.sessions.Snapshot(attemptID)
	}
}

// pushLoop writes a snapshot every interval until ctx ends, the session
// disappears or a write fails.
func (h *WSHandler) pushLoop(ctx context.Context, cancel context.CancelFunc, conn *ws.Conn, attemptID uuid.UUID) {
	defer cancel()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.pushState(conn, attemptID) {
				// Unblock the read loop.
				conn.Close()
				return
			}
		}
	}
}

func (h *WSHandler) pushState(conn *ws.Conn, attemptID uuid.UUID) bool {
	st, err := h.sessions.Snapshot(attemptID)
	if err != nil {
		_, code := classifySessionError(err)
		_ = conn.WriteError("", string(code), err.Error())
		return false
	}
	return conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: st}) == nil
}

func isSessionAction(a ws.Action) bool {
	switch a {
	case ws.ActionStartTimer, ws.ActionStopTimer, ws.ActionStartRecording,
		ws.ActionStopRecording, ws.ActionAdvance:
		return true
	}
	return false
}
