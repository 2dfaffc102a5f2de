package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/examsession"
	"github.com/stemsi/oralexam/internal/model"
	"github.com/stemsi/oralexam/internal/response"
	"github.com/stemsi/oralexam/internal/service"
	"github.com/stemsi/oralexam/internal/validator"
)

// multipartOverhead is the room left for form fields and part headers on top
// of the upload limit.
const multipartOverhead = 1 << 20

// ExamHandler drives live exam sessions for the exam taker.
type ExamHandler struct {
	sessions    *service.SessionManager
	authService *service.AuthService
	cfg         *config.Config
	log         zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessions *service.SessionManager, authService *service.AuthService, cfg *config.Config, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		sessions:    sessions,
		authService: authService,
		cfg:         cfg,
		log:         log.With().Str("component", "exam_handler").Logger(),
	}
}

// StartAttempt godoc
// POST /api/v1/exam/attempts
// Creates an attempt, loads the first section and returns the attempt token.
func (h *ExamHandler) StartAttempt(c *gin.Context) {
	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	st, err := h.sessions.Start(c.Request.Context(), req.StudentName)
	if err != nil {
		h.log.Error().Err(err).Msg("Start attempt failed")
		failSession(c, err)
		return
	}

	token, err := h.authService.GenerateAttemptToken(*st.AttemptID)
	if err != nil {
		h.log.Error().Err(err).Msg("Sign attempt token failed")
		// The session is live but unreachable without a token.
		_ = h.sessions.Reset(c.Request.Context(), *st.AttemptID)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Created(c, gin.H{"token": token, "state": st})
}

// GetState godoc
// GET /api/v1/exam/attempts/:id
// Returns the current snapshot of a live session, or the last stored one with
// status INTERRUPTED when the session did not survive a restart.
func (h *ExamHandler) GetState(c *gin.Context) {
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

// Advance godoc
// POST /api/v1/exam/attempts/:id/advance
// Moves to the next question, the next section, or finishes the attempt.
func (h *ExamHandler) Advance(c *gin.Context) {
	h.transition(c, h.sessions.Advance)
}

// RecordResponse godoc
// POST /api/v1/exam/attempts/:id/responses
// Stores the audio answer (multipart "audio" plus "duration" seconds) for the current question.
func (h *ExamHandler) RecordResponse(c *gin.Context) {
	attemptID, ok := attemptParam(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes+multipartOverhead)
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, http.StatusBadRequest, response.ErrFileTooLarge)
			return
		}
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	if header.Size > h.cfg.MaxUploadBytes {
		response.Fail(c, http.StatusBadRequest, response.ErrFileTooLarge)
		return
	}

	duration := 0.0
	if raw := c.PostForm("duration"); raw != "" {
		duration, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"duration": "duration must be a number of seconds"})
			return
		}
	}

	audio, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxUploadBytes+1))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	if int64(len(audio)) > h.cfg.MaxUploadBytes {
		response.Fail(c, http.StatusBadRequest, response.ErrFileTooLarge)
		return
	}

	st, err := h.sessions.RecordResponse(c.Request.Context(), attemptID, audio, duration)
	if err != nil {
		failSession(c, err)
		return
	}
	response.Created(c, gin.H{"state": st})
}

// FinishAttempt godoc
// POST /api/v1/exam/attempts/:id/finish
// Marks the attempt finished in the store without moving the session.
func (h *ExamHandler) FinishAttempt(c *gin.Context) {
	attemptID, ok := attemptParam(c)
	if !ok {
		return
	}
	if err := h.sessions.Finish(c.Request.Context(), attemptID); err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "attempt finished"})
}

// StartRecording godoc
// POST /api/v1/exam/attempts/:id/recording/start
func (h *ExamHandler) StartRecording(c *gin.Context) {
	h.transition(c, h.sessions.StartRecording)
}

// StopRecording godoc
// POST /api/v1/exam/attempts/:id/recording/stop
func (h *ExamHandler) StopRecording(c *gin.Context) {
	h.transition(c, h.sessions.StopRecording)
}

// StartTimer godoc
// POST /api/v1/exam/attempts/:id/timer/start
// Restarts the countdown of the current question.
func (h *ExamHandler) StartTimer(c *gin.Context) {
	h.transition(c, h.sessions.StartTimer)
}

// StopTimer godoc
// POST /api/v1/exam/attempts/:id/timer/stop
func (h *ExamHandler) StopTimer(c *gin.Context) {
	h.transition(c, h.sessions.StopTimer)
}

// ResetAttempt godoc
// DELETE /api/v1/exam/attempts/:id
// Clears the live session. Stored responses are kept.
func (h *ExamHandler) ResetAttempt(c *gin.Context) {
	attemptID, ok := attemptParam(c)
	if !ok {
		return
	}
	if err := h.sessions.Reset(c.Request.Context(), attemptID); err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "session reset"})
}

type sessionOp func(ctx context.Context, attemptID uuid.UUID) (examsession.State, error)

func (h *ExamHandler) transition(c *gin.Context, op sessionOp) {
	attemptID, ok := attemptParam(c)
	if !ok {
		return
	}
	st, err := op(c.Request.Context(), attemptID)
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": st})
}

// attemptParam parses :id and writes the failure response itself.
func attemptParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
