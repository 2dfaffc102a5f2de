package handler

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/model"
	"github.com/stemsi/oralexam/internal/response"
	"github.com/stemsi/oralexam/internal/service"
	"github.com/stemsi/oralexam/internal/validator"
)

// AttemptHandler serves stored attempts and recordings to examiners.
type AttemptHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// ListAttempts godoc
// GET /api/v1/admin/attempts
// Lists every attempt, newest first.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	attempts, err := h.attemptService.ListAttempts(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("List attempts failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// DeleteAttempt godoc
// DELETE /api/v1/admin/attempts/:id
// Removes an attempt with its responses, ratings and audio.
func (h *AttemptHandler) DeleteAttempt(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attemptService.DeleteAttempt(c.Request.Context(), id); err != nil {
		h.failLookup(c, err, service.ErrAttemptNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "attempt deleted"})
}

// ListRecordings godoc
// GET /api/v1/admin/recordings
// Lists every response with student, question and rating.
func (h *AttemptHandler) ListRecordings(c *gin.Context) {
	recordings, err := h.attemptService.ListRecordings(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("List recordings failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"recordings": recordings})
}

// GetRecording godoc
// GET /api/v1/admin/responses/:id
func (h *AttemptHandler) GetRecording(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	rec, err := h.attemptService.GetRecording(c.Request.Context(), id)
	if err != nil {
		h.failLookup(c, err, service.ErrResponseNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"recording": rec})
}

// StreamAudio godoc
// GET /api/v1/admin/responses/:id/audio
// Streams the stored audio of a response. Accepts ?token= for <audio src>.
func (h *AttemptHandler) StreamAudio(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	rc, rec, err := h.attemptService.OpenAudio(c.Request.Context(), id)
	if err != nil {
		h.failLookup(c, err, service.ErrResponseNotFound)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "audio/webm")
	c.Header("Content-Disposition", `inline; filename="`+path.Base(rec.AudioPath)+`"`)
	c.Header("X-Audio-Duration", strconv.Itoa(rec.Duration))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.log.Warn().Err(err).Str("response_id", id.String()).Msg("Audio stream interrupted")
	}
}

// DeleteResponse godoc
// DELETE /api/v1/admin/responses/:id
// Removes a response, its rating and its audio.
func (h *AttemptHandler) DeleteResponse(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attemptService.DeleteResponse(c.Request.Context(), id); err != nil {
		h.failLookup(c, err, service.ErrResponseNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "response deleted"})
}

// RateResponse godoc
// PUT /api/v1/admin/responses/:id/rating
// Creates or replaces the examiner rating of a response.
func (h *AttemptHandler) RateResponse(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RateResponseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rating, err := h.attemptService.RateResponse(c.Request.Context(), id, &req)
	if err != nil {
		h.failLookup(c, err, service.ErrResponseNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rating": rating})
}

func (h *AttemptHandler) failLookup(c *gin.Context, err, notFound error) {
	if errors.Is(err, notFound) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	h.log.Error().Err(err).Msg("Request failed")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}
