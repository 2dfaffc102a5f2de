package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/oralexam/internal/examsession"
	"github.com/stemsi/oralexam/internal/response"
	"github.com/stemsi/oralexam/internal/service"
)

// classifySessionError maps session and collaborator errors to an HTTP status
// and error code. Wrapped causes are checked before the wrapping kind.
func classifySessionError(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrLiveSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotLive
	case errors.Is(err, service.ErrStudentNameRequired):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, service.ErrResponseExists):
		return http.StatusConflict, response.ErrResponseExists
	case errors.Is(err, service.ErrEmptyAudio):
		return http.StatusBadRequest, response.ErrFileRequired
	case errors.Is(err, examsession.ErrSessionTerminal),
		errors.Is(err, service.ErrAttemptFinished):
		return http.StatusConflict, response.ErrSessionFinished
	case errors.Is(err, examsession.ErrSessionNotStarted):
		return http.StatusConflict, response.ErrSessionNotStarted
	case errors.Is(err, examsession.ErrNoCurrentQuestion):
		return http.StatusConflict, response.ErrNoCurrentQuestion
	case errors.Is(err, examsession.ErrSessionStart):
		return http.StatusServiceUnavailable, response.ErrSessionStart
	case errors.Is(err, examsession.ErrQuestionFetch):
		return http.StatusServiceUnavailable, response.ErrQuestionFetch
	case errors.Is(err, examsession.ErrResponseSave):
		return http.StatusInternalServerError, response.ErrResponseSave
	case errors.Is(err, examsession.ErrAttemptFinish):
		return http.StatusInternalServerError, response.ErrAttemptFinish
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

func failSession(c *gin.Context, err error) {
	status, code := classifySessionError(err)
	response.Fail(c, status, code)
}
