package examsession

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/oralexam/internal/model"
)

// QuestionSource returns a random batch of at most count active questions for
// a section, skipping excludeIDs. Returning fewer than count is not an error.
type QuestionSource interface {
	GetRandomQuestions(ctx context.Context, part, subPart, count int, excludeIDs []uuid.UUID) ([]model.Question, error)
}

// AttemptStore persists attempts and their audio responses. It is responsible
// for keeping at most one response per (attempt, question).
type AttemptStore interface {
	CreateAttempt(ctx context.Context, studentName string) (uuid.UUID, error)
	SaveResponse(ctx context.Context, attemptID, questionID uuid.UUID, audio []byte, durationSeconds int) error
	FinishAttempt(ctx context.Context, attemptID uuid.UUID) error
}
