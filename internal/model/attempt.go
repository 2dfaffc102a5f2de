package model

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is one exam-taking instance tied to a student name.
type Attempt struct {
	ID          uuid.UUID  `json:"id"`
	StudentName string     `json:"student_name"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// StartAttemptRequest is the payload for starting an exam.
type StartAttemptRequest struct {
	StudentName string `json:"student_name" binding:"required,min=1,max=120"`
}
