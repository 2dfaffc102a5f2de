package model

import (
	"time"

	"github.com/google/uuid"
)

// Response is one stored audio answer for a question within an attempt.
type Response struct {
	ID         uuid.UUID `json:"id"`
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	AudioPath  string    `json:"audio_path"`
	Duration   int       `json:"duration"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Recording is a response joined with its attempt, question and rating for review.
type Recording struct {
	ID               uuid.UUID `json:"id"`
	AttemptID        uuid.UUID `json:"attempt_id"`
	StudentName      string    `json:"student_name"`
	AttemptStartedAt time.Time `json:"attempt_started_at"`
	QuestionID       uuid.UUID `json:"question_id"`
	Part             int       `json:"part"`
	SubPart          int       `json:"sub_part"`
	QuestionText     string    `json:"question_text"`
	ImagePath        string    `json:"image_path"`
	AudioPath        string    `json:"-"`
	RecordedAt       time.Time `json:"recorded_at"`
	Duration         int       `json:"duration"`
	Rating           *Rating   `json:"rating,omitempty"`
}
