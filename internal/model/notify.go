package model

import "github.com/google/uuid"

// NotifyJob is queued after a response is saved so examiners receive the audio.
type NotifyJob struct {
	ResponseID uuid.UUID `json:"response_id"`
	Retries    int       `json:"retries,omitempty"`
	// RetryAt is a unix timestamp before which a re-queued job is held back.
	RetryAt int64 `json:"retry_at,omitempty"`
}
