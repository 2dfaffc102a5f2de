package model

import (
	"time"

	"github.com/google/uuid"
)

// Question represents a single oral-exam prompt.
type Question struct {
	ID           uuid.UUID `json:"id"`
	Part         int       `json:"part"`
	SubPart      int       `json:"sub_part"`
	AudioPath    string    `json:"audio_path"`
	ImagePath    string    `json:"image_path"`
	Text         string    `json:"text"`
	PackID       string    `json:"pack_id"`
	PackOrder    int       `json:"pack_order"`
	ResponseTime int       `json:"response_time"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AddQuestionRequest is the payload for adding a question to the bank.
type AddQuestionRequest struct {
	Part         int    `json:"part" binding:"required,min=1,max=3"`
	SubPart      int    `json:"sub_part" binding:"min=0,max=2"`
	AudioPath    string `json:"audio_path" binding:"max=500"`
	ImagePath    string `json:"image_path" binding:"max=500"`
	Text         string `json:"text" binding:"max=4000"`
	PackID       string `json:"pack_id" binding:"max=100"`
	PackOrder    int    `json:"pack_order" binding:"min=0"`
	ResponseTime int    `json:"response_time" binding:"min=0,max=3600"`
}
