package model

import "github.com/google/uuid"

// Rating holds the examiner's band scores for one response.
type Rating struct {
	ResponseID    uuid.UUID `json:"response_id"`
	Fluency       int       `json:"fluency"`
	Lexical       int       `json:"lexical"`
	Grammar       int       `json:"grammar"`
	Pronunciation int       `json:"pronunciation"`
	Comment       string    `json:"comment"`
}

// RateResponseRequest is the payload for rating a response. Bands run 1-9.
type RateResponseRequest struct {
	Fluency       int    `json:"fluency" binding:"required,min=1,max=9"`
	Lexical       int    `json:"lexical" binding:"required,min=1,max=9"`
	Grammar       int    `json:"grammar" binding:"required,min=1,max=9"`
	Pronunciation int    `json:"pronunciation" binding:"required,min=1,max=9"`
	Comment       string `json:"comment" binding:"max=2000"`
}
