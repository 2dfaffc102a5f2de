// Package examsession sequences one oral exam attempt: sections, questions,
// the per-question countdown and progress.
package examsession

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/model"
)

// Status is the coarse lifecycle state of a session.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
	// StatusInterrupted marks a stored snapshot whose live session is gone,
	// e.g. after a server restart.
	StatusInterrupted Status = "INTERRUPTED"
)

// ExamSession is the state machine for a single attempt.
//
// Caller operations (Start, Advance, RecordResponse, FinishExam, Reset) are
// serialized by opMu. Fields are guarded by mu, which is never held across a
// collaborator call, so the countdown keeps ticking while a batch loads.
type ExamSession struct {
	questions QuestionSource
	attempts  AttemptStore
	sections  []Section
	log       zerolog.Logger
	newTicker func(time.Duration) Ticker
	now       func() time.Time

	opMu sync.Mutex
	mu   sync.Mutex

	attemptID     uuid.UUID
	studentName   string
	sectionIndex  int
	questionIndex int
	loaded        []model.Question
	sectionCounts map[string]int
	timeRemaining int
	recording     bool
	finished      bool
	timer         *countdown
	lastActivity  time.Time
}

// New creates an unstarted session over the default section layout.
func New(questions QuestionSource, attempts AttemptStore, log zerolog.Logger) *ExamSession {
	s := &ExamSession{
		questions:     questions,
		attempts:      attempts,
		sections:      DefaultSections(),
		log:           log.With().Str("component", "exam_session").Logger(),
		newTicker:     newStdTicker,
		now:           time.Now,
		sectionCounts: make(map[string]int),
	}
	s.lastActivity = s.now()
	return s
}

// Start creates the attempt and loads the first section. State is replaced
// only once both collaborator calls succeed.
func (s *ExamSession) Start(ctx context.Context, studentName string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if len(s.sections) == 0 {
		return fmt.Errorf("%w: no sections configured", ErrSessionStart)
	}

	attemptID, err := s.attempts.CreateAttempt(ctx, studentName)
	if err != nil {
		return fmt.Errorf("%w: create attempt: %w", ErrSessionStart, err)
	}

	first := s.sections[0]
	batch, err := s.questions.GetRandomQuestions(ctx, first.Part, first.SubPart, first.RequestedCount, nil)
	if err != nil {
		return fmt.Errorf("%w: load section %s: %w", ErrSessionStart, first.Key(), err)
	}

	s.mu.Lock()
	s.stopTimerLocked()
	s.attemptID = attemptID
	s.studentName = studentName
	s.sectionIndex = 0
	s.questionIndex = 0
	s.loaded = batch
	s.sectionCounts = map[string]int{first.Key(): len(batch)}
	s.timeRemaining = responseSeconds(batch, 0)
	s.recording = false
	s.finished = false
	s.touchLocked()
	s.mu.Unlock()

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("questions", len(batch)).
		Msg("Exam started")
	return nil
}

// Advance moves to the next question, the next section, or finishes the
// attempt after the last question of the last section. It fails with
// ErrSessionTerminal once the session is finished.
func (s *ExamSession) Advance(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return ErrSessionTerminal
	}
	if s.attemptID == uuid.Nil {
		s.mu.Unlock()
		return ErrSessionNotStarted
	}
	s.stopTimerLocked()
	s.touchLocked()

	next := s.questionIndex + 1
	if next < len(s.loaded) {
		s.questionIndex = next
		s.timeRemaining = responseSeconds(s.loaded, next)
		s.mu.Unlock()
		return nil
	}

	sectionIndex := s.sectionIndex
	attemptID := s.attemptID
	exclude := questionIDs(s.loaded)
	s.mu.Unlock()

	if sectionIndex < len(s.sections)-1 {
		return s.enterSection(ctx, sectionIndex+1, exclude)
	}

	if err := s.attempts.FinishAttempt(ctx, attemptID); err != nil {
		return fmt.Errorf("%w: %w", ErrAttemptFinish, err)
	}

	s.mu.Lock()
	s.stopTimerLocked()
	s.finished = true
	s.mu.Unlock()

	s.log.Info().Str("attempt_id", attemptID.String()).Msg("Exam finished")
	return nil
}

// enterSection loads the batch for section idx, excluding only the ids of the
// section being left. Earlier sections are not excluded.
func (s *ExamSession) enterSection(ctx context.Context, idx int, exclude []uuid.UUID) error {
	section := s.sections[idx]
	batch, err := s.questions.GetRandomQuestions(ctx, section.Part, section.SubPart, section.RequestedCount, exclude)
	if err != nil {
		return fmt.Errorf("%w: section %s: %w", ErrQuestionFetch, section.Key(), err)
	}

	s.mu.Lock()
	// A StartTimer may have slipped in while the batch was loading.
	s.stopTimerLocked()
	s.sectionIndex = idx
	s.loaded = batch
	s.questionIndex = 0
	s.timeRemaining = responseSeconds(batch, 0)
	s.sectionCounts[section.Key()] = len(batch)
	s.touchLocked()
	s.mu.Unlock()

	if len(batch) < section.RequestedCount {
		s.log.Warn().
			Str("section", section.Key()).
			Int("requested", section.RequestedCount).
			Int("received", len(batch)).
			Msg("Short question batch")
	}
	return nil
}

// RecordResponse forwards the audio for the current question to the attempt
// store. It never advances the session.
func (s *ExamSession) RecordResponse(ctx context.Context, audio []byte, durationSeconds float64) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	switch {
	case s.finished:
		s.mu.Unlock()
		return ErrSessionTerminal
	case s.attemptID == uuid.Nil:
		s.mu.Unlock()
		return ErrSessionNotStarted
	case s.questionIndex >= len(s.loaded):
		s.mu.Unlock()
		return ErrNoCurrentQuestion
	}
	attemptID := s.attemptID
	questionID := s.loaded[s.questionIndex].ID
	s.touchLocked()
	s.mu.Unlock()

	duration := int(math.Round(durationSeconds))
	if duration < 0 {
		duration = 0
	}

	if err := s.attempts.SaveResponse(ctx, attemptID, questionID, audio, duration); err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", attemptID.String()).
			Str("question_id", questionID.String()).
			Msg("Failed to save response")
		return fmt.Errorf("%w: %w", ErrResponseSave, err)
	}
	return nil
}

// FinishExam marks the attempt finished in the store without touching local
// state. It is a no-op before Start.
func (s *ExamSession) FinishExam(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	attemptID := s.attemptID
	s.mu.Unlock()

	if attemptID == uuid.Nil {
		return nil
	}
	if err := s.attempts.FinishAttempt(ctx, attemptID); err != nil {
		return fmt.Errorf("%w: %w", ErrAttemptFinish, err)
	}
	return nil
}

func (s *ExamSession) StartRecording() {
	s.mu.Lock()
	s.recording = true
	s.touchLocked()
	s.mu.Unlock()
}

func (s *ExamSession) StopRecording() {
	s.mu.Lock()
	s.recording = false
	s.touchLocked()
	s.mu.Unlock()
}

// Reset cancels the countdown and returns every field to its initial value.
func (s *ExamSession) Reset() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.attemptID = uuid.Nil
	s.studentName = ""
	s.sectionIndex = 0
	s.questionIndex = 0
	s.loaded = nil
	s.sectionCounts = make(map[string]int)
	s.timeRemaining = 0
	s.recording = false
	s.finished = false
	s.touchLocked()
}

func (s *ExamSession) touchLocked() {
	s.lastActivity = s.now()
}

// responseSeconds returns the countdown for questions[i], falling back to
// DefaultResponseSeconds when the index is out of range or the time is unset.
func responseSeconds(questions []model.Question, i int) int {
	if i < 0 || i >= len(questions) || questions[i].ResponseTime <= 0 {
		return DefaultResponseSeconds
	}
	return questions[i].ResponseTime
}

func questionIDs(questions []model.Question) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return ids
}
