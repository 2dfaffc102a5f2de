package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/examsession"
	"github.com/stemsi/oralexam/internal/metrics"
)

// ErrLiveSessionNotFound is returned for attempts that have no live session.
var ErrLiveSessionNotFound = errors.New("no live session for this attempt")

// stateStore is satisfied by RedisStore.
type stateStore interface {
	SaveState(ctx context.Context, attemptID string, payload []byte, ttl time.Duration) error
	DropState(ctx context.Context, attemptID string) error
	LoadState(ctx context.Context, attemptID string) ([]byte, error)
	ListStates(ctx context.Context) ([][]byte, error)
}

// SessionManager owns the live exam sessions, one per attempt.
type SessionManager struct {
	questions examsession.QuestionSource
	attempts  examsession.AttemptStore
	states    stateStore
	idleTTL   time.Duration
	now       func() time.Time
	baseLog   zerolog.Logger
	log       zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*examsession.ExamSession
}

// NewSessionManager creates a new SessionManager. states may be nil.
func NewSessionManager(questions examsession.QuestionSource, attempts examsession.AttemptStore, states stateStore, idleTTL time.Duration, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		questions: questions,
		attempts:  attempts,
		states:    states,
		idleTTL:   idleTTL,
		now:       time.Now,
		baseLog:   log,
		log:       log.With().Str("component", "session_manager").Logger(),
		sessions:  make(map[uuid.UUID]*examsession.ExamSession),
	}
}

// Start creates a session, starts it and registers it under its attempt id.
func (m *SessionManager) Start(ctx context.Context, studentName string) (examsession.State, error) {
	sess := examsession.New(m.questions, m.attempts, m.baseLog)
	if err := sess.Start(ctx, studentName); err != nil {
		return examsession.State{}, err
	}

	attemptID := sess.AttemptID()
	m.mu.Lock()
	m.sessions[attemptID] = sess
	metrics.LiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	metrics.SessionsStarted.Inc()
	return m.publish(ctx, sess), nil
}

// Get returns the live session of an attempt.
func (m *SessionManager) Get(attemptID uuid.UUID) (*examsession.ExamSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[attemptID]
	if !ok {
		return nil, ErrLiveSessionNotFound
	}
	return sess, nil
}

// Snapshot returns the current state of an attempt's session.
func (m *SessionManager) Snapshot(attemptID uuid.UUID) (examsession.State, error) {
	sess, err := m.Get(attemptID)
	if err != nil {
		return examsession.State{}, err
	}
	return sess.Snapshot(), nil
}

// Recall returns the live state of an attempt or, when the session is gone,
// its last stored snapshot marked as interrupted.
func (m *SessionManager) Recall(ctx context.Context, attemptID uuid.UUID) (examsession.State, error) {
	if st, err := m.Snapshot(attemptID); err == nil {
		return st, nil
	}
	if m.states == nil {
		return examsession.State{}, ErrLiveSessionNotFound
	}

	payload, err := m.states.LoadState(ctx, attemptID.String())
	if err != nil {
		return examsession.State{}, fmt.Errorf("load stored state: %w", err)
	}
	if payload == nil {
		return examsession.State{}, ErrLiveSessionNotFound
	}
	st, err := storedState(payload)
	if err != nil {
		return examsession.State{}, err
	}
	return st, nil
}

// Interrupted returns the stored snapshots of attempts that have no live
// session, ordered by student name.
func (m *SessionManager) Interrupted(ctx context.Context) ([]examsession.State, error) {
	out := []examsession.State{}
	if m.states == nil {
		return out, nil
	}
	payloads, err := m.states.ListStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored states: %w", err)
	}

	for _, payload := range payloads {
		st, err := storedState(payload)
		if err != nil {
			m.log.Warn().Err(err).Msg("Skipping unreadable stored state")
			continue
		}
		if st.AttemptID == nil || st.Status != examsession.StatusInterrupted {
			continue
		}
		if _, err := m.Get(*st.AttemptID); err == nil {
			continue
		}
		out = append(out, st)
	}
	sortStates(out)
	return out, nil
}

// storedState decodes a snapshot and marks unfinished ones as interrupted.
// Nothing is running for a stored snapshot, so the timer and recording flags
// are cleared.
func storedState(payload []byte) (examsession.State, error) {
	var st examsession.State
	if err := json.Unmarshal(payload, &st); err != nil {
		return examsession.State{}, fmt.Errorf("decode stored state: %w", err)
	}
	if !st.IsFinished {
		st.Status = examsession.StatusInterrupted
	}
	st.TimerRunning = false
	st.IsRecording = false
	return st, nil
}

// Advance moves the session forward and publishes the new state.
func (m *SessionManager) Advance(ctx context.Context, attemptID uuid.UUID) (examsession.State, error) {
	sess, err := m.Get(attemptID)
	if err != nil {
		return examsession.State{}, err
	}
	if err := sess.Advance(ctx); err != nil {
		return sess.Snapshot(), err
	}
	st := m.publish(ctx, sess)
	if st.IsFinished {
		metrics.SessionsFinished.Inc()
	}
	return st, nil
}

// RecordResponse saves the audio for the session's current question.
func (m *SessionManager) RecordResponse(ctx context.Context, attemptID uuid.UUID, audio []byte, durationSeconds float64) (examsession.State, error) {
	sess, err := m.Get(attemptID)
	if err != nil {
		return examsession.State{}, err
	}
	if err := sess.RecordResponse(ctx, audio, durationSeconds); err != nil {
		return sess.Snapshot(), err
	}
	return m.publish(ctx, sess), nil
}

// Finish marks the attempt finished in the store without moving the session.
func (m *SessionManager) Finish(ctx context.Context, attemptID uuid.UUID) error {
	sess, err := m.Get(attemptID)
	if err != nil {
		return err
	}
	return sess.FinishExam(ctx)
}

// StartTimer restarts the countdown of the current question.
func (m *SessionManager) StartTimer(ctx context.Context, attemptID uuid.UUID) (examsession.State, error) {
	return m.apply(ctx, attemptID, func(s *examsession.ExamSession) error { return s.StartTimer() })
}

// StopTimer pauses the countdown.
func (m *SessionManager) StopTimer(ctx context.Context, attemptID uuid.UUID) (examsession.State, error) {
	return m.apply(ctx, attemptID, func(s *examsession.ExamSession) error {
		s.StopTimer()
		return nil
	})
}

// StartRecording flags the session as capturing audio.
func (m *SessionManager) StartRecording(ctx context.Context, attemptID uuid.UUID) (examsession.State, error) {
	return m.apply(ctx, attemptID, func(s *examsession.ExamSession) error {
		s.StartRecording()
		return nil
	})
}

// StopRecording clears the recording flag.
func (m *SessionManager) StopRecording(ctx context.Context, attemptID uuid.UUID) (examsession.State, error) {
	return m.apply(ctx, attemptID, func(s *examsession.ExamSession) error {
		s.StopRecording()
		return nil
	})
}

func (m *SessionManager) apply(ctx context.Context, attemptID uuid.UUID, fn func(*examsession.ExamSession) error) (examsession.State, error) {
	sess, err := m.Get(attemptID)
	if err != nil {
		return examsession.State{}, err
	}
	if err := fn(sess); err != nil {
		return sess.Snapshot(), err
	}
	return m.publish(ctx, sess), nil
}

// Reset clears the session and drops it from the registry.
func (m *SessionManager) Reset(ctx context.Context, attemptID uuid.UUID) error {
	m.mu.Lock()
	sess, ok := m.sessions[attemptID]
	delete(m.sessions, attemptID)
	metrics.LiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if !ok {
		return ErrLiveSessionNotFound
	}
	sess.Reset()
	m.dropState(ctx, attemptID)
	return nil
}

// List returns the state of every live session ordered by student name.
func (m *SessionManager) List() []examsession.State {
	m.mu.RLock()
	out := make([]examsession.State, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.Snapshot())
	}
	m.mu.RUnlock()

	sortStates(out)
	return out
}

func sortStates(states []examsession.State) {
	sort.Slice(states, func(i, j int) bool {
		if states[i].StudentName != states[j].StudentName {
			return states[i].StudentName < states[j].StudentName
		}
		return states[i].AttemptID.String() < states[j].AttemptID.String()
	})
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RunJanitor evicts idle sessions every interval until ctx is cancelled. Call in a goroutine.
func (m *SessionManager) RunJanitor(ctx context.Context, interval time.Duration) {
	m.log.Info().Dur("idle_ttl", m.idleTTL).Msg("Janitor started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("Janitor stopped")
			return
		case <-ticker.C:
			if n := m.EvictIdle(ctx); n > 0 {
				m.log.Info().Int("evicted", n).Msg("Evicted idle sessions")
			}
		}
	}
}

// EvictIdle resets and unregisters sessions idle longer than the idle TTL.
func (m *SessionManager) EvictIdle(ctx context.Context) int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var idle []uuid.UUID
	for id, sess := range m.sessions {
		if sess.LastActivity().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	evicted := make([]*examsession.ExamSession, 0, len(idle))
	for _, id := range idle {
		evicted = append(evicted, m.sessions[id])
		delete(m.sessions, id)
	}
	metrics.LiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for i, sess := range evicted {
		sess.Reset()
		m.dropState(ctx, idle[i])
	}
	return len(evicted)
}

// Shutdown stops every countdown. Sessions stay registered.
func (m *SessionManager) Shutdown() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sess := range m.sessions {
		sess.StopTimer()
	}
}

func (m *SessionManager) publish(ctx context.Context, sess *examsession.ExamSession) examsession.State {
	st := sess.Snapshot()
	if m.states == nil || st.AttemptID == nil {
		return st
	}
	payload, err := json.Marshal(st)
	if err != nil {
		m.log.Error().Err(err).Msg("Marshal state failed")
		return st
	}
	if err := m.states.SaveState(ctx, st.AttemptID.String(), payload, m.idleTTL); err != nil {
		m.log.Warn().Err(err).Str("attempt_id", st.AttemptID.String()).Msg("Failed to publish state")
	}
	return st
}

func (m *SessionManager) dropState(ctx context.Context, attemptID uuid.UUID) {
	if m.states == nil {
		return
	}
	if err := m.states.DropState(ctx, attemptID.String()); err != nil {
		m.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to drop state")
	}
}
