package examsession

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/oralexam/internal/model"
)

// State is a point-in-time copy of everything a client renders.
type State struct {
	AttemptID     *uuid.UUID      `json:"attempt_id"`
	StudentName   string          `json:"student_name"`
	Status        Status          `json:"status"`
	Part          int             `json:"part"`
	SubPart       int             `json:"sub_part"`
	PartLabel     string          `json:"part_label"`
	SectionKey    string          `json:"section_key"`
	SectionIndex  int             `json:"section_index"`
	QuestionIndex int             `json:"question_index"`
	QuestionCount int             `json:"question_count"`
	Question      *model.Question `json:"question"`
	IsRecording   bool            `json:"is_recording"`
	TimeRemaining int             `json:"time_remaining"`
	FormattedTime string          `json:"formatted_time"`
	TimerRunning  bool            `json:"timer_running"`
	IsFinished    bool            `json:"is_finished"`
	Progress      int             `json:"progress"`
}

// Snapshot returns the current state.
func (s *ExamSession) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		StudentName:   s.studentName,
		Status:        s.statusLocked(),
		SectionIndex:  s.sectionIndex,
		QuestionIndex: s.questionIndex,
		QuestionCount: len(s.loaded),
		Question:      s.currentQuestionLocked(),
		IsRecording:   s.recording,
		TimeRemaining: s.timeRemaining,
		FormattedTime: FormatTime(s.timeRemaining),
		TimerRunning:  s.timer != nil,
		IsFinished:    s.finished,
		Progress:      s.progressLocked(),
	}
	if s.attemptID != uuid.Nil {
		id := s.attemptID
		st.AttemptID = &id
	}
	if sec, ok := s.currentSectionLocked(); ok {
		st.Part = sec.Part
		st.SubPart = sec.SubPart
		st.PartLabel = PartLabel(sec.Part, sec.SubPart)
		st.SectionKey = sec.Key()
	}
	return st
}

func (s *ExamSession) AttemptID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptID
}

func (s *ExamSession) StudentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.studentName
}

func (s *ExamSession) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// CurrentSection returns the section at the current index. ok is false only
// when the session has no sections at all.
func (s *ExamSession) CurrentSection() (Section, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSectionLocked()
}

func (s *ExamSession) CurrentQuestionIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionIndex
}

// CurrentQuestion returns a copy of the current question, or nil.
func (s *ExamSession) CurrentQuestion() *model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentQuestionLocked()
}

// LoadedQuestions returns a copy of the current section's batch.
func (s *ExamSession) LoadedQuestions() []model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded == nil {
		return nil
	}
	out := make([]model.Question, len(s.loaded))
	copy(out, s.loaded)
	return out
}

// SectionCounts returns a copy of the actual-count map.
func (s *ExamSession) SectionCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.sectionCounts))
	for k, v := range s.sectionCounts {
		out[k] = v
	}
	return out
}

func (s *ExamSession) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

func (s *ExamSession) TimeRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeRemaining
}

func (s *ExamSession) FormattedTime() string {
	return FormatTime(s.TimeRemaining())
}

func (s *ExamSession) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// ProgressPercent is the share of expected questions already passed.
func (s *ExamSession) ProgressPercent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

// LastActivity is the time of the last caller operation.
func (s *ExamSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// FormatTime renders seconds as zero-padded MM:SS. Negative input renders as 00:00.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func (s *ExamSession) statusLocked() Status {
	switch {
	case s.finished:
		return StatusFinished
	case s.attemptID != uuid.Nil:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

func (s *ExamSession) currentSectionLocked() (Section, bool) {
	if s.sectionIndex < 0 || s.sectionIndex >= len(s.sections) {
		return Section{}, false
	}
	return s.sections[s.sectionIndex], true
}

func (s *ExamSession) currentQuestionLocked() *model.Question {
	if s.questionIndex < 0 || s.questionIndex >= len(s.loaded) {
		return nil
	}
	q := s.loaded[s.questionIndex]
	return &q
}

// sectionCountLocked is the actual count for visited sections and the
// requested count otherwise.
func (s *ExamSession) sectionCountLocked(sec Section) int {
	if n, ok := s.sectionCounts[sec.Key()]; ok {
		return n
	}
	return sec.RequestedCount
}

func (s *ExamSession) progressLocked() int {
	total, answered := 0, 0
	for i, sec := range s.sections {
		n := s.sectionCountLocked(sec)
		total += n
		if i < s.sectionIndex {
			answered += n
		}
	}
	if total <= 0 {
		return 0
	}
	if s.finished {
		return 100
	}
	answered += s.questionIndex

	pct := int(math.Round(100 * float64(answered) / float64(total)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
