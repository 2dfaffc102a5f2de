package examsession

import "time"

// Ticker is the subset of *time.Ticker the countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func newStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// countdown is one installed timer. The session holds at most one; a tick
// from a countdown that is no longer installed is dropped.
type countdown struct {
	ticker Ticker
	done   chan struct{}
}

// StartTimer installs a one-second countdown on timeRemaining, replacing any
// running one. The countdown stops itself at zero without further effect.
func (s *ExamSession) StartTimer() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return ErrSessionTerminal
	}

	s.stopTimerLocked()
	cd := &countdown{
		ticker: s.newTicker(time.Second),
		done:   make(chan struct{}),
	}
	s.timer = cd
	s.touchLocked()

	go s.runCountdown(cd)
	return nil
}

// StopTimer cancels the running countdown, if any.
func (s *ExamSession) StopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// TimerRunning reports whether a countdown is installed.
func (s *ExamSession) TimerRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *ExamSession) stopTimerLocked() {
	if s.timer == nil {
		return
	}
	s.timer.ticker.Stop()
	close(s.timer.done)
	s.timer = nil
}

func (s *ExamSession) runCountdown(cd *countdown) {
	for {
		select {
		case <-cd.done:
			return
		case <-cd.ticker.C():
			if !s.tick(cd) {
				return
			}
		}
	}
}

// tick applies one second to the session and reports whether cd should keep running.
func (s *ExamSession) tick(cd *countdown) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != cd {
		return false
	}
	if s.timeRemaining > 0 {
		s.timeRemaining--
	}
	if s.timeRemaining == 0 {
		s.stopTimerLocked()
		return false
	}
	return true
}
