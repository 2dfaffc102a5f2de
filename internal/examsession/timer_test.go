package examsession

import (
	"context"
	"sync"
	"testing"
)

func TestTimerCountsDown(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	if err := f.session.StartTimer(); err != nil {
		t.Fatal(err)
	}
	ticker := f.tickers.last()

	for i := 1; i <= 3; i++ {
		if !ticker.send() {
			t.Fatalf("tick %d not consumed", i)
		}
		want := 45 - i
		waitFor(t, "decrement", func() bool { return f.session.TimeRemaining() == want })
	}
	if got := f.session.FormattedTime(); got != "00:42" {
		t.Errorf("FormattedTime = %q, want 00:42", got)
	}
}

func TestStartTimerTwiceKeepsSingleCountdown(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	if err := f.session.StartTimer(); err != nil {
		t.Fatal(err)
	}
	first := f.tickers.last()
	if err := f.session.StartTimer(); err != nil {
		t.Fatal(err)
	}
	second := f.tickers.last()

	if first == second {
		t.Fatal("expected a new ticker")
	}
	if !first.isStopped() {
		t.Fatal("replaced ticker must be stopped")
	}

	first.send() // stale, may or may not be received
	if got := f.session.TimeRemaining(); got != 45 {
		t.Fatalf("stale tick decremented: %d", got)
	}

	if !second.send() {
		t.Fatal("tick on the active ticker not consumed")
	}
	waitFor(t, "single decrement", func() bool { return f.session.TimeRemaining() == 44 })
}

func TestTimerStopsAtZero(t *testing.T) {
	f := newFixture(t)
	f.questions.batches["1-1"] = makeQuestions(2)
	f.start(t)
	if err := f.session.StartTimer(); err != nil {
		t.Fatal(err)
	}
	ticker := f.tickers.last()

	ticker.send()
	waitFor(t, "first tick", func() bool { return f.session.TimeRemaining() == 1 })
	ticker.send()
	waitFor(t, "expiry", func() bool { return !f.session.TimerRunning() })

	if got := f.session.TimeRemaining(); got != 0 {
		t.Fatalf("TimeRemaining = %d, want 0", got)
	}
	if !ticker.isStopped() {
		t.Error("ticker must stop itself at zero")
	}
	if f.session.CurrentQuestionIndex() != 0 {
		t.Error("expiry must not advance the session")
	}
}

func TestTransitionsStopTimer(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	if err := f.session.StartTimer(); err != nil {
		t.Fatal(err)
	}
	ticker := f.tickers.last()

	f.advance(t, 1)
	if f.session.TimerRunning() || !ticker.isStopped() {
		t.Fatal("Advance must stop the timer")
	}
	ticker.send()
	if got := f.session.TimeRemaining(); got != DefaultResponseSeconds {
		t.Fatalf("stale tick changed the new question's time: %d", got)
	}
}

func TestTimerKeepsTickingWhileSectionLoads(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.advance(t, 2)

	release := make(chan struct{})
	f.questions.mu.Lock()
	f.questions.block["1-2"] = release
	f.questions.mu.Unlock()

	var wg sync.WaitGroup
	var advanceErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		advanceErr = f.session.Advance(context.Background())
	}()

	waitFor(t, "fetch in flight", func() bool {
		f.questions.mu.Lock()
		defer f.questions.mu.Unlock()
		return len(f.questions.calls) == 2
	})

	// The caller restarts the countdown for the old question while the batch loads.
	if err := f.session.StartTimer(); err != nil {
		t.Fatal(err)
	}
	ticker := f.tickers.last()
	if !ticker.send() {
		t.Fatal("tick not consumed while fetch in flight")
	}
	waitFor(t, "tick during fetch", func() bool { return f.session.TimeRemaining() == 19 })

	close(release)
	wg.Wait()
	if advanceErr != nil {
		t.Fatalf("Advance: %v", advanceErr)
	}
	if f.session.TimerRunning() || !ticker.isStopped() {
		t.Fatal("entering a section must stop the timer")
	}
	if got := f.session.TimeRemaining(); got != 25 {
		t.Fatalf("TimeRemaining = %d, want 25 from the new section", got)
	}
}
