package examsession

import "errors"

// Error kinds returned by ExamSession. Collaborator failures are wrapped so
// that both the kind and the cause match errors.Is.
var (
	ErrSessionStart      = errors.New("exam session could not start")
	ErrQuestionFetch     = errors.New("question batch could not be loaded")
	ErrResponseSave      = errors.New("response could not be saved")
	ErrAttemptFinish     = errors.New("attempt could not be finished")
	ErrSessionTerminal   = errors.New("exam session is already finished")
	ErrSessionNotStarted = errors.New("exam session has not started")
	ErrNoCurrentQuestion = errors.New("no current question")
)
