package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/metrics"
	"github.com/stemsi/oralexam/internal/model"
	"github.com/stemsi/oralexam/internal/repository"
	"github.com/stemsi/oralexam/internal/storage"
)

// Attempt and response errors.
var (
	ErrStudentNameRequired = errors.New("student name is required")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAttemptFinished     = errors.New("attempt is already finished")
	ErrResponseNotFound    = errors.New("response not found")
	ErrResponseExists      = errors.New("a response for this question was already recorded")
	ErrEmptyAudio          = errors.New("audio payload is empty")
)

const responseContentType = "audio/webm"

// attemptStore is satisfied by repository.AttemptRepository.
type attemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	Finish(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	List(ctx context.Context) ([]model.Attempt, error)
	Delete(ctx context.Context, id uuid.UUID) ([]string, error)
}

// responseStore is satisfied by repository.ResponseRepository.
type responseStore interface {
	Create(ctx context.Context, resp *model.Response, store func(ctx context.Context) error) error
	ListRecordings(ctx context.Context) ([]model.Recording, error)
	GetRecording(ctx context.Context, id uuid.UUID) (*model.Recording, error)
	Delete(ctx context.Context, id uuid.UUID) (string, error)
	UpsertRating(ctx context.Context, rating *model.Rating) error
}

type jobQueue interface {
	Enqueue(ctx context.Context, queue string, payload []byte) error
}

type notifyGate interface {
	NotificationsEnabled(ctx context.Context) bool
}

// AttemptService persists attempts and their audio responses.
type AttemptService struct {
	attemptRepo  attemptStore
	responseRepo responseStore
	blobs        storage.BlobStore
	queue        jobQueue
	gate         notifyGate
	now          func() time.Time
	log          zerolog.Logger
}

// NewAttemptService creates a new AttemptService. queue and gate may be nil
// when notifications are not wired.
func NewAttemptService(attemptRepo attemptStore, responseRepo responseStore, blobs storage.BlobStore, queue jobQueue, gate notifyGate, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		attemptRepo:  attemptRepo,
		responseRepo: responseRepo,
		blobs:        blobs,
		queue:        queue,
		gate:         gate,
		now:          time.Now,
		log:          log.With().Str("component", "attempt_service").Logger(),
	}
}

// CreateAttempt opens a new attempt for a student.
func (s *AttemptService) CreateAttempt(ctx context.Context, studentName string) (uuid.UUID, error) {
	name := strings.TrimSpace(studentName)
	if name == "" {
		return uuid.Nil, ErrStudentNameRequired
	}
	a := &model.Attempt{StudentName: name}
	if err := s.attemptRepo.Create(ctx, a); err != nil {
		return uuid.Nil, fmt.Errorf("create attempt: %w", err)
	}
	return a.ID, nil
}

// SaveResponse stores the audio and its row together. The row is rolled back
// when the upload fails; the blob is removed when the commit fails.
func (s *AttemptService) SaveResponse(ctx context.Context, attemptID, questionID uuid.UUID, audio []byte, durationSeconds int) error {
	if len(audio) == 0 {
		metrics.Responses.WithLabelValues("failed").Inc()
		return ErrEmptyAudio
	}

	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		metrics.Responses.WithLabelValues("failed").Inc()
		return err
	}
	if attempt.FinishedAt != nil {
		metrics.Responses.WithLabelValues("failed").Inc()
		return ErrAttemptFinished
	}

	key := ResponseKey(s.now(), attempt.StudentName, questionID)
	resp := &model.Response{
		AttemptID:  attemptID,
		QuestionID: questionID,
		AudioPath:  key,
		Duration:   durationSeconds,
	}

	stored := false
	err = s.responseRepo.Create(ctx, resp, func(ctx context.Context) error {
		if err := s.blobs.Put(ctx, key, bytes.NewReader(audio), int64(len(audio)), responseContentType); err != nil {
			return fmt.Errorf("store audio: %w", err)
		}
		stored = true
		return nil
	})
	if errors.Is(err, repository.ErrDuplicateResponse) {
		metrics.Responses.WithLabelValues("duplicate").Inc()
		return ErrResponseExists
	}
	if err != nil {
		metrics.Responses.WithLabelValues("failed").Inc()
		if stored {
			if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				s.log.Warn().Err(delErr).Str("key", key).Msg("Failed to remove orphan audio")
			}
		}
		return fmt.Errorf("save response: %w", err)
	}

	metrics.Responses.WithLabelValues("saved").Inc()
	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Str("question_id", questionID.String()).
		Int("duration", durationSeconds).
		Msg("Response saved")

	s.enqueueNotify(ctx, resp.ID)
	return nil
}

func (s *AttemptService) enqueueNotify(ctx context.Context, responseID uuid.UUID) {
	if s.queue == nil || s.gate == nil || !s.gate.NotificationsEnabled(ctx) {
		return
	}
	payload, _ := json.Marshal(model.NotifyJob{ResponseID: responseID})
	if err := s.queue.Enqueue(ctx, config.WorkerKey.NotifyResponsesQueue, payload); err != nil {
		s.log.Error().Err(err).Str("response_id", responseID.String()).Msg("Failed to enqueue notification")
	}
}

// FinishAttempt stamps the attempt as finished.
func (s *AttemptService) FinishAttempt(ctx context.Context, attemptID uuid.UUID) error {
	err := s.attemptRepo.Finish(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAttemptNotFound
	}
	return err
}

// ListAttempts retrieves every attempt, newest first.
func (s *AttemptService) ListAttempts(ctx context.Context) ([]model.Attempt, error) {
	attempts, err := s.attemptRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	return attempts, nil
}

// DeleteAttempt removes an attempt with its responses, ratings and audio.
func (s *AttemptService) DeleteAttempt(ctx context.Context, attemptID uuid.UUID) error {
	paths, err := s.attemptRepo.Delete(ctx, attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAttemptNotFound
	}
	if err != nil {
		return err
	}
	for _, p := range paths {
		s.deleteBlob(ctx, p)
	}
	s.log.Info().Str("attempt_id", attemptID.String()).Int("files", len(paths)).Msg("Attempt deleted")
	return nil
}

// ListRecordings retrieves every response with its review details.
func (s *AttemptService) ListRecordings(ctx context.Context) ([]model.Recording, error) {
	recordings, err := s.responseRepo.ListRecordings(ctx)
	if err != nil {
		return nil, err
	}
	if recordings == nil {
		recordings = []model.Recording{}
	}
	return recordings, nil
}

// GetRecording retrieves one response with its review details.
func (s *AttemptService) GetRecording(ctx context.Context, responseID uuid.UUID) (*model.Recording, error) {
	rec, err := s.responseRepo.GetRecording(ctx, responseID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResponseNotFound
	}
	return rec, err
}

// OpenAudio opens the stored audio of a response. The caller closes the reader.
func (s *AttemptService) OpenAudio(ctx context.Context, responseID uuid.UUID) (io.ReadCloser, *model.Recording, error) {
	rec, err := s.GetRecording(ctx, responseID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Get(ctx, rec.AudioPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrResponseNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return rc, rec, nil
}

// DeleteResponse removes a response, its rating and its audio.
func (s *AttemptService) DeleteResponse(ctx context.Context, responseID uuid.UUID) error {
	path, err := s.responseRepo.Delete(ctx, responseID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrResponseNotFound
	}
	if err != nil {
		return err
	}
	s.deleteBlob(ctx, path)
	return nil
}

// RateResponse creates or replaces the examiner rating of a response.
func (s *AttemptService) RateResponse(ctx context.Context, responseID uuid.UUID, req *model.RateResponseRequest) (*model.Rating, error) {
	rating := &model.Rating{
		ResponseID:    responseID,
		Fluency:       req.Fluency,
		Lexical:       req.Lexical,
		Grammar:       req.Grammar,
		Pronunciation: req.Pronunciation,
		Comment:       strings.TrimSpace(req.Comment),
	}
	err := s.responseRepo.UpsertRating(ctx, rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResponseNotFound
	}
	if err != nil {
		return nil, err
	}
	return rating, nil
}

func (s *AttemptService) getAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, err := s.attemptRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	return a, err
}

func (s *AttemptService) deleteBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to delete audio")
	}
}

// ResponseKey is the blob key of a response:
// responses/{YYYY-MM-DD}/{student}/q{question_id}.webm.
func ResponseKey(at time.Time, studentName string, questionID uuid.UUID) string {
	return fmt.Sprintf("responses/%s/%s/q%s.webm", at.Format("2006-01-02"), storage.SafeName(studentName), questionID)
}
