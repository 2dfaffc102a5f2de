package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/examsession"
	"github.com/stemsi/oralexam/internal/metrics"
	"github.com/stemsi/oralexam/internal/model"
)

// Question validation errors.
var (
	ErrQuestionNotFound  = errors.New("question not found")
	ErrImageRequired     = errors.New("image is required for this part")
	ErrPackRequired      = errors.New("pack id is required for part 1.1 and 1.2 questions")
	ErrPackOrderRequired = errors.New("pack order is required for part 1.1 and 1.2 questions")
)

// questionStore is satisfied by repository.QuestionRepository.
type questionStore interface {
	RandomPackID(ctx context.Context, part, subPart int) (string, error)
	ListPack(ctx context.Context, part, subPart int, packID string, excludeIDs []uuid.UUID, limit int) ([]model.Question, error)
	ListRandom(ctx context.Context, part, subPart int, excludeIDs []uuid.UUID, limit int) ([]model.Question, error)
	ListActive(ctx context.Context) ([]model.Question, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	Create(ctx context.Context, q *model.Question) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// QuestionService serves question batches to exam sessions and manages the bank.
type QuestionService struct {
	questionRepo questionStore
	log          zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo questionStore, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		log:          log.With().Str("component", "question_service").Logger(),
	}
}

// GetRandomQuestions returns at most count questions for a section.
// Part 1.1 and 1.2 draw a single random pack in pack order; any other section,
// or a pack that yields nothing, gets a random pick across the part.
func (s *QuestionService) GetRandomQuestions(ctx context.Context, part, subPart, count int, excludeIDs []uuid.UUID) ([]model.Question, error) {
	if count <= 0 {
		return []model.Question{}, nil
	}

	var (
		questions []model.Question
		err       error
	)
	if usesPacks(part, subPart) {
		questions, err = s.packBatch(ctx, part, subPart, count, excludeIDs)
		if err != nil {
			return nil, err
		}
	}
	if len(questions) == 0 {
		questions, err = s.questionRepo.ListRandom(ctx, part, subPart, excludeIDs, count)
		if err != nil {
			return nil, fmt.Errorf("list random questions: %w", err)
		}
	}
	if questions == nil {
		questions = []model.Question{}
	}

	if len(questions) < count {
		key := examsession.SectionKey(part, subPart)
		metrics.ShortBatches.WithLabelValues(key).Inc()
		s.log.Debug().
			Str("section", key).
			Int("requested", count).
			Int("received", len(questions)).
			Msg("Question bank short for section")
	}
	return questions, nil
}

func (s *QuestionService) packBatch(ctx context.Context, part, subPart, count int, excludeIDs []uuid.UUID) ([]model.Question, error) {
	packID, err := s.questionRepo.RandomPackID(ctx, part, subPart)
	if err != nil {
		return nil, fmt.Errorf("pick pack: %w", err)
	}
	if packID == "" {
		return nil, nil
	}
	questions, err := s.questionRepo.ListPack(ctx, part, subPart, packID, excludeIDs, count)
	if err != nil {
		return nil, fmt.Errorf("list pack %s: %w", packID, err)
	}
	return questions, nil
}

// ListActive retrieves the active bank ordered by section.
func (s *QuestionService) ListActive(ctx context.Context) ([]model.Question, error) {
	questions, err := s.questionRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// GetByID retrieves a question by id.
func (s *QuestionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	return q, err
}

// Create validates and stores a new question.
func (s *QuestionService) Create(ctx context.Context, req *model.AddQuestionRequest) (*model.Question, error) {
	q := &model.Question{
		Part:         req.Part,
		SubPart:      req.SubPart,
		AudioPath:    strings.TrimSpace(req.AudioPath),
		ImagePath:    strings.TrimSpace(req.ImagePath),
		Text:         strings.TrimSpace(req.Text),
		PackID:       strings.TrimSpace(req.PackID),
		PackOrder:    req.PackOrder,
		ResponseTime: req.ResponseTime,
	}
	if err := normalizeQuestion(q); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, err
	}
	s.log.Info().Str("question_id", q.ID.String()).Str("section", examsession.SectionKey(q.Part, q.SubPart)).Msg("Question added")
	return q, nil
}

// Delete removes a question from future batches. Stored responses keep pointing at it.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.questionRepo.Deactivate(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrQuestionNotFound
	}
	return err
}

// normalizeQuestion applies the per-part rules of the bank.
func normalizeQuestion(q *model.Question) error {
	if q.Part != 1 {
		q.SubPart = 0
	} else if q.SubPart == 0 {
		q.SubPart = 1
	}

	switch {
	case q.Part == 1 && q.SubPart == 2 && q.ImagePath == "":
		return fmt.Errorf("%w: part 1.2", ErrImageRequired)
	case q.Part == 3 && q.ImagePath == "":
		return fmt.Errorf("%w: part 3", ErrImageRequired)
	}

	if usesPacks(q.Part, q.SubPart) {
		if q.PackID == "" {
			return ErrPackRequired
		}
		if q.PackOrder <= 0 {
			return ErrPackOrderRequired
		}
	} else {
		q.PackID = ""
		q.PackOrder = 0
	}

	if q.Part == 3 {
		q.Text = ""
	}
	return nil
}

func usesPacks(part, subPart int) bool {
	return part == 1 && (subPart == 1 || subPart == 2)
}
