package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/oralexam/internal/model"
)

const questionColumns = `id, part, sub_part, audio_path, image_path, text, pack_id, pack_order, response_time, active, created_at`

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// RandomPackID picks one random pack among active questions of a section.
// Returns "" when the section has no packs.
func (r *QuestionRepository) RandomPackID(ctx context.Context, part, subPart int) (string, error) {
	var packID string
	err := r.pool.QueryRow(ctx,
		`SELECT pack_id FROM questions
		 WHERE part = $1 AND sub_part = $2 AND active AND pack_id <> ''
		 GROUP BY pack_id
		 ORDER BY random()
		 LIMIT 1`, part, subPart,
	).Scan(&packID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return packID, err
}

// ListPack returns up to limit questions of a pack in pack order, skipping excludeIDs.
func (r *QuestionRepository) ListPack(ctx context.Context, part, subPart int, packID string, excludeIDs []uuid.UUID, limit int) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions
		 WHERE part = $1 AND sub_part = $2 AND active AND pack_id = $3
		   AND NOT (id = ANY($4::uuid[]))
		 ORDER BY pack_order ASC, created_at ASC, id ASC
		 LIMIT $5`,
		part, subPart, packID, nonNilIDs(excludeIDs), limit,
	)
	if err != nil {
		return nil, err
	}
	return scanQuestions(rows)
}

// ListRandom returns up to limit random active questions of a part. A subPart
// of 0 matches every sub-part.
func (r *QuestionRepository) ListRandom(ctx context.Context, part, subPart int, excludeIDs []uuid.UUID, limit int) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions
		 WHERE part = $1 AND active
		   AND ($2 = 0 OR sub_part = $2)
		   AND NOT (id = ANY($3::uuid[]))
		 ORDER BY random()
		 LIMIT $4`,
		part, subPart, nonNilIDs(excludeIDs), limit,
	)
	if err != nil {
		return nil, err
	}
	return scanQuestions(rows)
}

// ListActive retrieves the active question bank ordered by section.
func (r *QuestionRepository) ListActive(ctx context.Context) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions WHERE active
		 ORDER BY part, sub_part, pack_id, pack_order, created_at`,
	)
	if err != nil {
		return nil, err
	}
	return scanQuestions(rows)
}

// GetByID retrieves a question regardless of its active flag.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	qs, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &qs[0], nil
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (part, sub_part, audio_path, image_path, text, pack_id, pack_order, response_time, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		 RETURNING id, active, created_at`,
		q.Part, q.SubPart, q.AudioPath, q.ImagePath, q.Text, q.PackID, q.PackOrder, q.ResponseTime,
	).Scan(&q.ID, &q.Active, &q.CreatedAt)
}

// Deactivate hides a question from future batches. Responses keep referencing it.
func (r *QuestionRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE questions SET active = FALSE WHERE id = $1 AND active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Part, &q.SubPart, &q.AudioPath, &q.ImagePath, &q.Text,
			&q.PackID, &q.PackOrder, &q.ResponseTime, &q.Active, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// nonNilIDs keeps ANY() from comparing against NULL, which would match nothing.
func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
