package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/oralexam/internal/model"
)

// ErrDuplicateResponse is returned when an attempt already has a response for the question.
var ErrDuplicateResponse = errors.New("response already recorded for this question")

const pgUniqueViolation = "23505"

// ResponseRepository handles response, recording and rating data access.
type ResponseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository creates a new ResponseRepository.
func NewResponseRepository(pool *pgxpool.Pool) *ResponseRepository {
	return &ResponseRepository{pool: pool}
}

// Create inserts a response row and runs store before committing, so a failed
// upload leaves no row behind. store is not called for a duplicate response.
func (r *ResponseRepository) Create(ctx context.Context, resp *model.Response, store func(ctx context.Context) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO responses (attempt_id, question_id, audio_path, duration)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, recorded_at`,
		resp.AttemptID, resp.QuestionID, resp.AudioPath, resp.Duration,
	).Scan(&resp.ID, &resp.RecordedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateResponse
	}
	if err != nil {
		return err
	}

	if err := store(ctx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const recordingSelect = `
	SELECT responses.id, responses.attempt_id, attempts.student_name, attempts.started_at,
	       responses.question_id, questions.part, questions.sub_part, questions.text, questions.image_path,
	       responses.audio_path, responses.recorded_at, responses.duration,
	       ratings.fluency, ratings.lexical, ratings.grammar, ratings.pronunciation, ratings.comment
	FROM responses
	JOIN attempts ON responses.attempt_id = attempts.id
	JOIN questions ON responses.question_id = questions.id
	LEFT JOIN ratings ON ratings.response_id = responses.id`

// ListRecordings retrieves every response with attempt, question and rating details.
func (r *ResponseRepository) ListRecordings(ctx context.Context) ([]model.Recording, error) {
	rows, err := r.pool.Query(ctx, recordingSelect+`
		ORDER BY attempts.started_at DESC, responses.recorded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recordings []model.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, *rec)
	}
	return recordings, rows.Err()
}

// GetRecording retrieves a single response with its details.
func (r *ResponseRepository) GetRecording(ctx context.Context, id uuid.UUID) (*model.Recording, error) {
	return scanRecording(r.pool.QueryRow(ctx, recordingSelect+` WHERE responses.id = $1`, id))
}

func scanRecording(row pgx.Row) (*model.Recording, error) {
	var (
		rec                                 model.Recording
		fluency, lexical, grammar, pronunce *int
		comment                             *string
	)
	if err := row.Scan(
		&rec.ID, &rec.AttemptID, &rec.StudentName, &rec.AttemptStartedAt,
		&rec.QuestionID, &rec.Part, &rec.SubPart, &rec.QuestionText, &rec.ImagePath,
		&rec.AudioPath, &rec.RecordedAt, &rec.Duration,
		&fluency, &lexical, &grammar, &pronunce, &comment,
	); err != nil {
		return nil, err
	}
	if fluency != nil {
		rec.Rating = &model.Rating{
			ResponseID:    rec.ID,
			Fluency:       *fluency,
			Lexical:       *lexical,
			Grammar:       *grammar,
			Pronunciation: *pronunce,
		}
		if comment != nil {
			rec.Rating.Comment = *comment
		}
	}
	return &rec, nil
}

// Delete removes a response (and its rating by cascade) and returns its audio path.
func (r *ResponseRepository) Delete(ctx context.Context, id uuid.UUID) (string, error) {
	var audioPath string
	err := r.pool.QueryRow(ctx,
		`DELETE FROM responses WHERE id = $1 RETURNING audio_path`, id,
	).Scan(&audioPath)
	return audioPath, err
}

// UpsertRating creates or replaces the rating of a response.
func (r *ResponseRepository) UpsertRating(ctx context.Context, rating *model.Rating) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO ratings (response_id, fluency, lexical, grammar, pronunciation, comment)
		 SELECT $1, $2, $3, $4, $5, $6
		 WHERE EXISTS (SELECT 1 FROM responses WHERE id = $1)
		 ON CONFLICT (response_id) DO UPDATE
		 SET fluency = EXCLUDED.fluency, lexical = EXCLUDED.lexical, grammar = EXCLUDED.grammar,
		     pronunciation = EXCLUDED.pronunciation, comment = EXCLUDED.comment`,
		rating.ResponseID, rating.Fluency, rating.Lexical, rating.Grammar, rating.Pronunciation, rating.Comment,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
