package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/oralexam/internal/model"
	"github.com/stemsi/oralexam/internal/repository"
	"github.com/stemsi/oralexam/internal/storage"
)

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, key)
	delete(b.objects, key)
	return nil
}

type fakeAttemptRepo struct {
	attempts map[uuid.UUID]*model.Attempt
	audio    map[uuid.UUID][]string
	finished []uuid.UUID
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{
		attempts: make(map[uuid.UUID]*model.Attempt),
		audio:    make(map[uuid.UUID][]string),
	}
}

func (r *fakeAttemptRepo) Create(_ context.Context, a *model.Attempt) error {
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	cp := *a
	r.attempts[a.ID] = &cp
	return nil
}

func (r *fakeAttemptRepo) Finish(_ context.Context, id uuid.UUID) error {
	a, ok := r.attempts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	a.FinishedAt = &now
	r.finished = append(r.finished, id)
	return nil
}

func (r *fakeAttemptRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, ok := r.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAttemptRepo) List(_ context.Context) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, a := range r.attempts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentName < out[j].StudentName })
	return out, nil
}

func (r *fakeAttemptRepo) Delete(_ context.Context, id uuid.UUID) ([]string, error) {
	if _, ok := r.attempts[id]; !ok {
		return nil, pgx.ErrNoRows
	}
	delete(r.attempts, id)
	paths := r.audio[id]
	delete(r.audio, id)
	return paths, nil
}

type fakeResponseRepo struct {
	rows      map[uuid.UUID]model.Response
	seen      map[[2]uuid.UUID]bool
	commitErr error
	ratings   map[uuid.UUID]model.Rating
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{
		rows:    make(map[uuid.UUID]model.Response),
		seen:    make(map[[2]uuid.UUID]bool),
		ratings: make(map[uuid.UUID]model.Rating),
	}
}

func (r *fakeResponseRepo) Create(ctx context.Context, resp *model.Response, store func(ctx context.Context) error) error {
	pair := [2]uuid.UUID{resp.AttemptID, resp.QuestionID}
	if r.seen[pair] {
		return repository.ErrDuplicateResponse
	}
	resp.ID = uuid.New()
	resp.RecordedAt = time.Now()
	if err := store(ctx); err != nil {
		return err
	}
	if r.commitErr != nil {
		return r.commitErr
	}
	r.seen[pair] = true
	r.rows[resp.ID] = *resp
	return nil
}

func (r *fakeResponseRepo) ListRecordings(_ context.Context) ([]model.Recording, error) {
	var out []model.Recording
	for _, row := range r.rows {
		rec, _ := r.GetRecording(context.Background(), row.ID)
		out = append(out, *rec)
	}
	return out, nil
}

func (r *fakeResponseRepo) GetRecording(_ context.Context, id uuid.UUID) (*model.Recording, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	rec := &model.Recording{
		ID:         row.ID,
		AttemptID:  row.AttemptID,
		QuestionID: row.QuestionID,
		AudioPath:  row.AudioPath,
		Duration:   row.Duration,
		RecordedAt: row.RecordedAt,
	}
	if rating, ok := r.ratings[id]; ok {
		rec.Rating = &rating
	}
	return rec, nil
}

func (r *fakeResponseRepo) Delete(_ context.Context, id uuid.UUID) (string, error) {
	row, ok := r.rows[id]
	if !ok {
		return "", pgx.ErrNoRows
	}
	delete(r.rows, id)
	delete(r.ratings, id)
	delete(r.seen, [2]uuid.UUID{row.AttemptID, row.QuestionID})
	return row.AudioPath, nil
}

func (r *fakeResponseRepo) UpsertRating(_ context.Context, rating *model.Rating) error {
	if _, ok := r.rows[rating.ResponseID]; !ok {
		return pgx.ErrNoRows
	}
	r.ratings[rating.ResponseID] = *rating
	return nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs map[string][][]byte
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, queue string, payload []byte) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.jobs == nil {
		q.jobs = make(map[string][][]byte)
	}
	q.jobs[queue] = append(q.jobs[queue], payload)
	return nil
}

func (q *fakeQueue) count(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs[queue])
}

type staticGate bool

func (g staticGate) NotificationsEnabled(context.Context) bool { return bool(g) }

type fakeStates struct {
	mu      sync.Mutex
	saved   map[string][]byte
	dropped []string
	err     error
}

func newFakeStates() *fakeStates {
	return &fakeStates{saved: make(map[string][]byte)}
}

func (s *fakeStates) SaveState(_ context.Context, attemptID string, payload []byte, _ time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[attemptID] = payload
	return nil
}

func (s *fakeStates) DropState(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = append(s.dropped, attemptID)
	delete(s.saved, attemptID)
	return s.err
}

func (s *fakeStates) LoadState(_ context.Context, attemptID string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[attemptID], nil
}

func (s *fakeStates) ListStates(context.Context) ([][]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, 0, len(s.saved))
	for _, p := range s.saved {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStates) get(attemptID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.saved[attemptID]
	return p, ok
}

type memLogins struct {
	keys map[string]bool
	err  error
}

func (m *memLogins) Remember(_ context.Context, key string, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	m.keys[key] = true
	return nil
}

func (m *memLogins) Known(_ context.Context, key string) (bool, error) {
	return m.keys[key], m.err
}

func (m *memLogins) Forget(_ context.Context, key string) error {
	delete(m.keys, key)
	return m.err
}

var errBoom = errors.New("boom")
