package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/middleware"
	"github.com/stemsi/oralexam/internal/model"
	"github.com/stemsi/oralexam/internal/service"
	"github.com/stemsi/oralexam/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// bank hands out fresh questions with a 20 second response time.
type bank struct{}

func (bank) GetRandomQuestions(_ context.Context, part, subPart, count int, _ []uuid.UUID) ([]model.Question, error) {
	out := make([]model.Question, count)
	for i := range out {
		out[i] = model.Question{ID: uuid.New(), Part: part, SubPart: subPart, ResponseTime: 20}
	}
	return out, nil
}

type savedResponse struct {
	audio    []byte
	duration int
}

// attemptLog keeps attempts and responses in memory.
type attemptLog struct {
	mu        sync.Mutex
	finished  map[uuid.UUID]bool
	responses map[[2]uuid.UUID]savedResponse
}

func newAttemptLog() *attemptLog {
	return &attemptLog{
		finished:  make(map[uuid.UUID]bool),
		responses: make(map[[2]uuid.UUID]savedResponse),
	}
}

func (a *attemptLog) CreateAttempt(_ context.Context, name string) (uuid.UUID, error) {
	if strings.TrimSpace(name) == "" {
		return uuid.Nil, service.ErrStudentNameRequired
	}
	return uuid.New(), nil
}

func (a *attemptLog) SaveResponse(_ context.Context, attemptID, questionID uuid.UUID, audio []byte, duration int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := [2]uuid.UUID{attemptID, questionID}
	if _, dup := a.responses[key]; dup {
		return service.ErrResponseExists
	}
	a.responses[key] = savedResponse{audio: audio, duration: duration}
	return nil
}

func (a *attemptLog) FinishAttempt(_ context.Context, attemptID uuid.UUID) error {
	a.mu.Lock()
	a.finished[attemptID] = true
	a.mu.Unlock()
	return nil
}

func (a *attemptLog) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.responses)
}

// logins is an in-memory admin login registry.
type logins struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (l *logins) Remember(_ context.Context, key string, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.keys == nil {
		l.keys = make(map[string]bool)
	}
	l.keys[key] = true
	return nil
}

func (l *logins) Known(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keys[key], nil
}

func (l *logins) Forget(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
	return nil
}

// memStates keeps stored session snapshots in memory, standing in for Redis.
type memStates struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (m *memStates) SaveState(_ context.Context, attemptID string, payload []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[attemptID] = payload
	return nil
}

func (m *memStates) DropState(_ context.Context, attemptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, attemptID)
	return nil
}

func (m *memStates) LoadState(_ context.Context, attemptID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[attemptID], nil
}

func (m *memStates) ListStates(context.Context) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, 0, len(m.saved))
	for _, p := range m.saved {
		out = append(out, p)
	}
	return out, nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:      "test-secret",
		JWTExpiry:      time.Hour,
		BcryptCost:     4,
		MaxUploadBytes: 1 << 20,
	}
}

type examEnv struct {
	router   *gin.Engine
	sessions *service.SessionManager
	attempts *attemptLog
	states   *memStates
	auth     *service.AuthService
	ws       *WSHandler
}

func newExamEnv(t *testing.T) *examEnv {
	t.Helper()
	return newExamEnvOn(t, &memStates{})
}

// newExamEnvOn builds a fresh server over an existing snapshot store, the way
// a restarted process sees the Redis it left behind.
func newExamEnvOn(t *testing.T, states *memStates) *examEnv {
	t.Helper()
	cfg := testConfig()
	attempts := newAttemptLog()
	sessions := service.NewSessionManager(bank{}, attempts, states, time.Hour, zerolog.Nop())
	t.Cleanup(sessions.Shutdown)
	auth := service.NewAuthService(cfg, &logins{})

	exam := NewExamHandler(sessions, auth, cfg, zerolog.Nop())
	wsh := NewWSHandler(sessions, zerolog.Nop(), nil)
	wsh.interval = time.Hour

	r := gin.New()
	api := r.Group("/api/v1/exam")
	api.POST("/attempts", exam.StartAttempt)
	attempt := api.Group("/attempts/:id", middleware.RequireAttemptJWT(auth, "id"))
	attempt.GET("", exam.GetState)
	attempt.DELETE("", exam.ResetAttempt)
	attempt.POST("/advance", exam.Advance)
	attempt.POST("/finish", exam.FinishAttempt)
	attempt.POST("/responses", exam.RecordResponse)
	attempt.POST("/recording/start", exam.StartRecording)
	attempt.POST("/recording/stop", exam.StopRecording)
	attempt.POST("/timer/start", exam.StartTimer)
	attempt.POST("/timer/stop", exam.StopTimer)
	r.GET("/ws/v1/exam/attempts/:id/stream", middleware.RequireAttemptJWT(auth, "id"), wsh.ExamStream)

	return &examEnv{router: r, sessions: sessions, attempts: attempts, states: states, auth: auth, ws: wsh}
}

// envelope mirrors response.Response with a typed data field.
type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (e envelope[T]) code() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Code
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doAudio(t *testing.T, r http.Handler, path, token string, audio []byte, duration string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if audio != nil {
		fw, err := mw.CreateFormFile("audio", "answer.webm")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(audio)
	}
	if duration != "" {
		mw.WriteField("duration", duration)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}
