package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/model"
)

type attemptFixture struct {
	attempts  *fakeAttemptRepo
	responses *fakeResponseRepo
	blobs     *memBlobs
	queue     *fakeQueue
	svc       *AttemptService
}

func newAttemptFixture(notify bool) *attemptFixture {
	f := &attemptFixture{
		attempts:  newFakeAttemptRepo(),
		responses: newFakeResponseRepo(),
		blobs:     newMemBlobs(),
		queue:     &fakeQueue{},
	}
	f.svc = NewAttemptService(f.attempts, f.responses, f.blobs, f.queue, staticGate(notify), zerolog.Nop())
	f.svc.now = func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) }
	return f
}

func TestCreateAttemptTrimsName(t *testing.T) {
	f := newAttemptFixture(false)
	id, err := f.svc.CreateAttempt(context.Background(), "  Ana Lee ")
	if err != nil {
		t.Fatal(err)
	}
	if got := f.attempts.attempts[id].StudentName; got != "Ana Lee" {
		t.Fatalf("StudentName = %q", got)
	}
	if _, err := f.svc.CreateAttempt(context.Background(), "   "); !errors.Is(err, ErrStudentNameRequired) {
		t.Fatalf("err = %v, want ErrStudentNameRequired", err)
	}
}

func TestSaveResponseStoresAudioAndQueuesNotification(t *testing.T) {
	f := newAttemptFixture(true)
	ctx := context.Background()
	attemptID, _ := f.svc.CreateAttempt(ctx, "Ana Lee")
	questionID := uuid.New()

	if err := f.svc.SaveResponse(ctx, attemptID, questionID, []byte("webm"), 12); err != nil {
		t.Fatal(err)
	}

	wantKey := "responses/2026-03-09/Ana_Lee/q" + questionID.String() + ".webm"
	if string(f.blobs.objects[wantKey]) != "webm" {
		t.Fatalf("audio not stored at %s: %v", wantKey, f.blobs.objects)
	}
	if len(f.responses.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(f.responses.rows))
	}
	if n := f.queue.count(config.WorkerKey.NotifyResponsesQueue); n != 1 {
		t.Fatalf("queued %d jobs, want 1", n)
	}
	var job model.NotifyJob
	if err := json.Unmarshal(f.queue.jobs[config.WorkerKey.NotifyResponsesQueue][0], &job); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.responses.rows[job.ResponseID]; !ok {
		t.Errorf("job references unknown response %s", job.ResponseID)
	}
}

func TestSaveResponseDuplicate(t *testing.T) {
	f := newAttemptFixture(false)
	ctx := context.Background()
	attemptID, _ := f.svc.CreateAttempt(ctx, "Ana")
	questionID := uuid.New()

	if err := f.svc.SaveResponse(ctx, attemptID, questionID, []byte("first"), 5); err != nil {
		t.Fatal(err)
	}
	err := f.svc.SaveResponse(ctx, attemptID, questionID, []byte("second"), 5)
	if !errors.Is(err, ErrResponseExists) {
		t.Fatalf("err = %v, want ErrResponseExists", err)
	}
	key := ResponseKey(f.svc.now(), "Ana", questionID)
	if string(f.blobs.objects[key]) != "first" {
		t.Fatal("duplicate must not overwrite the stored audio")
	}
	if len(f.blobs.deleted) != 0 {
		t.Fatal("duplicate must not delete the stored audio")
	}
}

func TestSaveResponseUploadFailureLeavesNoRow(t *testing.T) {
	f := newAttemptFixture(true)
	ctx := context.Background()
	attemptID, _ := f.svc.CreateAttempt(ctx, "Ana")
	f.blobs.putErr = errBoom

	err := f.svc.SaveResponse(ctx, attemptID, uuid.New(), []byte("x"), 5)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want errBoom", err)
	}
	if len(f.responses.rows) != 0 {
		t.Fatal("row committed despite upload failure")
	}
	if f.queue.count(config.WorkerKey.NotifyResponsesQueue) != 0 {
		t.Fatal("failed save must not notify")
	}
}

func TestSaveResponseCommitFailureRemovesAudio(t *testing.T) {
	f := newAttemptFixture(false)
	ctx := context.Background()
	attemptID, _ := f.svc.CreateAttempt(ctx, "Ana")
	f.responses.commitErr = errBoom

	questionID := uuid.New()
	if err := f.svc.SaveResponse(ctx, attemptID, questionID, []byte("x"), 5); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want errBoom", err)
	}
	key := ResponseKey(f.svc.now(), "Ana", questionID)
	if _, ok := f.blobs.objects[key]; ok {
		t.Fatal("orphan audio left behind")
	}
}

func TestSaveResponseRejections(t *testing.T) {
	f := newAttemptFixture(false)
	ctx := context.Background()

	if err := f.svc.SaveResponse(ctx, uuid.New(), uuid.New(), []byte("x"), 1); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("unknown attempt: err = %v", err)
	}

	attemptID, _ := f.svc.CreateAttempt(ctx, "Ana")
	if err := f.svc.SaveResponse(ctx, attemptID, uuid.New(), nil, 1); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("empty audio: err = %v", err)
	}

	if err := f.svc.FinishAttempt(ctx, attemptID); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.SaveResponse(ctx, attemptID, uuid.New(), []byte("x"), 1); !errors.Is(err, ErrAttemptFinished) {
		t.Errorf("finished attempt: err = %v", err)
	}
}

func TestSaveResponseNotificationsDisabled(t *testing.T) {
	f := newAttemptFixture(false)
	ctx := context.Background()
	attemptID, _ := f.svc.CreateAttempt(ctx, "Ana")
	if err := f.svc.SaveResponse(ctx, attemptID, uuid.New(), []byte("x"), 1); err != nil {
		t.Fatal(err)
	}
	if f.queue.count(config.WorkerKey.NotifyResponsesQueue) != 0 {
		t.Fatal("queued a job with notifications disabled")
	}
}

func TestSaveResponseQueueFailureIsNotSurfaced(t *testing.T) {
	f := newAttemptFixture(true)
	f.queue.err = errBoom
	ctx := context.Background()
	attemptID, _ := f.svc.CreateAttempt(ctx, "Ana")
	if err := f.svc.SaveResponse(ctx, attemptID, uuid.New(), []byte("x"), 1); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}

func TestFinishAttemptUnknown(t *testing.T) {
	f := newAttemptFixture(false)
	if err := f.svc.FinishAttempt(context.Background(), uuid.New()); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("err = %v, want ErrAttemptNotFound", err)
	}
}

func TestDeleteAttemptRemovesAudio(t *testing.T) {
	f := newAttemptFixture(false)
	ctx := context.Background()
	attemptID, _ := f.svc.CreateAttempt(ctx, "Ana")
	f.attempts.audio[attemptID] = []string{"responses/a.webm", "responses/b.webm"}

	if err := f.svc.DeleteAttempt(ctx, attemptID); err != nil {
		t.Fatal(err)
	}
	if len(f.blobs.deleted) != 2 {
		t.Fatalf("deleted %v, want 2 keys", f.blobs.deleted)
	}
	if err := f.svc.DeleteAttempt(ctx, attemptID); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("second delete: err = %v", err)
	}
}

func TestOpenAudioAndDeleteResponse(t *testing.T) {
	f := newAttemptFixture(false)
	ctx := context.Background()
	attemptID, _ := f.svc.CreateAttempt(ctx, "Ana")
	if err := f.svc.SaveResponse(ctx, attemptID, uuid.New(), []byte("voice"), 3); err != nil {
		t.Fatal(err)
	}
	var responseID uuid.UUID
	for id := range f.responses.rows {
		responseID = id
	}

	rc, rec, err := f.svc.OpenAudio(ctx, responseID)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "voice" || rec.Duration != 3 {
		t.Fatalf("got %q duration %d", data, rec.Duration)
	}

	if err := f.svc.DeleteResponse(ctx, responseID); err != nil {
		t.Fatal(err)
	}
	if len(f.blobs.objects) != 0 {
		t.Fatal("audio not deleted with the response")
	}
	if _, _, err := f.svc.OpenAudio(ctx, responseID); !errors.Is(err, ErrResponseNotFound) {
		t.Fatalf("err = %v, want ErrResponseNotFound", err)
	}
}

func TestRateResponse(t *testing.T) {
	f := newAttemptFixture(false)
	ctx := context.Background()
	attemptID, _ := f.svc.CreateAttempt(ctx, "Ana")
	_ = f.svc.SaveResponse(ctx, attemptID, uuid.New(), []byte("voice"), 3)
	var responseID uuid.UUID
	for id := range f.responses.rows {
		responseID = id
	}

	req := &model.RateResponseRequest{Fluency: 6, Lexical: 7, Grammar: 5, Pronunciation: 6, Comment: "  clear  "}
	rating, err := f.svc.RateResponse(ctx, responseID, req)
	if err != nil {
		t.Fatal(err)
	}
	if rating.Comment != "clear" {
		t.Errorf("Comment = %q", rating.Comment)
	}
	rec, _ := f.svc.GetRecording(ctx, responseID)
	if rec.Rating == nil || rec.Rating.Lexical != 7 {
		t.Fatalf("rating not stored: %+v", rec.Rating)
	}

	if _, err := f.svc.RateResponse(ctx, uuid.New(), req); !errors.Is(err, ErrResponseNotFound) {
		t.Fatalf("err = %v, want ErrResponseNotFound", err)
	}
}

func TestResponseKey(t *testing.T) {
	id := uuid.MustParse("7f1c6c1e-8a55-4a57-bb2c-2f0a1d6f9e10")
	at := time.Date(2026, 1, 2, 23, 59, 0, 0, time.UTC)
	got := ResponseKey(at, "../Jo: Smith", id)
	want := "responses/2026-01-02/__Jo__Smith/q7f1c6c1e-8a55-4a57-bb2c-2f0a1d6f9e10.webm"
	if got != want {
		t.Fatalf("ResponseKey = %q, want %q", got, want)
	}
	if strings.Contains(got, "..") {
		t.Fatal("key escapes its directory")
	}
}
