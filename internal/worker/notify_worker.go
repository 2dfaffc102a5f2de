package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/examsession"
	"github.com/stemsi/oralexam/internal/metrics"
	"github.com/stemsi/oralexam/internal/model"
	"github.com/stemsi/oralexam/internal/storage"
)

const (
	NotifyPollTimeout  = 1 * time.Second
	NotifyRetryDelay   = 30 * time.Second
	NotifyMaxRetries   = 1
	NotifyDrainTimeout = 15 * time.Second
	NotifyDeferPause   = 250 * time.Millisecond
)

// Sender is satisfied by notify.TelegramClient.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) error
	SendPhoto(ctx context.Context, chatID, filename string, r io.Reader, caption string) error
	SendDocument(ctx context.Context, chatID, filename string, r io.Reader, caption string) error
}

// recordingSource is satisfied by service.AttemptService.
type recordingSource interface {
	GetRecording(ctx context.Context, responseID uuid.UUID) (*model.Recording, error)
	OpenAudio(ctx context.Context, responseID uuid.UUID) (io.ReadCloser, *model.Recording, error)
}

// chatDirectory is satisfied by service.SettingService.
type chatDirectory interface {
	NotifyChatIDs(ctx context.Context) ([]string, error)
}

// NotifyWorker consumes notify_responses_queue and forwards each saved
// response to every configured chat.
type NotifyWorker struct {
	rdb        *redis.Client
	recordings recordingSource
	chats      chatDirectory
	media      storage.BlobStore
	sender     Sender
	requeue    func(ctx context.Context, payload []byte) error
	now        func() time.Time
	log        zerolog.Logger
}

// NewNotifyWorker creates a new NotifyWorker.
func NewNotifyWorker(rdb *redis.Client, recordings recordingSource, chats chatDirectory, media storage.BlobStore, sender Sender, log zerolog.Logger) *NotifyWorker {
	w := &NotifyWorker{
		rdb:        rdb,
		recordings: recordings,
		chats:      chats,
		media:      media,
		sender:     sender,
		now:        time.Now,
		log:        log.With().Str("component", "notify_worker").Logger(),
	}
	w.requeue = func(ctx context.Context, payload []byte) error {
		return w.rdb.RPush(ctx, config.WorkerKey.NotifyResponsesQueue, payload).Err()
	}
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			drainCtx, cancel := context.WithTimeout(context.Background(), NotifyDrainTimeout)
			w.drain(drainCtx)
			cancel()
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *NotifyWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, NotifyPollTimeout, config.WorkerKey.NotifyResponsesQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}
	if w.Handle(ctx, []byte(result[1])) {
		// Pause so a lone pending retry is not popped in a tight loop.
		select {
		case <-ctx.Done():
		case <-time.After(NotifyDeferPause):
		}
	}
}

// drain delivers jobs that are already due. Jobs still waiting for a retry are
// pushed back for the next run.
func (w *NotifyWorker) drain(ctx context.Context) {
	n, err := w.rdb.LLen(ctx, config.WorkerKey.NotifyResponsesQueue).Result()
	if err != nil || n == 0 {
		return
	}
	w.log.Info().Int64("pending", n).Msg("Draining notifications")

	for i := int64(0); i < n && ctx.Err() == nil; i++ {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.NotifyResponsesQueue).Result()
		if err != nil {
			return
		}
		w.Handle(ctx, []byte(raw))
	}
}

// Handle processes one raw job. A job whose retry time has not come yet is
// pushed back to the tail of the queue and reported as deferred. Delivery
// failures are re-queued once.
func (w *NotifyWorker) Handle(ctx context.Context, raw []byte) (deferred bool) {
	var job model.NotifyJob
	if err := json.Unmarshal(raw, &job); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return false
	}

	if job.RetryAt > w.now().Unix() {
		if err := w.requeue(context.WithoutCancel(ctx), raw); err != nil {
			metrics.Notifications.WithLabelValues("failed").Inc()
			w.log.Error().Err(err).Str("response_id", job.ResponseID.String()).Msg("Requeue of pending retry failed")
		}
		return true
	}

	if err := w.deliver(ctx, job.ResponseID); err != nil {
		w.retry(ctx, job, err)
		return false
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	return false
}

func (w *NotifyWorker) retry(ctx context.Context, job model.NotifyJob, cause error) {
	l := w.log.With().Str("response_id", job.ResponseID.String()).Int("retries", job.Retries).Logger()
	if job.Retries >= NotifyMaxRetries {
		metrics.Notifications.WithLabelValues("failed").Inc()
		l.Error().Err(cause).Msg("Notification dropped")
		return
	}

	job.Retries++
	job.RetryAt = w.now().Add(NotifyRetryDelay).Unix()
	raw, _ := json.Marshal(job)
	if err := w.requeue(context.WithoutCancel(ctx), raw); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		l.Error().Err(err).Msg("Requeue failed")
		return
	}
	metrics.Notifications.WithLabelValues("requeued").Inc()
	l.Warn().Err(cause).Msg("Notification failed, requeued")
}

// deliver sends the summary, the prompt image and the recording to every chat.
// It fails if any chat could not be reached.
func (w *NotifyWorker) deliver(ctx context.Context, responseID uuid.UUID) error {
	chats, err := w.chats.NotifyChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("load chats: %w", err)
	}
	if len(chats) == 0 {
		return nil
	}

	rec, err := w.recordings.GetRecording(ctx, responseID)
	if err != nil {
		return fmt.Errorf("load recording: %w", err)
	}

	var failed []string
	for _, chatID := range chats {
		if err := w.sendTo(ctx, chatID, rec); err != nil {
			w.log.Warn().Err(err).Str("chat_id", chatID).Str("response_id", responseID.String()).Msg("Delivery failed")
			failed = append(failed, chatID)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("delivery failed for %d of %d chats", len(failed), len(chats))
	}
	return nil
}

func (w *NotifyWorker) sendTo(ctx context.Context, chatID string, rec *model.Recording) error {
	label := examsession.PartLabel(rec.Part, rec.SubPart)

	if err := w.sender.SendMessage(ctx, chatID, SummaryText(rec)); err != nil {
		return err
	}

	if rec.ImagePath != "" && w.media != nil {
		img, err := w.media.Get(ctx, rec.ImagePath)
		switch {
		case err == nil:
			caption := fmt.Sprintf("Prompt image for %s (Question %s)", label, rec.QuestionID)
			err = w.sender.SendPhoto(ctx, chatID, path.Base(rec.ImagePath), img, caption)
			img.Close()
			if err != nil {
				return err
			}
		case errors.Is(err, storage.ErrNotFound):
			w.log.Warn().Str("image_path", rec.ImagePath).Msg("Prompt image missing")
		default:
			return err
		}
	}

	audio, _, err := w.recordings.OpenAudio(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer audio.Close()

	caption := fmt.Sprintf("Answer recording | %s | Question %s | Student %s", label, rec.QuestionID, rec.StudentName)
	return w.sender.SendDocument(ctx, chatID, path.Base(rec.AudioPath), audio, caption)
}

// SummaryText is the text message announcing a new response.
func SummaryText(rec *model.Recording) string {
	question := strings.TrimSpace(rec.QuestionText)
	if question == "" {
		question = "(No question text provided)"
	}
	return fmt.Sprintf("New speaking response\nStudent: %s\nSection: %s\nQuestion ID: %s\nQuestion: %s\nDuration: %ds",
		rec.StudentName, examsession.PartLabel(rec.Part, rec.SubPart), rec.QuestionID, question, rec.Duration)
}
