package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/storage"
)

// Sentinel errors for media uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrMediaNotFound       = errors.New("media not found")
)

const mediaPrefix = "media/"

// Allowed prompt audio and image MIME types.
var allowedMIMETypes = map[string]string{
	"audio/webm": ".webm",
	"audio/mpeg": ".mp3",
	"audio/wav":  ".wav",
	"audio/ogg":  ".ogg",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// MediaService stores question prompt audio and images in the blob store.
type MediaService struct {
	cfg   *config.Config
	blobs storage.BlobStore
}

// NewMediaService creates a new MediaService.
func NewMediaService(cfg *config.Config, blobs storage.BlobStore) *MediaService {
	return &MediaService{cfg: cfg, blobs: blobs}
}

// MaxUploadBytes is the largest accepted upload.
func (s *MediaService) MaxUploadBytes() int64 {
	return s.cfg.MaxUploadBytes
}

// SaveUpload stores an uploaded file under a UUID key and returns the key.
func (s *MediaService) SaveUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	ext, ok := allowedMIMETypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, contentType, strings.Join(allowedTypes(), ", "))
	}

	if header.Size > s.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.cfg.MaxUploadBytes)
	}

	key := mediaPrefix + uuid.New().String() + ext
	if err := s.blobs.Put(ctx, key, file, header.Size, contentType); err != nil {
		return "", fmt.Errorf("store media: %w", err)
	}
	return key, nil
}

// Open returns a reader for a media key and its content type. Only keys under
// the media prefix are served.
func (s *MediaService) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	cleaned, err := storage.CleanKey(strings.TrimPrefix(key, "/"))
	if err != nil || !strings.HasPrefix(cleaned, mediaPrefix) {
		return nil, "", ErrMediaNotFound
	}
	rc, err := s.blobs.Get(ctx, cleaned)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", ErrMediaNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return rc, contentTypeFor(cleaned), nil
}

func contentTypeFor(key string) string {
	ext := path.Ext(key)
	for t, e := range allowedMIMETypes {
		if e == ext {
			return t
		}
	}
	return "application/octet-stream"
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
