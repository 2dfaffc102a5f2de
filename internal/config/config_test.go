package config

import (
	"reflect"
	"testing"
	"time"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"blank", "  ,  ; ", nil},
		{"comma", "a, b,c", []string{"a", "b", "c"}},
		{"mixed separators", "123;456\n789", []string{"123", "456", "789"}},
		{"duplicates", "1,1, 2", []string{"1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitList(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("splitList(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("SESSION_IDLE_MINUTES", "")
	t.Setenv("STORAGE_DRIVER", "MINIO")
	t.Setenv("MINIO_USE_SSL", "not-a-bool")

	cfg := Load()
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.SessionIdleTTL != 90*time.Minute {
		t.Errorf("SessionIdleTTL = %v, want 90m", cfg.SessionIdleTTL)
	}
	if cfg.Storage.Driver != StorageDriverMinio {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, StorageDriverMinio)
	}
	if cfg.Storage.MinioUseSSL {
		t.Error("MinioUseSSL should fall back to false on an invalid value")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_UPLOAD_SIZE_MB", "2")
	t.Setenv("TELEGRAM_CHAT_IDS", "10,20")

	cfg := Load()
	if cfg.MaxUploadBytes != 2*1024*1024 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if !reflect.DeepEqual(cfg.Telegram.ChatIDs, []string{"10", "20"}) {
		t.Errorf("ChatIDs = %v", cfg.Telegram.ChatIDs)
	}
}
