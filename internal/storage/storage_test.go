package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"responses/2026-10-18/Ana/q1.webm", "responses/2026-10-18/Ana/q1.webm", false},
		{"media//a.png", "media/a.png", false},
		{"", "", true},
		{"/etc/passwd", "", true},
		{"media/../../secret", "", true},
		{`media\a.png`, "", true},
		{".", "", true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("CleanKey(%q) err = %v, wantErr %v", tt.key, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("CleanKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"Ana Maria":    "Ana_Maria",
		"a/b\\c:d":     "a_b_c_d",
		"  ":           "unnamed",
		"../etc":       "__etc",
		"Nguyễn Văn A": "Nguyễn_Văn_A",
	}
	for in, want := range tests {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewDiskStore(root)
	if err != nil {
		t.Fatal(err)
	}

	key := "responses/2026-10-18/Ana/q1.webm"
	if err := store.Put(ctx, key, strings.NewReader("audio"), 5, "audio/webm"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "responses", "2026-10-18", "Ana", "q1.webm")); err != nil {
		t.Fatalf("file not written: %v", err)
	}

	rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "audio" {
		t.Fatalf("Get = %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete = %v, want nil", err)
	}
}

func TestDiskStoreRejectsTraversal(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	err = store.Put(context.Background(), "../outside.webm", strings.NewReader("x"), 1, "audio/webm")
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Put = %v, want ErrInvalidKey", err)
	}
}
