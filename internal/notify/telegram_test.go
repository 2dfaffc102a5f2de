package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const getMeReply = `{"ok":true,"result":{"id":7,"is_bot":true,"first_name":"Examiner","username":"examiner_bot"}}`

// botServer answers getMe and hands every other call to handle.
func botServer(t *testing.T, handle http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			io.WriteString(w, getMeReply)
			return
		}
		handle(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server, token string) *TelegramClient {
	t.Helper()
	c, err := NewTelegramClient(srv.URL+"/", token)
	if err != nil {
		t.Fatalf("NewTelegramClient: %v", err)
	}
	return c
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"ééééé", 4, "é..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestNewTelegramClientChecksToken(t *testing.T) {
	srv := botServer(t, func(w http.ResponseWriter, r *http.Request) {})
	if got := newClient(t, srv, "TOKEN").BotName(); got != "examiner_bot" {
		t.Fatalf("BotName = %q", got)
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer bad.Close()
	if _, err := NewTelegramClient(bad.URL, "WRONG"); !errors.Is(err, ErrTelegram) {
		t.Fatalf("err = %v, want ErrTelegram", err)
	}
}

func TestSendMessage(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotChat, gotText string
	srv := botServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		mu.Unlock()
		io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	})

	c := newClient(t, srv, "TOKEN")
	if err := c.SendMessage(context.Background(), "42", "hello"); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/botTOKEN/sendMessage" || gotChat != "42" || gotText != "hello" {
		t.Fatalf("got path=%s chat=%s text=%s", gotPath, gotChat, gotText)
	}
}

func TestSendMessageToChannelUsername(t *testing.T) {
	var gotChat string
	srv := botServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotChat = r.PostForm.Get("chat_id")
		io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-100,"type":"channel"}}}`)
	})

	if err := newClient(t, srv, "T").SendMessage(context.Background(), "@examiners", "x"); err != nil {
		t.Fatal(err)
	}
	if gotChat != "@examiners" {
		t.Fatalf("chat_id = %q", gotChat)
	}
}

func TestSendDocumentMultipart(t *testing.T) {
	var gotCaption, gotName, gotBody string
	srv := botServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotCaption = r.FormValue("caption")
		f, h, err := r.FormFile("document")
		if err == nil {
			gotName = h.Filename
			b, _ := io.ReadAll(f)
			gotBody = string(b)
		}
		io.WriteString(w, `{"ok":true,"result":{"message_id":2,"date":0,"chat":{"id":1,"type":"private"}}}`)
	})

	c := newClient(t, srv, "T")
	err := c.SendDocument(context.Background(), "1", "q1.webm", strings.NewReader("audio"), "Part 2")
	if err != nil {
		t.Fatal(err)
	}
	if gotCaption != "Part 2" || gotName != "q1.webm" || gotBody != "audio" {
		t.Fatalf("caption=%q name=%q body=%q", gotCaption, gotName, gotBody)
	}
}

func TestAPIErrors(t *testing.T) {
	srv := botServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	})

	err := newClient(t, srv, "T").SendMessage(context.Background(), "1", "x")
	if !errors.Is(err, ErrTelegram) || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v, want ErrTelegram containing %q", err, "chat not found")
	}
}

func TestCancelledContextSkipsRequest(t *testing.T) {
	calls := 0
	srv := botServer(t, func(w http.ResponseWriter, r *http.Request) { calls++ })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newClient(t, srv, "T").SendMessage(ctx, "1", "x")
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
