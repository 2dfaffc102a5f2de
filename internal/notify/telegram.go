// Package notify delivers saved responses to examiners over the Telegram Bot API.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram limits.
const (
	MaxMessageChars = 4096
	MaxCaptionChars = 1024
)

// ErrTelegram is wrapped around every failed Bot API call.
var ErrTelegram = errors.New("telegram request failed")

// TelegramClient adapts tgbotapi to the worker's Sender interface. The bot
// only sends; it never polls for updates.
type TelegramClient struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramClient creates a client for the bot token against apiBase
// (e.g. https://api.telegram.org). The token is checked with getMe.
func NewTelegramClient(apiBase, token string) (*TelegramClient, error) {
	endpoint := strings.TrimRight(apiBase, "/") + "/bot%s/%s"
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: 60 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: getMe: %w", ErrTelegram, err)
	}
	return &TelegramClient{bot: bot}, nil
}

// BotName returns the username reported by getMe.
func (c *TelegramClient) BotName() string {
	return c.bot.Self.UserName
}

// SendMessage posts a text message.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID, text string) error {
	msg := tgbotapi.MessageConfig{Text: Truncate(text, MaxMessageChars)}
	msg.BaseChat = baseChat(chatID)
	return c.request(ctx, "sendMessage", msg)
}

// SendPhoto uploads an image with an optional caption.
func (c *TelegramClient) SendPhoto(ctx context.Context, chatID, filename string, r io.Reader, caption string) error {
	photo := tgbotapi.PhotoConfig{Caption: captionText(caption)}
	photo.BaseFile = tgbotapi.BaseFile{
		BaseChat: baseChat(chatID),
		File:     tgbotapi.FileReader{Name: filename, Reader: r},
	}
	return c.request(ctx, "sendPhoto", photo)
}

// SendDocument uploads a file with an optional caption.
func (c *TelegramClient) SendDocument(ctx context.Context, chatID, filename string, r io.Reader, caption string) error {
	doc := tgbotapi.DocumentConfig{Caption: captionText(caption)}
	doc.BaseFile = tgbotapi.BaseFile{
		BaseChat: baseChat(chatID),
		File:     tgbotapi.FileReader{Name: filename, Reader: r},
	}
	return c.request(ctx, "sendDocument", doc)
}

// request runs one call. tgbotapi takes no context, so ctx is only checked
// before sending; the HTTP client timeout bounds the call itself.
func (c *TelegramClient) request(ctx context.Context, method string, chattable tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTelegram, method, err)
	}
	if _, err := c.bot.Request(chattable); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTelegram, method, err)
	}
	return nil
}

// baseChat addresses numeric chat ids directly and anything else as a
// channel username such as "@examiners".
func baseChat(chatID string) tgbotapi.BaseChat {
	chatID = strings.TrimSpace(chatID)
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return tgbotapi.BaseChat{ChatID: id}
	}
	return tgbotapi.BaseChat{ChannelUsername: chatID}
}

func captionText(caption string) string {
	if strings.TrimSpace(caption) == "" {
		return ""
	}
	return Truncate(caption, MaxCaptionChars)
}

// Truncate shortens s to at most max runes, ending with "..." when cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
