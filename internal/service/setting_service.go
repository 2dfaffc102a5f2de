package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/model"
	"github.com/stemsi/oralexam/internal/repository"
)

// settingStore is satisfied by repository.SettingRepository.
type settingStore interface {
	List(ctx context.Context, key string) ([]string, error)
	SaveList(ctx context.Context, key string, values []string) error
	Clear(ctx context.Context, key string) (bool, error)
}

// SettingService resolves runtime settings, preferring stored values over the environment.
type SettingService struct {
	settingRepo settingStore
	cfg         *config.Config
	log         zerolog.Logger
}

func NewSettingService(settingRepo settingStore, cfg *config.Config, log zerolog.Logger) *SettingService {
	return &SettingService{
		settingRepo: settingRepo,
		cfg:         cfg,
		log:         log.With().Str("component", "setting_service").Logger(),
	}
}

// NotifyChatIDs returns the chats receiving response notifications. A stored
// list overrides TELEGRAM_CHAT_IDS, even when it is empty.
func (s *SettingService) NotifyChatIDs(ctx context.Context) ([]string, error) {
	chats, err := s.settingRepo.List(ctx, model.SettingNotifyChatIDs)
	if errors.Is(err, repository.ErrSettingNotSet) {
		return s.cfg.Telegram.ChatIDs, nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read notify chats")
		return nil, err
	}
	return chats, nil
}

// UpdateNotifyChatIDs stores the chat list. A nil list restores the environment default.
func (s *SettingService) UpdateNotifyChatIDs(ctx context.Context, chatIDs []string) error {
	if chatIDs == nil {
		cleared, err := s.settingRepo.Clear(ctx, model.SettingNotifyChatIDs)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to clear notify chats")
			return err
		}
		if cleared {
			s.log.Info().Msg("Notify chats reset to environment default")
		}
		return nil
	}
	chats := config.SplitList(strings.Join(chatIDs, ","))
	if err := s.settingRepo.SaveList(ctx, model.SettingNotifyChatIDs, chats); err != nil {
		s.log.Error().Err(err).Msg("failed to update notify chats")
		return err
	}
	return nil
}

// NotificationsEnabled reports whether a bot token and at least one chat are configured.
func (s *SettingService) NotificationsEnabled(ctx context.Context) bool {
	if s.cfg.Telegram.BotToken == "" {
		return false
	}
	chats, err := s.NotifyChatIDs(ctx)
	return err == nil && len(chats) > 0
}
