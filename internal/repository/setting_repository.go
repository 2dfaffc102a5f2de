package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSettingNotSet is returned for a setting that has no stored value.
var ErrSettingNotSet = errors.New("setting not set")

// SettingRepository keeps list-valued settings edited from the admin panel,
// such as the notification chats. Values are stored as JSON arrays in app_settings.
type SettingRepository struct {
	pool *pgxpool.Pool
}

func NewSettingRepository(pool *pgxpool.Pool) *SettingRepository {
	return &SettingRepository{pool: pool}
}

// List returns the stored list for key, or ErrSettingNotSet.
func (r *SettingRepository) List(ctx context.Context, key string) ([]string, error) {
	var raw string
	err := r.pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSettingNotSet
	}
	if err != nil {
		return nil, fmt.Errorf("read setting %s: %w", key, err)
	}
	return decodeList(raw)
}

// SaveList replaces the list for key. An empty list is stored as such.
func (r *SettingRepository) SaveList(ctx context.Context, key string, values []string) error {
	raw, err := encodeList(values)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, raw)
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// Clear removes key so readers fall back to their defaults. It reports
// whether a value was stored.
func (r *SettingRepository) Clear(ctx context.Context, key string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM app_settings WHERE key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("clear setting %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeList also accepts the comma-separated form written by older releases.
func decodeList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var values []string
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, fmt.Errorf("decode setting list: %w", err)
		}
		return values, nil
	}
	values := []string{}
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values, nil
}
