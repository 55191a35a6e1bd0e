package storage

import (
	"context"
	"database/sql"
	"fmt"

	"relaygate/internal/domain"
)

// SettingsRepository handles the single-row operator settings table.
type SettingsRepository struct {
	db *DB
}

func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	var s domain.Settings
	query := `SELECT id, password_hash, cloud_url, enable_request_logs, updated_at FROM settings WHERE id = 1`
	if err := r.db.conn.GetContext(ctx, &s, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("storage: get settings: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, s *domain.Settings) error {
	query := `
		INSERT INTO settings (id, password_hash, cloud_url, enable_request_logs)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			password_hash = EXCLUDED.password_hash, cloud_url = EXCLUDED.cloud_url,
			enable_request_logs = EXCLUDED.enable_request_logs, updated_at = now()
		RETURNING updated_at`
	if err := r.db.conn.QueryRowxContext(ctx, query, s.PasswordHash, s.CloudURL, s.EnableRequestLogs).
		Scan(&s.UpdatedAt); err != nil {
		return fmt.Errorf("storage: upsert settings: %w", err)
	}
	return nil
}
