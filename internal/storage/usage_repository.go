package storage

import (
	"context"
	"fmt"

	"relaygate/internal/domain"
)

// UsageRepository persists usage_entries rows. It carries no billing-period
// or tenant columns — relaygate tracks usage for cost visibility only, not
// billing.
type UsageRepository struct {
	db *DB
}

func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) ExecInsertUsage(ctx context.Context, e domain.UsageEntry) error {
	query := `
		INSERT INTO usage_entries
			(timestamp, provider_id, model, prompt_tokens, completion_tokens, cached_tokens,
			 reasoning_tokens, cache_creation_tokens, connection_id, cost_usd, request_id, status_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.conn.ExecContext(ctx, query,
		e.Timestamp, e.ProviderID, e.Model,
		e.Tokens.Prompt, e.Tokens.Completion, e.Tokens.Cached, e.Tokens.Reasoning, e.Tokens.CacheCreation,
		e.ConnectionID, e.CostUSD, e.RequestID, e.StatusCode)
	if err != nil {
		return fmt.Errorf("storage: insert usage entry: %w", err)
	}
	return nil
}

func (r *UsageRepository) SelectAllUsage(ctx context.Context) ([]domain.UsageEntry, error) {
	query := `
		SELECT timestamp, provider_id, model, prompt_tokens, completion_tokens, cached_tokens,
		       reasoning_tokens, cache_creation_tokens, connection_id, cost_usd, request_id, status_code
		FROM usage_entries ORDER BY timestamp`
	rows, err := r.db.conn.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storage: list usage entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.UsageEntry
	for rows.Next() {
		var e domain.UsageEntry
		if err := rows.Scan(
			&e.Timestamp, &e.ProviderID, &e.Model,
			&e.Tokens.Prompt, &e.Tokens.Completion, &e.Tokens.Cached, &e.Tokens.Reasoning, &e.Tokens.CacheCreation,
			&e.ConnectionID, &e.CostUSD, &e.RequestID, &e.StatusCode,
		); err != nil {
			return nil, fmt.Errorf("storage: scan usage entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
