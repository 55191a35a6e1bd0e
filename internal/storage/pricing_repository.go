package storage

import (
	"context"
	"database/sql"
	"fmt"

	"relaygate/internal/domain"
)

// PricingRepository handles pricing-table database operations. A miss is
// never fatal — Get reports it as (nil, false, nil) and usage.CostOf
// prices a nil entry at 0 — so this repository does not wrap sql.ErrNoRows in a
// package-local sentinel that callers would be tempted to treat as an
// error path.
type PricingRepository struct {
	db *DB
}

func NewPricingRepository(db *DB) *PricingRepository {
	return &PricingRepository{db: db}
}

func (r *PricingRepository) Get(ctx context.Context, providerID, model string) (*domain.PricingEntry, bool, error) {
	var p domain.PricingEntry
	query := `
		SELECT provider_id, model, input, output, cached, reasoning, cache_creation, updated_at
		FROM pricing_entries WHERE provider_id = $1 AND model = $2`
	if err := r.db.conn.GetContext(ctx, &p, query, providerID, model); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("storage: get pricing entry: %w", err)
	}
	return &p, true, nil
}

// All loads the full pricing table into memory. Pricing and alias tables
// are read-only during a request; callers snapshot them on request entry
// to avoid read-tearing across an attempt's retries.
func (r *PricingRepository) All(ctx context.Context) ([]*domain.PricingEntry, error) {
	query := `SELECT provider_id, model, input, output, cached, reasoning, cache_creation, updated_at FROM pricing_entries`
	var entries []*domain.PricingEntry
	if err := r.db.conn.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("storage: list pricing entries: %w", err)
	}
	return entries, nil
}

func (r *PricingRepository) Upsert(ctx context.Context, p *domain.PricingEntry) error {
	query := `
		INSERT INTO pricing_entries (provider_id, model, input, output, cached, reasoning, cache_creation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider_id, model) DO UPDATE SET
			input = EXCLUDED.input, output = EXCLUDED.output, cached = EXCLUDED.cached,
			reasoning = EXCLUDED.reasoning, cache_creation = EXCLUDED.cache_creation,
			updated_at = now()
		RETURNING updated_at`
	err := r.db.conn.QueryRowxContext(ctx, query, p.ProviderID, p.Model, p.Input, p.Output,
		p.Cached, p.Reasoning, p.CacheCreation).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storage: upsert pricing entry: %w", err)
	}
	return nil
}

func (r *PricingRepository) Delete(ctx context.Context, providerID, model string) error {
	result, err := r.db.conn.ExecContext(ctx,
		"DELETE FROM pricing_entries WHERE provider_id = $1 AND model = $2", providerID, model)
	if err != nil {
		return fmt.Errorf("storage: delete pricing entry: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrPricingNotFound
	}
	return nil
}
