package storage

import (
	"context"
	"database/sql"
	"fmt"

	"relaygate/internal/domain"
)

// AliasRepository handles model-alias database operations. GetByAlias is
// the hot path (consulted on every request), so it reads through DB's
// aliasCache.
type AliasRepository struct {
	db *DB
}

func NewAliasRepository(db *DB) *AliasRepository {
	return &AliasRepository{db: db}
}

const aliasColumns = `id, alias, provider_id, model, enabled, created_at, updated_at`

func (r *AliasRepository) GetByAlias(ctx context.Context, alias string) (*domain.ModelAlias, error) {
	cacheKey := "alias:" + alias
	if v, ok := r.db.aliasCache.Get(cacheKey); ok {
		a := v.(domain.ModelAlias)
		return &a, nil
	}

	var a domain.ModelAlias
	query := `SELECT ` + aliasColumns + ` FROM model_aliases WHERE alias = $1 AND enabled`
	if err := r.db.conn.GetContext(ctx, &a, query, alias); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAliasNotFound
		}
		return nil, fmt.Errorf("storage: get alias: %w", err)
	}
	r.db.aliasCache.Set(cacheKey, a)
	return &a, nil
}

func (r *AliasRepository) List(ctx context.Context) ([]*domain.ModelAlias, error) {
	query := `SELECT ` + aliasColumns + ` FROM model_aliases ORDER BY alias`
	var aliases []*domain.ModelAlias
	if err := r.db.conn.SelectContext(ctx, &aliases, query); err != nil {
		return nil, fmt.Errorf("storage: list aliases: %w", err)
	}
	return aliases, nil
}

func (r *AliasRepository) Upsert(ctx context.Context, a *domain.ModelAlias) error {
	query := `
		INSERT INTO model_aliases (id, alias, provider_id, model, enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (alias) DO UPDATE SET
			provider_id = EXCLUDED.provider_id, model = EXCLUDED.model, enabled = EXCLUDED.enabled
		RETURNING id, created_at, updated_at`
	err := r.db.conn.QueryRowxContext(ctx, query, a.ID, a.Alias, a.ProviderID, a.Model, a.Enabled).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storage: upsert alias: %w", err)
	}
	r.db.aliasCache.Delete("alias:" + a.Alias)
	return nil
}

func (r *AliasRepository) Delete(ctx context.Context, alias string) error {
	result, err := r.db.conn.ExecContext(ctx, "DELETE FROM model_aliases WHERE alias = $1", alias)
	if err != nil {
		return fmt.Errorf("storage: delete alias: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrAliasNotFound
	}
	r.db.aliasCache.Delete("alias:" + alias)
	return nil
}
