package storage

import (
	"context"
	"database/sql"
	"fmt"

	"relaygate/internal/domain"
)

// ProviderRepository handles provider config database operations.
// relaygate's Provider has no credential material of its own — that lives
// on Connection — so there is nothing to encrypt here (see DESIGN.md for
// the dropped encryption helper).
type ProviderRepository struct {
	db *DB
}

func NewProviderRepository(db *DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) GetByID(ctx context.Context, id string) (*domain.Provider, error) {
	var p domain.Provider
	const query = `
		SELECT id, name, base_url, default_headers, oauth_token_url,
		       oauth_client_id, preferred_format
		FROM providers WHERE id = $1`
	if err := r.db.conn.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("storage: get provider: %w", err)
	}
	return &p, nil
}

func (r *ProviderRepository) List(ctx context.Context) ([]*domain.Provider, error) {
	const query = `
		SELECT id, name, base_url, default_headers, oauth_token_url,
		       oauth_client_id, preferred_format
		FROM providers ORDER BY name`
	var providers []*domain.Provider
	if err := r.db.conn.SelectContext(ctx, &providers, query); err != nil {
		return nil, fmt.Errorf("storage: list providers: %w", err)
	}
	return providers, nil
}

func (r *ProviderRepository) Upsert(ctx context.Context, p *domain.Provider) error {
	const query = `
		INSERT INTO providers (id, name, base_url, default_headers, oauth_token_url,
		                        oauth_client_id, preferred_format)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, base_url = EXCLUDED.base_url,
			default_headers = EXCLUDED.default_headers,
			oauth_token_url = EXCLUDED.oauth_token_url,
			oauth_client_id = EXCLUDED.oauth_client_id,
			preferred_format = EXCLUDED.preferred_format`
	_, err := r.db.conn.ExecContext(ctx, query, p.ID, p.Name, p.BaseURL, p.DefaultHeaders,
		p.OAuthTokenURL, p.OAuthClientID, p.PreferredFormat)
	if err != nil {
		return fmt.Errorf("storage: upsert provider: %w", err)
	}
	return nil
}

func (r *ProviderRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx, "DELETE FROM providers WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("storage: delete provider: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrProviderNotFound
	}
	return nil
}
