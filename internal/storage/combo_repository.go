package storage

import (
	"context"
	"database/sql"
	"fmt"

	"relaygate/internal/domain"
)

// ComboRepository handles combo (ordered model-fallback-chain) database
// operations. Combos are read-mostly config; no separate cache layer is
// worth the complexity at the expected cardinality.
type ComboRepository struct {
	db *DB
}

func NewComboRepository(db *DB) *ComboRepository {
	return &ComboRepository{db: db}
}

func (r *ComboRepository) GetByName(ctx context.Context, name string) (*domain.Combo, error) {
	var c domain.Combo
	query := `SELECT id, name, models, created_at, updated_at FROM combos WHERE name = $1`
	if err := r.db.conn.GetContext(ctx, &c, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrComboNotFound
		}
		return nil, fmt.Errorf("storage: get combo: %w", err)
	}
	return &c, nil
}

func (r *ComboRepository) List(ctx context.Context) ([]*domain.Combo, error) {
	query := `SELECT id, name, models, created_at, updated_at FROM combos ORDER BY name`
	var combos []*domain.Combo
	if err := r.db.conn.SelectContext(ctx, &combos, query); err != nil {
		return nil, fmt.Errorf("storage: list combos: %w", err)
	}
	return combos, nil
}

func (r *ComboRepository) Upsert(ctx context.Context, c *domain.Combo) error {
	query := `
		INSERT INTO combos (id, name, models)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET models = EXCLUDED.models
		RETURNING id, created_at, updated_at`
	err := r.db.conn.QueryRowxContext(ctx, query, c.ID, c.Name, c.Models).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storage: upsert combo: %w", err)
	}
	return nil
}

func (r *ComboRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.conn.ExecContext(ctx, "DELETE FROM combos WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("storage: delete combo: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrComboNotFound
	}
	return nil
}
