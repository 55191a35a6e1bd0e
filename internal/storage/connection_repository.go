package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"relaygate/internal/domain"
)

// ConnectionRepository handles connection (account/credential) database
// operations. Reads go through DB's connectionCache first; writes go
// straight to Postgres and then invalidate the cache entry, matching the
// teacher's read-through/write-invalidate pattern.
type ConnectionRepository struct {
	db *DB
}

func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `
	id, provider_id, auth_type, display_name, priority, global_priority,
	default_model, secrets, test_status, last_error, last_error_at,
	cooldown_until, is_active, consecutive_failed, created_at, updated_at`

func (r *ConnectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Connection, error) {
	cacheKey := "conn:" + id.String()
	if v, ok := r.db.connectionCache.Get(cacheKey); ok {
		c := v.(domain.Connection)
		return &c, nil
	}

	var c domain.Connection
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	if err := r.db.conn.GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("storage: get connection: %w", err)
	}
	decodeSecrets(&c)
	r.db.connectionCache.Set(cacheKey, c)
	return &c, nil
}

// ListByProvider returns every connection for a provider, ordered the way
// the selector wants them: global priority, then provider priority, then
// creation order. Callers still re-check eligibility; this just fixes the
// deterministic base order.
func (r *ConnectionRepository) ListByProvider(ctx context.Context, providerID string) ([]*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections
	          WHERE provider_id = $1
	          ORDER BY global_priority ASC NULLS LAST, priority ASC, created_at ASC`
	var conns []*domain.Connection
	if err := r.db.conn.SelectContext(ctx, &conns, query, providerID); err != nil {
		return nil, fmt.Errorf("storage: list connections: %w", err)
	}
	for _, c := range conns {
		decodeSecrets(c)
	}
	return conns, nil
}

func (r *ConnectionRepository) ListAll(ctx context.Context) ([]*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections ORDER BY provider_id, priority ASC`
	var conns []*domain.Connection
	if err := r.db.conn.SelectContext(ctx, &conns, query); err != nil {
		return nil, fmt.Errorf("storage: list connections: %w", err)
	}
	for _, c := range conns {
		decodeSecrets(c)
	}
	return conns, nil
}

func (r *ConnectionRepository) Create(ctx context.Context, c *domain.Connection) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.EncodedSecrets = secretsToJSONB(c.Secrets)
	query := `
		INSERT INTO connections (id, provider_id, auth_type, display_name, priority,
		                          global_priority, default_model, secrets, test_status,
		                          is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`
	err := r.db.conn.QueryRowxContext(ctx, query,
		c.ID, c.ProviderID, c.AuthType, c.DisplayName, c.Priority, c.GlobalPriority,
		c.DefaultModel, c.EncodedSecrets, c.TestStatus, c.IsActive,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storage: create connection: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) Update(ctx context.Context, c *domain.Connection) error {
	c.EncodedSecrets = secretsToJSONB(c.Secrets)
	query := `
		UPDATE connections SET
			display_name = $2, priority = $3, global_priority = $4, default_model = $5,
			secrets = $6, is_active = $7
		WHERE id = $1
		RETURNING updated_at`
	err := r.db.conn.QueryRowxContext(ctx, query,
		c.ID, c.DisplayName, c.Priority, c.GlobalPriority, c.DefaultModel,
		c.EncodedSecrets, c.IsActive,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrConnectionNotFound
		}
		return fmt.Errorf("storage: update connection: %w", err)
	}
	r.db.connectionCache.Delete("conn:" + c.ID.String())
	return nil
}

// UpdateSecrets persists refreshed OAuth tokens without touching any other
// field — the narrow write path the credential selector's refresh callback
// uses, kept separate from Update so a concurrent config-surface edit can't
// clobber a refresh (and vice versa).
func (r *ConnectionRepository) UpdateSecrets(ctx context.Context, id uuid.UUID, secrets domain.Secrets) error {
	encoded := secretsToJSONB(secrets)
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE connections SET secrets = $2 WHERE id = $1`, id, encoded)
	if err != nil {
		return fmt.Errorf("storage: update connection secrets: %w", err)
	}
	r.db.connectionCache.Delete("conn:" + id.String())
	return nil
}

// MarkUnavailable records a fallback-policy cooldown decision: the error,
// the new cooldown deadline, and increments the consecutive-failure count
// used for exponential backoff on the next 429.
func (r *ConnectionRepository) MarkUnavailable(ctx context.Context, id uuid.UUID, lastError string, cooldownUntil time.Time) error {
	_, err := r.db.conn.ExecContext(ctx, `
		UPDATE connections SET
			test_status = 'error', last_error = $2, last_error_at = now(),
			cooldown_until = $3, consecutive_failed = consecutive_failed + 1
		WHERE id = $1`, id, truncate(lastError, 100), cooldownUntil)
	if err != nil {
		return fmt.Errorf("storage: mark connection unavailable: %w", err)
	}
	r.db.connectionCache.Delete("conn:" + id.String())
	return nil
}

// ClearError resets a connection to healthy after a successful call.
func (r *ConnectionRepository) ClearError(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.conn.ExecContext(ctx, `
		UPDATE connections SET
			test_status = 'active', last_error = '', cooldown_until = to_timestamp(0),
			consecutive_failed = 0
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: clear connection error: %w", err)
	}
	r.db.connectionCache.Delete("conn:" + id.String())
	return nil
}

func (r *ConnectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.conn.ExecContext(ctx, "DELETE FROM connections WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("storage: delete connection: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrConnectionNotFound
	}
	r.db.connectionCache.Delete("conn:" + id.String())
	return nil
}

// decodeSecrets populates c.Secrets from the raw jsonb column scanned into
// c.EncodedSecrets — the `db:"-"` tag on Secrets means sqlx never fills it
// directly.
func decodeSecrets(c *domain.Connection) {
	j := c.EncodedSecrets
	if j == nil {
		return
	}
	s := domain.Secrets{}
	if v, ok := j["apiKey"].(string); ok {
		s.APIKey = v
	}
	if v, ok := j["accessToken"].(string); ok {
		s.AccessToken = v
	}
	if v, ok := j["refreshToken"].(string); ok {
		s.RefreshToken = v
	}
	if v, ok := j["idToken"].(string); ok {
		s.IDToken = v
	}
	if v, ok := j["profileArn"].(string); ok {
		s.ProfileARN = v
	}
	if v, ok := j["baseUrl"].(string); ok {
		s.BaseURL = v
	}
	if v, ok := j["apiType"].(string); ok {
		s.APIType = v
	}
	if v, ok := j["ssoClientId"].(string); ok {
		s.SSOClientID = v
	}
	if v, ok := j["ssoClientSecret"].(string); ok {
		s.SSOClientSecret = v
	}
	if v, ok := j["expiresAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			s.ExpiresAt = &t
		}
	}
	c.Secrets = s
}

func secretsToJSONB(s domain.Secrets) domain.JSONB {
	j := domain.JSONB{}
	if s.APIKey != "" {
		j["apiKey"] = s.APIKey
	}
	if s.AccessToken != "" {
		j["accessToken"] = s.AccessToken
	}
	if s.RefreshToken != "" {
		j["refreshToken"] = s.RefreshToken
	}
	if s.IDToken != "" {
		j["idToken"] = s.IDToken
	}
	if s.ProfileARN != "" {
		j["profileArn"] = s.ProfileARN
	}
	if s.BaseURL != "" {
		j["baseUrl"] = s.BaseURL
	}
	if s.APIType != "" {
		j["apiType"] = s.APIType
	}
	if s.SSOClientID != "" {
		j["ssoClientId"] = s.SSOClientID
	}
	if s.SSOClientSecret != "" {
		j["ssoClientSecret"] = s.SSOClientSecret
	}
	if s.ExpiresAt != nil {
		j["expiresAt"] = s.ExpiresAt.Format(time.RFC3339)
	}
	return j
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
