// Package credentials implements the credential selector: given a
// provider, it picks the best eligible connection, proactively refreshing
// a nearly-expired access token before handing it back.
package credentials

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"relaygate/internal/domain"
	"relaygate/internal/providers"
	"relaygate/internal/storage"
	"relaygate/internal/utils"
)

// RefreshBuffer is how far ahead of expiry a token is proactively refreshed.
const RefreshBuffer = 5 * time.Minute

// Selector resolves a provider to its best eligible connection, ordering
// candidates by priority and coalescing concurrent refreshes for the same
// connection into a single upstream call.
type Selector struct {
	connections *storage.ConnectionRepository
	providers   *storage.ProviderRepository
	executors   *providers.Registry
	log         *utils.Logger

	refreshGroup singleflight.Group
}

func NewSelector(connections *storage.ConnectionRepository, provRepo *storage.ProviderRepository, executors *providers.Registry, log *utils.Logger) *Selector {
	return &Selector{connections: connections, providers: provRepo, executors: executors, log: log}
}

// Select returns the best eligible connection for providerID, excluding
// excludeID (uuid.Nil to exclude none). Returns (nil, nil) when no
// eligible connection exists — that is a normal fallback-exhaustion state,
// not an error.
func (s *Selector) Select(ctx context.Context, providerID string, excludeID uuid.UUID) (*domain.Connection, error) {
	all, err := s.connections.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("credentials: list connections: %w", err)
	}

	now := time.Now()
	var eligible []*domain.Connection
	for _, c := range all {
		if c.Eligible(now, excludeID) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	// ListByProvider already orders by (globalPriority, priority,
	// createdAt); re-sort defensively in case a caller passes an
	// unordered slice through some other path.
	sort.SliceStable(eligible, func(i, j int) bool {
		return lessByPriority(eligible[i], eligible[j])
	})

	best := eligible[0]

	prov, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("credentials: get provider: %w", err)
	}

	if best.NeedsRefresh(now, RefreshBuffer) {
		refreshed := s.refresh(ctx, best, prov)
		if refreshed != nil {
			return refreshed, nil
		}
		// Refresh failed: return the connection unchanged. The executor
		// will retry on 401/403 and the fallback policy takes it from
		// there.
	}
	return best, nil
}

func lessByPriority(a, b *domain.Connection) bool {
	ag, bg := priorityRank(a.GlobalPriority), priorityRank(b.GlobalPriority)
	if ag != bg {
		return ag < bg
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func priorityRank(p *int) int {
	if p == nil {
		return int(^uint(0) >> 1) // unset sorts after any set globalPriority
	}
	return *p
}

// refresh coalesces concurrent refresh attempts for the same connection
// via singleflight, persists the new tokens on success, and returns the
// updated connection. Returns nil on any failure.
func (s *Selector) refresh(ctx context.Context, conn *domain.Connection, prov *domain.Provider) *domain.Connection {
	key := conn.ID.String()
	result, err, _ := s.refreshGroup.Do(key, func() (interface{}, error) {
		exec := s.executors.ExecutorFor(prov.ID)
		rc, rerr := exec.RefreshCredentials(ctx, conn, prov)
		if rerr != nil {
			return nil, rerr
		}
		if rc == nil {
			return nil, nil
		}

		updated := *conn
		updated.Secrets.AccessToken = rc.AccessToken
		if rc.RefreshToken != "" {
			updated.Secrets.RefreshToken = rc.RefreshToken
		}
		if rc.IDToken != "" {
			updated.Secrets.IDToken = rc.IDToken
		}
		if rc.ExpiresIn > 0 {
			expiry := time.Now().Add(time.Duration(rc.ExpiresIn) * time.Second)
			updated.Secrets.ExpiresAt = &expiry
		}
		if arn, ok := rc.Extra["profileArn"].(string); ok && arn != "" {
			updated.Secrets.ProfileARN = arn
		}

		if err := s.connections.UpdateSecrets(ctx, updated.ID, updated.Secrets); err != nil {
			return nil, fmt.Errorf("credentials: persist refreshed secrets: %w", err)
		}
		return &updated, nil
	})

	if err != nil {
		if s.log != nil {
			s.log.Warn("credentials: refresh failed", "connectionId", conn.ID, "error", err)
		}
		return nil
	}
	if result == nil {
		return nil
	}
	return result.(*domain.Connection)
}
