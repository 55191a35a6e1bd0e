package credentials

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"relaygate/internal/domain"
)

func intPtr(i int) *int { return &i }

func TestLessByPriority_GlobalPriorityWins(t *testing.T) {
	now := time.Now()
	a := &domain.Connection{GlobalPriority: intPtr(2), Priority: 0, CreatedAt: now}
	b := &domain.Connection{GlobalPriority: intPtr(1), Priority: 100, CreatedAt: now}
	assert.False(t, lessByPriority(a, b))
	assert.True(t, lessByPriority(b, a))
}

func TestLessByPriority_UnsetGlobalPrioritySortsAfterSet(t *testing.T) {
	now := time.Now()
	withGlobal := &domain.Connection{GlobalPriority: intPtr(5), CreatedAt: now}
	withoutGlobal := &domain.Connection{GlobalPriority: nil, Priority: 0, CreatedAt: now}
	assert.True(t, lessByPriority(withGlobal, withoutGlobal))
	assert.False(t, lessByPriority(withoutGlobal, withGlobal))
}

func TestLessByPriority_FallsBackToPerProviderPriorityThenCreatedAt(t *testing.T) {
	t0 := time.Now()
	t1 := t0.Add(time.Minute)
	a := &domain.Connection{Priority: 1, CreatedAt: t1}
	b := &domain.Connection{Priority: 1, CreatedAt: t0}
	c := &domain.Connection{Priority: 2, CreatedAt: t0}

	conns := []*domain.Connection{c, a, b}
	sort.SliceStable(conns, func(i, j int) bool { return lessByPriority(conns[i], conns[j]) })
	assert.Same(t, b, conns[0])
	assert.Same(t, a, conns[1])
	assert.Same(t, c, conns[2])
}

func TestConnectionEligible_RespectsCooldownAndActiveFlag(t *testing.T) {
	now := time.Now()
	c := &domain.Connection{ID: uuid.New(), IsActive: true, CooldownUntil: now.Add(-time.Minute)}
	assert.True(t, c.Eligible(now, uuid.Nil))

	c.CooldownUntil = now.Add(time.Minute)
	assert.False(t, c.Eligible(now, uuid.Nil))

	c.CooldownUntil = now.Add(-time.Minute)
	c.IsActive = false
	assert.False(t, c.Eligible(now, uuid.Nil))

	c.IsActive = true
	assert.False(t, c.Eligible(now, c.ID))
}
