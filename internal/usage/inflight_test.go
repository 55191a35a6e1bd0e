package usage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInFlight_BeginEndBalances(t *testing.T) {
	f := NewInFlight()
	done := f.Begin("gpt-4", "conn-1")
	assert.Equal(t, int64(1), f.ForModel("gpt-4"))
	assert.Equal(t, int64(1), f.ForConnection("conn-1", "gpt-4"))

	done()
	assert.Equal(t, int64(0), f.ForModel("gpt-4"))
	assert.Equal(t, int64(0), f.ForConnection("conn-1", "gpt-4"))
}

func TestInFlight_DoneIsIdempotent(t *testing.T) {
	f := NewInFlight()
	done := f.Begin("gpt-4", "conn-1")
	done()
	done()
	assert.Equal(t, int64(0), f.ForModel("gpt-4"))
}

func TestInFlight_ConcurrentBeginsNeverGoNegative(t *testing.T) {
	f := NewInFlight()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := f.Begin("gpt-4", "conn-1")
			done()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(0), f.ForModel("gpt-4"))
	assert.GreaterOrEqual(t, f.ForModel("gpt-4"), int64(0))
}

func TestInFlight_EmptyConnectionIDSkipsPerConnectionCounter(t *testing.T) {
	f := NewInFlight()
	done := f.Begin("gpt-4", "")
	assert.Equal(t, int64(1), f.ForModel("gpt-4"))
	assert.Equal(t, int64(0), f.ForConnection("", "gpt-4"))
	done()
}
