package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsUpToRPSThenRejects(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	l := newWithClock(func() time.Time { return fixed })

	for i := 0; i < 2; i++ {
		assert.True(t, l.Allow("tenant-a", 2))
	}
	assert.False(t, l.Allow("tenant-a", 2), "third request within the same instant must be rejected at rps=2")
}

func TestLimiter_WindowSlidesAfterOneSecond(t *testing.T) {
	cur := time.Unix(1_700_000_000, 0)
	l := newWithClock(func() time.Time { return cur })

	assert.True(t, l.Allow("tenant-a", 1))
	assert.False(t, l.Allow("tenant-a", 1))

	cur = cur.Add(1100 * time.Millisecond)
	assert.True(t, l.Allow("tenant-a", 1), "after the window slides past 1s the budget must refill")
}

func TestLimiter_TenantsAreIndependent(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	l := newWithClock(func() time.Time { return fixed })

	assert.True(t, l.Allow("tenant-a", 1))
	assert.False(t, l.Allow("tenant-a", 1))
	assert.True(t, l.Allow("tenant-b", 1), "a separate tenant must have its own budget")
}

func TestLimiter_ConcurrentAccessIsSafe(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	admitted := make(chan bool, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted <- l.Allow("tenant-a", 50)
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for ok := range admitted {
		if ok {
			count++
		}
	}
	assert.LessOrEqual(t, count, 50)
}
