package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepClock_Defaults(t *testing.T) {
	c := NewStepClock(time.Time{}, 0)
	assert.Equal(t, Epoch, c.Now())
	assert.Equal(t, Epoch.Add(DefaultStep), c.Now())
	assert.Equal(t, int64(2), c.Calls())
}

func TestStepClock_CustomStep(t *testing.T) {
	start := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewStepClock(start, 250*time.Millisecond)

	assert.Equal(t, start.UnixMilli(), c.Now().UnixMilli())
	assert.Equal(t, start.UnixMilli()+250, c.Now().UnixMilli())
	assert.Equal(t, start.UnixMilli()+500, c.Now().UnixMilli())
}

func TestStepClock_Reset(t *testing.T) {
	c := NewStepClock(time.Time{}, time.Minute)
	c.Now()
	c.Now()
	c.Reset()
	assert.Equal(t, int64(0), c.Calls())
	assert.Equal(t, Epoch, c.Now())
}

func TestStepClock_Deterministic(t *testing.T) {
	c1 := NewStepClock(time.Time{}, 0)
	c2 := NewStepClock(time.Time{}, 0)
	for i := 0; i < 100; i++ {
		assert.Equal(t, c1.Now(), c2.Now())
	}
}

func TestStepClock_ThreadSafe(t *testing.T) {
	c := NewStepClock(time.Time{}, time.Millisecond)
	const goroutines = 50
	const calls = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	results := make(chan time.Time, goroutines*calls)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				results <- c.Now()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[time.Time]bool)
	for ts := range results {
		require.False(t, seen[ts], "duplicate instant %v", ts)
		seen[ts] = true
	}
	assert.Len(t, seen, goroutines*calls)
}

func TestFixedIDGenerator(t *testing.T) {
	gen := NewFixedIDGenerator("save-1")
	assert.Equal(t, "save-1", gen.Generate())
	assert.Equal(t, "save-1", gen.Generate())

	assert.Equal(t, "test-save-default", NewFixedIDGenerator("").Generate())
}
