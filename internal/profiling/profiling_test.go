package profiling

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCounterAddLoad(t *testing.T) {
	var c Counter
	assert.Equal(t, int64(5), c.Add(5))
	assert.Equal(t, int64(5), c.Load())
	assert.True(t, c.CompareAndSwap(5, 10))
	assert.Equal(t, int64(10), c.Load())
}

func TestCounterConcurrentAdd(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), c.Load())
}

func TestSectionRecordsHitsAndDuration(t *testing.T) {
	s := NewSection("test-section")
	done := s.Begin()
	time.Sleep(time.Millisecond)
	done()

	assert.Equal(t, int64(1), s.Hits())
	assert.Greater(t, s.TotalDuration(), time.Duration(0))
	assert.Equal(t, s.TotalDuration(), s.Mean())
}

func TestSectionMeanZeroWithoutHits(t *testing.T) {
	s := NewSection("empty")
	assert.Equal(t, time.Duration(0), s.Mean())
}
