package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence_StartsAtOne(t *testing.T) {
	s := NewSequence()
	assert.Equal(t, int64(0), s.Current())
	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(2), s.Current())
}

func TestSequence_Reset(t *testing.T) {
	s := NewSequence()
	s.Next()
	s.Next()
	s.Reset()
	assert.Equal(t, int64(0), s.Current())
	assert.Equal(t, int64(1), s.Next())
}

func TestSequence_ThreadSafe(t *testing.T) {
	s := NewSequence()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Next()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1000), s.Current())
}
