package service

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUniqueNamerNoCollisions(t *testing.T) {
	n := NewUniqueNamer()

	const workers, perWorker = 8, 500
	ids := make(chan string, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- n.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestUniqueNamerFormat(t *testing.T) {
	id := NewUniqueNamer().Next()
	assert.Len(t, id, 26)
	assert.Equal(t, strings.ToLower(id), id)
	assert.NotContains(t, id, "/")
}

func TestUniqueNamerMonotonic(t *testing.T) {
	n := NewUniqueNamer()
	prev := n.Next()
	for i := 0; i < 100; i++ {
		next := n.Next()
		assert.Greater(t, next, prev)
		prev = next
	}
}
