package ntfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUBasicGetAdd(t *testing.T) {
	lru, err := NewLRU(2, nil, "test")
	assert.NoError(t, err)

	lru.Add(1, "one")
	lru.Add(2, "two")

	v, ok := lru.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)
	assert.Equal(t, 2, lru.Len())
}

func TestLRUEvictsOldest(t *testing.T) {
	var evicted []int
	lru, err := NewLRU(2, func(key int, value interface{}) {
		evicted = append(evicted, key)
	}, "test")
	assert.NoError(t, err)

	lru.Add(1, "one")
	lru.Add(2, "two")
	lru.Add(3, "three") // evicts 1, the least recently used

	_, ok := lru.Get(1)
	assert.False(t, ok)
	assert.Equal(t, []int{1}, evicted)
	assert.Equal(t, 2, lru.Len())
}

func TestLRUGetPromotesToFront(t *testing.T) {
	var evicted []int
	lru, err := NewLRU(2, func(key int, value interface{}) {
		evicted = append(evicted, key)
	}, "test")
	assert.NoError(t, err)

	lru.Add(1, "one")
	lru.Add(2, "two")
	lru.Get(1) // promote 1 to front, 2 is now the oldest
	lru.Add(3, "three")

	assert.Equal(t, []int{2}, evicted)
}

func TestLRUPurge(t *testing.T) {
	var evicted []int
	lru, err := NewLRU(4, func(key int, value interface{}) {
		evicted = append(evicted, key)
	}, "test")
	assert.NoError(t, err)

	lru.Add(1, "one")
	lru.Add(2, "two")
	lru.Purge()

	assert.Equal(t, 0, lru.Len())
	assert.ElementsMatch(t, []int{1, 2}, evicted)
}
