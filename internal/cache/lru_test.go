// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestLRUGetAdd(t *testing.T) {
	t.Parallel()

	c := NewLRU[[]float32](4)
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) = hit, want miss")
	}

	c.Add("a", []float32{0.1, 0.2})
	got, ok := c.Get("a")
	if !ok || len(got) != 2 {
		t.Errorf("Get(a) = %v, %v", got, ok)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d/%d, want 1/1", hits, misses)
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](3)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// Touch a so b becomes the LRU.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Add("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should survive eviction", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestLRUUpdateExisting(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](2)
	c.Add("a", 1)
	c.Add("a", 2)
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after update", c.Len())
	}
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) = %d, want updated value 2", v)
	}
}

func TestLRURemoveAndPurge(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](4)
	c.Add("a", 1)
	c.Add("b", 2)

	c.Remove("a")
	c.Remove("a") // idempotent
	if _, ok := c.Get("a"); ok {
		t.Error("a should be removed")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after purge, want 0", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should be gone after purge")
	}
}

func TestLRUConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](64)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (w*200+i)%100)
				c.Add(key, i)
				c.Get(key)
			}
		}(w)
	}
	wg.Wait()

	if c.Len() > 64 {
		t.Errorf("Len() = %d, exceeds capacity", c.Len())
	}
}

func TestLRUDefaultCapacity(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](0)
	c.Add("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Error("zero-capacity constructor should fall back to a usable default")
	}
}
