// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package store

import (
	"sync"
	"testing"
	"time"
)

func TestKeyMutexSerializesSameKey(t *testing.T) {
	t.Parallel()

	km := NewKeyMutex()

	const goroutines = 16
	var counter int // intentionally unsynchronized; the key mutex must protect it

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("vidA")
			defer km.Unlock("vidA")
			counter++
		}()
	}
	wg.Wait()

	if counter != goroutines {
		t.Errorf("counter = %d, want %d", counter, goroutines)
	}
	if km.Len() != 0 {
		t.Errorf("Len() = %d after all unlocks, want 0", km.Len())
	}
}

func TestKeyMutexIndependentKeys(t *testing.T) {
	t.Parallel()

	km := NewKeyMutex()
	km.Lock("vidA")
	defer km.Unlock("vidA")

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		km.Lock("vidB")
		km.Unlock("vidB")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on independent key blocked")
	}
}

func TestKeyMutexTryLock(t *testing.T) {
	t.Parallel()

	km := NewKeyMutex()

	if !km.TryLock("vidA") {
		t.Fatal("TryLock on free key = false, want true")
	}
	if km.TryLock("vidA") {
		t.Fatal("TryLock on held key = true, want false")
	}
	km.Unlock("vidA")

	if !km.TryLock("vidA") {
		t.Fatal("TryLock after unlock = false, want true")
	}
	km.Unlock("vidA")

	if km.Len() != 0 {
		t.Errorf("Len() = %d, want 0", km.Len())
	}
}

func TestKeyMutexUnlockUnheldPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("Unlock of unheld key did not panic")
		}
	}()
	NewKeyMutex().Unlock("never-locked")
}
