package billing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordLocksSerializeSameRecord(t *testing.T) {
	locks := newRecordLocks()

	const workers = 8
	const iterations = 200

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				unlock := locks.lock(42)
				counter++
				unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*iterations, counter)
}

func TestRecordLocksIndependentRecords(t *testing.T) {
	locks := newRecordLocks()

	unlockA := locks.lock(1)
	defer unlockA()

	// A different record must not block behind record 1.
	done := make(chan struct{})
	go func() {
		unlockB := locks.lock(2)
		unlockB()
		close(done)
	}()
	<-done
}

func TestRecordLocksReleaseFreesEntry(t *testing.T) {
	locks := newRecordLocks()

	for i := 0; i < 10; i++ {
		unlock := locks.lock(7)
		unlock()
	}

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.entries)
}
