package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotLocksSerializeSameSlot(t *testing.T) {
	locks := newSlotLocks()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(7)
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.size())
}

func TestSlotLocksIndependentSlots(t *testing.T) {
	locks := newSlotLocks()

	unlockA := locks.Lock(1)
	unlockB := locks.Lock(2) // не должен блокироваться
	assert.Equal(t, 2, locks.size())

	unlockA()
	unlockB()
	assert.Equal(t, 0, locks.size())
}
