// Package buffer holds readings that could not be stored yet.
package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/xtxerr/healthmon/internal/storage/types"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 256

// RingBuffer is a thread-safe circular buffer of readings.
type RingBuffer struct {
	mu       sync.Mutex
	data     []types.Reading
	head     int64 // Next write position
	tail     int64 // Oldest data position
	count    int64
	capacity int64

	pushCount atomic.Int64
	popCount  atomic.Int64
	dropCount atomic.Int64
}

// New creates a new RingBuffer with the given capacity.
func New(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingBuffer{
		data:     make([]types.Reading, capacity),
		capacity: int64(capacity),
	}
}

// Push adds a reading. It returns false and drops the reading if the
// buffer is full.
func (rb *RingBuffer) Push(r types.Reading) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count >= rb.capacity {
		rb.dropCount.Add(1)
		return false
	}

	rb.put(r)
	return true
}

// PushOverwrite adds a reading, evicting the oldest one if the buffer is
// full. It returns false when a reading was evicted.
func (rb *RingBuffer) PushOverwrite(r types.Reading) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	evicted := false
	if rb.count >= rb.capacity {
		rb.data[rb.tail%rb.capacity] = types.Reading{}
		rb.tail++
		rb.count--
		rb.dropCount.Add(1)
		evicted = true
	}

	rb.put(r)
	return !evicted
}

func (rb *RingBuffer) put(r types.Reading) {
	rb.data[rb.head%rb.capacity] = r
	rb.head++
	rb.count++
	rb.pushCount.Add(1)
}

// PopN removes and returns up to n readings, oldest first.
func (rb *RingBuffer) PopN(n int) []types.Reading {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == 0 || n <= 0 {
		return nil
	}

	count := min(int64(n), rb.count)
	result := make([]types.Reading, count)
	for i := int64(0); i < count; i++ {
		idx := (rb.tail + i) % rb.capacity
		result[i] = rb.data[idx]
		rb.data[idx] = types.Reading{} // Clear for GC
	}

	rb.tail += count
	rb.count -= count
	rb.popCount.Add(count)

	return result
}

// Drain removes and returns every buffered reading, oldest first.
func (rb *RingBuffer) Drain() []types.Reading {
	return rb.PopN(rb.Cap())
}

// Len returns the number of buffered readings.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.count)
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return int(rb.capacity)
}

// IsEmpty returns true if the buffer is empty.
func (rb *RingBuffer) IsEmpty() bool {
	return rb.Len() == 0
}

// Stats returns buffer statistics.
func (rb *RingBuffer) Stats() BufferStats {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return BufferStats{
		Capacity:  int(rb.capacity),
		Count:     int(rb.count),
		PushCount: rb.pushCount.Load(),
		PopCount:  rb.popCount.Load(),
		DropCount: rb.dropCount.Load(),
	}
}

// BufferStats holds buffer statistics.
type BufferStats struct {
	Capacity  int
	Count     int
	PushCount int64
	PopCount  int64
	DropCount int64
}
