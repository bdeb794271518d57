// Package window keeps the rolling history of latency samples shown on the strip.
package window

import "github.com/pingsantohq/netweather/pkg/types"

// Window is a fixed-capacity history of samples, newest first. When full,
// each push evicts the oldest sample. It is owned by a single loop and is not
// safe for concurrent use.
type Window struct {
	capacity int
	items    []types.Sample
	head     int // index of the newest sample
	size     int
}

// New returns an empty window; capacities below one are raised to one.
func New(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{
		capacity: capacity,
		items:    make([]types.Sample, capacity),
	}
}

// PushFront records s as the most recent sample.
func (w *Window) PushFront(s types.Sample) {
	w.head = (w.head - 1 + w.capacity) % w.capacity
	w.items[w.head] = s
	if w.size < w.capacity {
		w.size++
	}
}

// Snapshot returns the current samples, most recent first.
func (w *Window) Snapshot() []types.Sample {
	out := make([]types.Sample, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.items[(w.head+i)%w.capacity]
	}
	return out
}

// Len is the number of samples held, at most Cap.
func (w *Window) Len() int {
	return w.size
}

// Cap is the fixed capacity, one slot per LED.
func (w *Window) Cap() int {
	return w.capacity
}
