package events

import (
	"sync"

	"github.com/pingsantohq/netweather/pkg/types"
)

type Recorder interface {
	Record(event types.Event)
}

type NoopRecorder struct{}

func (NoopRecorder) Record(event types.Event) {}

// Func adapts a plain function to Recorder.
type Func func(types.Event)

func (f Func) Record(event types.Event) {
	if f != nil {
		f(event)
	}
}

type Multi struct {
	recorders []Recorder
}

func NewMulti(recorders ...Recorder) Multi {
	return Multi{recorders: recorders}
}

func (m Multi) Record(event types.Event) {
	for _, rec := range m.recorders {
		if rec != nil {
			rec.Record(event)
		}
	}
}

// Stamped tags events with the current run ID before forwarding them.
type Stamped struct {
	next Recorder

	mu    sync.RWMutex
	runID string
}

func NewStamped(next Recorder) *Stamped {
	if next == nil {
		next = NoopRecorder{}
	}
	return &Stamped{next: next}
}

func (s *Stamped) SetRunID(id string) {
	s.mu.Lock()
	s.runID = id
	s.mu.Unlock()
}

func (s *Stamped) Record(event types.Event) {
	if event.RunID == "" {
		s.mu.RLock()
		event.RunID = s.runID
		s.mu.RUnlock()
	}
	s.next.Record(event)
}
