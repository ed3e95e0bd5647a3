package sequencer

import (
	"sync/atomic"

	"github.com/valerio/go-aulos/aulos/dsp"
	"github.com/valerio/go-aulos/aulos/unit"
)

// EventID identifies a scheduled event. IDs are unique for the lifetime of
// the process and are never reused, so they are safe to hash and to hold on
// to after the event itself is gone.
type EventID uint64

// globalEventID supplies unique IDs. Uniqueness is the whole contract, so
// a relaxed atomic increment is all that is needed.
var globalEventID atomic.Uint64

// NewEventID returns a fresh, globally unique event ID.
func NewEventID() EventID {
	return EventID(globalEventID.Add(1))
}

// Event is a scheduled playback of one audio unit over a time interval,
// with optional fade-in and fade-out envelopes. The event owns its unit.
type Event struct {
	Unit      unit.Unit
	StartTime float64
	EndTime   float64
	FadeEase  dsp.Fade
	FadeIn    float64
	FadeOut   float64
	ID        EventID
}

func newEvent(u unit.Unit, startTime, endTime float64, ease dsp.Fade, fadeIn, fadeOut float64) *Event {
	return &Event{
		Unit:      u,
		StartTime: startTime,
		EndTime:   endTime,
		FadeEase:  ease,
		FadeIn:    fadeIn,
		FadeOut:   fadeOut,
		ID:        NewEventID(),
	}
}

// Edit is a pending modification to an event: a new end time and fade-out
// duration. Edits can only shorten an event; this is a caller obligation,
// not something the sequencer enforces.
type Edit struct {
	EndTime float64
	FadeOut float64
}

// eventHeap is a min-heap of future events ordered by start time, for use
// with container/heap. Events sharing a start time compare equal and pop in
// unspecified order; mixing is linear so the output does not depend on it.
type eventHeap []*Event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].StartTime < h[j].StartTime }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(*Event)) }

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

func (h eventHeap) peek() *Event { return h[0] }
