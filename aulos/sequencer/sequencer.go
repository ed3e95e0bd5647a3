// Package sequencer mixes together scheduled audio units with sample
// accurate timing. Events carry their own unit, a time interval and optional
// fade envelopes; the sequencer promotes them from a ready queue to the
// active set at the right sample, renders and sums them, and retires them
// when their end time passes.
//
// A sequencer starts out standalone. Calling Backend splits it into a
// control-thread frontend and an audio-thread backend connected by two
// bounded queues, so the audio thread never allocates or frees units.
package sequencer

import (
	"container/heap"
	"math"

	"github.com/valerio/go-aulos/aulos/dsp"
	"github.com/valerio/go-aulos/aulos/unit"
)

// initialCapacity presizes the event collections so that steady-state
// scheduling does not allocate. It matches the message queue capacity.
const initialCapacity = 16384

// Sequencer schedules and mixes events. It is an audio unit with zero
// inputs and a fixed number of output channels.
//
// Methods are not safe for concurrent use; the frontend/backend split is
// the supported way to drive a sequencer from two threads.
type Sequencer struct {
	// Events currently being rendered, unordered.
	active []*Event
	// Index of each active event in active, for O(1) edits.
	activeMap map[EventID]int
	// Events that start before this threshold are promoted to active.
	activeThreshold float64
	// Future events, a min-heap on start time.
	ready eventHeap
	// Expired events awaiting deallocation or replay, unordered.
	past []*Event
	// Edits that arrived before their target left the ready heap.
	editMap map[EventID]Edit

	outputs        int
	time           float64
	sampleRate     float64
	sampleDuration float64

	// Scratch for block rendering and single-frame rendering.
	buffer     unit.Buffer
	tickBuffer []float64

	// Non-nil once Backend has been called; this sequencer is then a
	// frontend and only forwards messages.
	front *frontChannels
	// Set on the sequencer owned by a Backend: expired events must stay in
	// past until the backend forwards them over the return queue.
	retainPast bool
	// Whether reset returns events to the ready queue instead of
	// dropping them.
	replayEvents bool
}

var _ unit.Unit = (*Sequencer)(nil)

// New creates a sequencer with the given number of output channels.
// If replayEvents is true, expired events are retained and Reset returns
// them to the ready queue; if false, Reset clears everything.
func New(replayEvents bool, outputs int) *Sequencer {
	return &Sequencer{
		active:          make([]*Event, 0, initialCapacity),
		activeMap:       make(map[EventID]int, initialCapacity),
		activeThreshold: math.Inf(-1),
		ready:           make(eventHeap, 0, initialCapacity),
		past:            make([]*Event, 0, initialCapacity),
		editMap:         make(map[EventID]Edit, initialCapacity),
		outputs:         outputs,
		sampleRate:      unit.DefaultSampleRate,
		sampleDuration:  1.0 / unit.DefaultSampleRate,
		tickBuffer:      make([]float64, outputs),
		replayEvents:    replayEvents,
	}
}

// Time returns the current time in seconds. Frontends do not process audio
// and their time stays put; query the backend's position via the host.
func (s *Sequencer) Time() float64 {
	return s.time
}

// ReplayEvents returns whether expired events are retained for replay.
func (s *Sequencer) ReplayEvents() bool {
	return s.replayEvents
}

// HasBackend returns whether Backend has been called on this sequencer.
func (s *Sequencer) HasBackend() bool {
	return s.front != nil
}

// Push adds an event with absolute start and end times in seconds.
// The unit must have zero inputs and the sequencer's output channel count.
// Fade-in and fade-out may overlap but may not exceed the event duration.
// Returns the ID of the new event.
func (s *Sequencer) Push(startTime, endTime float64, ease dsp.Fade, fadeIn, fadeOut float64, u unit.Unit) EventID {
	s.checkUnit(u, fadeIn, fadeOut, endTime-startTime)
	u.SetSampleRate(s.sampleRate)
	u.Allocate()
	event := newEvent(u, startTime, endTime, ease, fadeIn, fadeOut)
	s.pushEvent(event)
	return event.ID
}

// PushRelative adds an event with start and end times relative to the
// current time. A start time of zero starts the event as soon as possible.
// For a sequencer with a backend, "current time" is resolved on the audio
// thread when the message is consumed.
// Returns the ID of the new event.
func (s *Sequencer) PushRelative(startTime, endTime float64, ease dsp.Fade, fadeIn, fadeOut float64, u unit.Unit) EventID {
	s.checkUnit(u, fadeIn, fadeOut, endTime-startTime)
	u.SetSampleRate(s.sampleRate)
	u.Allocate()
	event := newEvent(u, startTime, endTime, ease, fadeIn, fadeOut)
	s.pushRelativeEvent(event)
	return event.ID
}

// PushDuration adds an event with a start time and a duration.
// Returns the ID of the new event.
func (s *Sequencer) PushDuration(startTime, duration float64, ease dsp.Fade, fadeIn, fadeOut float64, u unit.Unit) EventID {
	return s.Push(startTime, startTime+duration, ease, fadeIn, fadeOut, u)
}

func (s *Sequencer) checkUnit(u unit.Unit, fadeIn, fadeOut, duration float64) {
	if u.Inputs() != 0 {
		panic("sequencer: scheduled units take no inputs")
	}
	if u.Outputs() != s.outputs {
		panic("sequencer: unit channel count does not match sequencer outputs")
	}
	if fadeIn > duration || fadeOut > duration {
		panic("sequencer: fade duration exceeds event duration")
	}
}

func (s *Sequencer) pushEvent(event *Event) {
	if s.front != nil {
		s.front.drainReturns()
		s.front.trySend(message{kind: msgPush, event: event})
	} else if event.StartTime < s.activeThreshold {
		s.activeMap[event.ID] = len(s.active)
		s.active = append(s.active, event)
	} else {
		heap.Push(&s.ready, event)
	}
}

func (s *Sequencer) pushRelativeEvent(event *Event) {
	if s.front != nil {
		s.front.drainReturns()
		s.front.trySend(message{kind: msgPushRelative, event: event})
		return
	}
	event.StartTime += s.time
	event.EndTime += s.time
	if event.StartTime < s.activeThreshold {
		s.activeMap[event.ID] = len(s.active)
		s.active = append(s.active, event)
	} else {
		heap.Push(&s.ready, event)
	}
}

// Edit changes the end time and fade-out of an existing event. The new end
// time may only shorten the event. Edits exist for events whose length is
// not known up front: schedule with an end time of +Inf, then edit when the
// real end arrives. Edits to events that have already expired are dropped.
func (s *Sequencer) Edit(id EventID, endTime, fadeOut float64) {
	if s.front != nil {
		s.front.drainReturns()
		s.front.trySend(message{kind: msgEdit, id: id, edit: Edit{EndTime: endTime, FadeOut: fadeOut}})
		return
	}
	s.applyEdit(id, Edit{EndTime: endTime, FadeOut: fadeOut})
}

// EditRelative is Edit with the end time given relative to current time.
// An event starts fading out immediately if its relative end time equals
// its fade-out duration.
func (s *Sequencer) EditRelative(id EventID, endTime, fadeOut float64) {
	if s.front != nil {
		s.front.drainReturns()
		s.front.trySend(message{kind: msgEditRelative, id: id, edit: Edit{EndTime: endTime, FadeOut: fadeOut}})
		return
	}
	s.applyEdit(id, Edit{EndTime: s.time + endTime, FadeOut: fadeOut})
}

// applyEdit applies an edit with an absolute end time to local state.
func (s *Sequencer) applyEdit(id EventID, edit Edit) {
	if i, ok := s.activeMap[id]; ok {
		s.active[i].EndTime = edit.EndTime
		s.active[i].FadeOut = edit.FadeOut
		return
	}
	for _, event := range s.ready {
		if event.ID == id {
			s.editMap[id] = edit
			return
		}
	}
	// The event is already in the past; the edit is dropped.
}

// readyToActive promotes events that start before the end of the next block.
// The threshold backs off half a sample so that a start time rounding to the
// first sample of the block is included.
func (s *Sequencer) readyToActive(nextEndTime float64) {
	s.activeThreshold = nextEndTime - s.sampleDuration*0.5
	for s.ready.Len() > 0 && s.ready.peek().StartTime < s.activeThreshold {
		event := heap.Pop(&s.ready).(*Event)
		s.activeMap[event.ID] = len(s.active)
		if edit, ok := s.editMap[event.ID]; ok {
			event.EndTime = edit.EndTime
			event.FadeOut = edit.FadeOut
			delete(s.editMap, event.ID)
		}
		s.active = append(s.active, event)
	}
}

// retire moves active[i] to past, keeping activeMap consistent with the
// swap-remove. The tail event is rekeyed to i unless the retired event was
// itself the tail.
func (s *Sequencer) retire(i int) {
	event := s.active[i]
	delete(s.activeMap, event.ID)
	last := len(s.active) - 1
	s.active[i] = s.active[last]
	if i < last {
		s.activeMap[s.active[i].ID] = i
	}
	s.active[last] = nil
	s.active = s.active[:last]
	s.past = append(s.past, event)
}

func (s *Sequencer) dropPast() {
	for i := range s.past {
		s.past[i] = nil
	}
	s.past = s.past[:0]
}

// Inputs returns 0; the sequencer is a pure generator.
func (s *Sequencer) Inputs() int { return 0 }

// Outputs returns the number of output channels.
func (s *Sequencer) Outputs() int { return s.outputs }

// SetSampleRate changes the sample rate. All scheduled units are notified
// and all events are re-homed to the ready queue, to be promoted again
// against the new clock.
func (s *Sequencer) SetSampleRate(rate float64) {
	if s.sampleRate == rate {
		return
	}
	s.sampleRate = rate
	s.sampleDuration = 1.0 / rate
	for _, event := range s.active {
		s.rehome(event)
	}
	s.active = s.active[:0]
	for _, event := range s.past {
		s.rehome(event)
	}
	s.past = s.past[:0]
	for _, event := range s.ready {
		event.Unit.SetSampleRate(rate)
	}
	heap.Init(&s.ready)
	for k := range s.activeMap {
		delete(s.activeMap, k)
	}
	s.activeThreshold = math.Inf(-1)
}

func (s *Sequencer) rehome(event *Event) {
	event.Unit.SetSampleRate(s.sampleRate)
	s.ready = append(s.ready, event)
}

// Allocate presizes the rendering scratch and lets every scheduled unit
// preallocate. Called off the audio thread, typically via Backend.
func (s *Sequencer) Allocate() {
	s.buffer.Ensure(s.outputs, unit.DefaultMaxBlock)
	for _, event := range s.active {
		event.Unit.Allocate()
	}
	for _, event := range s.ready {
		event.Unit.Allocate()
	}
	for _, event := range s.past {
		event.Unit.Allocate()
	}
}

// Reset rewinds time to zero. With replayEvents set, all events return to
// the ready queue with their units reset; note that events edited while
// active replay their edited end time, not the original. Without
// replayEvents, all events are dropped.
func (s *Sequencer) Reset() {
	if s.replayEvents {
		gather := s.active
		gather = append(gather, s.past...)
		gather = append(gather, s.ready...)
		s.ready = s.ready[:0]
		for _, event := range gather {
			event.Unit.Reset()
			s.ready = append(s.ready, event)
		}
		heap.Init(&s.ready)
		s.active = s.active[:0]
		s.past = s.past[:0]
		for k := range s.activeMap {
			delete(s.activeMap, k)
		}
	} else {
		s.active = s.active[:0]
		s.ready = s.ready[:0]
		s.dropPast()
		for k := range s.activeMap {
			delete(s.activeMap, k)
		}
		for k := range s.editMap {
			delete(s.editMap, k)
		}
	}
	s.time = 0
	s.activeThreshold = math.Inf(-1)
}

// Tick renders one frame.
func (s *Sequencer) Tick(input, output []float64) {
	if !s.replayEvents && !s.retainPast {
		s.dropPast()
	}
	for c := 0; c < s.outputs; c++ {
		output[c] = 0
	}
	endTime := s.time + s.sampleDuration
	s.readyToActive(endTime)
	i := 0
	for i < len(s.active) {
		event := s.active[i]
		if event.EndTime <= s.time+0.5*s.sampleDuration {
			s.retire(i)
			continue
		}
		event.Unit.Tick(input, s.tickBuffer)
		if event.FadeIn > 0 {
			phase := dsp.Delerp(event.StartTime, event.StartTime+event.FadeIn, s.time)
			if phase < 1 {
				gain := event.FadeEase.At(phase)
				for c := 0; c < s.outputs; c++ {
					s.tickBuffer[c] *= gain
				}
			}
		}
		if event.FadeOut > 0 {
			phase := dsp.Delerp(event.EndTime-event.FadeOut, event.EndTime, s.time)
			if phase > 0 {
				gain := event.FadeEase.At(1 - phase)
				for c := 0; c < s.outputs; c++ {
					s.tickBuffer[c] *= gain
				}
			}
		}
		for c := 0; c < s.outputs; c++ {
			output[c] += s.tickBuffer[c]
		}
		i++
	}
	s.time = endTime
}

// Process renders a block of size frames into per-channel output buffers.
func (s *Sequencer) Process(size int, input, output [][]float64) {
	if !s.replayEvents && !s.retainPast {
		s.dropPast()
	}
	for c := 0; c < s.outputs; c++ {
		buf := output[c][:size]
		for j := range buf {
			buf[j] = 0
		}
	}
	endTime := s.time + s.sampleDuration*float64(size)
	s.readyToActive(endTime)
	scratch := s.buffer.Ensure(s.outputs, size)
	i := 0
	for i < len(s.active) {
		event := s.active[i]
		if event.EndTime <= s.time+0.5*s.sampleDuration {
			s.retire(i)
			continue
		}
		startIndex := 0
		if event.StartTime > s.time {
			startIndex = dsp.RoundIndex((event.StartTime - s.time) * s.sampleRate)
		}
		endIndex := size
		if event.EndTime < endTime {
			endIndex = dsp.RoundIndex((event.EndTime - s.time) * s.sampleRate)
		}
		if endIndex > startIndex {
			event.Unit.Process(endIndex-startIndex, input, scratch)
			applyFadeIn(s.sampleDuration, s.time, startIndex, endIndex, event, scratch)
			applyFadeOut(s.sampleDuration, s.time, startIndex, endIndex, event, scratch)
			for c := 0; c < s.outputs; c++ {
				out := output[c]
				buf := scratch[c]
				for j := startIndex; j < endIndex; j++ {
					out[j] += buf[j-startIndex]
				}
			}
		}
		i++
	}
	s.time = endTime
}

// applyFadeIn multiplies the rendered scratch by the fade-in envelope.
// scratch index 0 corresponds to block index startIndex, which is where the
// event starts (or the block start, for events already past their start).
func applyFadeIn(sampleDuration, time float64, startIndex, endIndex int, event *Event, scratch [][]float64) {
	if event.FadeIn <= 0 {
		return
	}
	fadeStart := event.StartTime
	fadeEnd := fadeStart + event.FadeIn
	if fadeEnd <= time {
		return
	}
	delta := sampleDuration / event.FadeIn
	start := dsp.Delerp(fadeStart, fadeEnd, time+float64(startIndex)*sampleDuration)
	if start >= 1 {
		return
	}
	for c := range scratch {
		phase := start
		buf := scratch[c]
		for j := 0; j < endIndex-startIndex && phase < 1; j++ {
			buf[j] *= event.FadeEase.At(phase)
			phase += delta
		}
	}
}

// applyFadeOut multiplies the rendered scratch by the fade-out envelope
// over [fadeIndex, endIndex) of the block.
func applyFadeOut(sampleDuration, time float64, startIndex, endIndex int, event *Event, scratch [][]float64) {
	if event.FadeOut <= 0 {
		return
	}
	fadeEnd := event.EndTime
	fadeStart := fadeEnd - event.FadeOut
	fadeIndex := startIndex
	if fadeStart > time+float64(startIndex)*sampleDuration {
		fadeIndex = dsp.RoundIndex((fadeStart - time) / sampleDuration)
		if fadeIndex >= endIndex {
			return
		}
	}
	delta := sampleDuration / event.FadeOut
	start := dsp.Delerp(fadeStart, fadeEnd, time+float64(fadeIndex)*sampleDuration)
	for c := range scratch {
		phase := start
		buf := scratch[c]
		for j := fadeIndex - startIndex; j < endIndex-startIndex; j++ {
			buf[j] *= event.FadeEase.At(1 - phase)
			phase += delta
		}
	}
}

// ID identifies the sequencer unit type.
func (s *Sequencer) ID() uint64 { return 64 }

// Route reports the sequencer as a zero-latency generator on every channel.
func (s *Sequencer) Route(input unit.Frame, frequency float64) unit.Frame {
	return unit.Generated(s.outputs)
}
