package sequencer

import "github.com/valerio/go-aulos/aulos/unit"

// queueCapacity is the size of each message queue between a frontend and
// its backend. Large enough that running out of space under a realistic
// burst of scheduling is vanishingly rare; when it does happen the message
// is dropped rather than blocking either thread.
const queueCapacity = 16384

type messageKind int

const (
	msgPush messageKind = iota
	msgPushRelative
	msgEdit
	msgEditRelative
)

// message travels over the control→audio queue.
type message struct {
	kind  messageKind
	event *Event
	id    EventID
	edit  Edit
}

// frontChannels is the frontend's pair of queue endpoints. Both queues are
// single-producer single-consumer: the control thread owns one end of each,
// the audio thread the other. Buffered channels used exclusively in
// non-blocking mode give the bounded lock-free handoff and the memory
// ordering we need.
type frontChannels struct {
	send    chan<- message
	returns <-chan *Event
}

// drainReturns frees expired events sent back by the backend. Dropping them
// on the control thread is the point: the audio thread never deallocates.
func (f *frontChannels) drainReturns() {
	for {
		select {
		case <-f.returns:
		default:
			return
		}
	}
}

// trySend forwards a message without blocking. On a full queue the message
// is silently dropped; callers are expected to size for their peak burst.
func (f *frontChannels) trySend(m message) {
	select {
	case f.send <- m:
	default:
	}
}

// Backend is the audio-thread half of a split sequencer. It owns the full
// sequencer state and renders it; the frontend that created it forwards
// pushes and edits over a bounded queue and receives expired events back
// for deallocation.
type Backend struct {
	seq     *Sequencer
	recv    <-chan message
	returns chan<- *Event
}

var _ unit.Unit = (*Backend)(nil)

// Backend splits this sequencer. The current state moves into the returned
// backend; this sequencer becomes the frontend and from now on only
// forwards messages. May be called once per sequencer.
func (s *Sequencer) Backend() *Backend {
	if s.front != nil {
		panic("sequencer: Backend may be called only once")
	}
	send := make(chan message, queueCapacity)
	returns := make(chan *Event, queueCapacity)

	back := New(s.replayEvents, s.outputs)
	back.active, s.active = s.active, back.active
	back.activeMap, s.activeMap = s.activeMap, back.activeMap
	back.activeThreshold = s.activeThreshold
	back.ready, s.ready = s.ready, back.ready
	back.past, s.past = s.past, back.past
	back.editMap, s.editMap = s.editMap, back.editMap
	back.time = s.time
	back.sampleRate = s.sampleRate
	back.sampleDuration = s.sampleDuration
	back.retainPast = !s.replayEvents
	back.Allocate()

	s.front = &frontChannels{send: send, returns: returns}
	return &Backend{seq: back, recv: send, returns: returns}
}

// handleMessages drains the inbound queue. Relative times are resolved
// against the backend's clock here, on arrival.
func (b *Backend) handleMessages() {
	for {
		select {
		case m := <-b.recv:
			switch m.kind {
			case msgPush:
				b.seq.pushEvent(m.event)
			case msgPushRelative:
				b.seq.pushRelativeEvent(m.event)
			case msgEdit:
				b.seq.applyEdit(m.id, m.edit)
			case msgEditRelative:
				b.seq.applyEdit(m.id, Edit{EndTime: b.seq.time + m.edit.EndTime, FadeOut: m.edit.FadeOut})
			}
		default:
			return
		}
	}
}

// sendPast forwards expired events to the frontend for deallocation. On a
// full return queue the remaining events stay in past until a later block
// finds space.
func (b *Backend) sendPast() {
	for len(b.seq.past) > 0 {
		last := len(b.seq.past) - 1
		select {
		case b.returns <- b.seq.past[last]:
			b.seq.past[last] = nil
			b.seq.past = b.seq.past[:last]
		default:
			return
		}
	}
}

// Time returns the backend's current time in seconds.
func (b *Backend) Time() float64 { return b.seq.time }

// Inputs returns 0; the sequencer is a pure generator.
func (b *Backend) Inputs() int { return 0 }

// Outputs returns the number of output channels.
func (b *Backend) Outputs() int { return b.seq.outputs }

// SetSampleRate propagates the sample rate to the sequencer state.
func (b *Backend) SetSampleRate(rate float64) { b.seq.SetSampleRate(rate) }

// Allocate preallocates rendering scratch.
func (b *Backend) Allocate() { b.seq.Allocate() }

// Reset rewinds the backend; replay semantics follow the sequencer's
// replayEvents setting.
func (b *Backend) Reset() { b.seq.Reset() }

// Tick renders one frame on the audio thread.
func (b *Backend) Tick(input, output []float64) {
	b.handleMessages()
	b.seq.Tick(input, output)
	if !b.seq.replayEvents {
		b.sendPast()
	}
}

// Process renders a block on the audio thread.
func (b *Backend) Process(size int, input, output [][]float64) {
	b.handleMessages()
	b.seq.Process(size, input, output)
	if !b.seq.replayEvents {
		b.sendPast()
	}
}

// ID identifies the sequencer backend unit type.
func (b *Backend) ID() uint64 { return 65 }

// Route reports the backend as a zero-latency generator on every channel.
func (b *Backend) Route(input unit.Frame, frequency float64) unit.Frame {
	return unit.Generated(b.seq.outputs)
}
