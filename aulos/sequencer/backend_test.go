package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-aulos/aulos/dsp"
	"github.com/valerio/go-aulos/aulos/gen"
)

func renderBackend(b *Backend, total, blockSize int) []float64 {
	out := make([]float64, total)
	block := [][]float64{make([]float64, blockSize)}
	for done := 0; done < total; done += blockSize {
		n := blockSize
		if total-done < n {
			n = total - done
		}
		b.Process(n, nil, block)
		copy(out[done:done+n], block[0][:n])
	}
	return out
}

func TestBackendRendersStateFromBeforeSplit(t *testing.T) {
	front := New(false, 1)
	front.SetSampleRate(testRate)
	front.Push(0.0, 0.5, dsp.FadeSmooth, 0, 0, gen.NewDC(1.0))

	back := front.Backend()
	assert.True(t, front.HasBackend())

	out := renderBackend(back, 24000, 256)
	for i, v := range out {
		require.Equal(t, 1.0, v, "sample %d", i)
	}
}

func TestBackendRendersFrontendPushes(t *testing.T) {
	front := New(false, 1)
	front.SetSampleRate(testRate)
	back := front.Backend()

	front.Push(0.0, 0.25, dsp.FadeSmooth, 0, 0, gen.NewDC(1.0))
	out := renderBackend(back, 24000, 256)
	for i := 0; i < 12000; i++ {
		require.Equal(t, 1.0, out[i], "sample %d", i)
	}
	for i := 12000; i < 24000; i++ {
		require.Equal(t, 0.0, out[i], "sample %d", i)
	}
}

func TestPushRelativeResolvesOnBackendClock(t *testing.T) {
	front := New(false, 1)
	front.SetSampleRate(testRate)
	back := front.Backend()

	// Advance the backend half a second before the message arrives.
	renderBackend(back, 24000, 256)

	front.PushRelative(0.25, 0.5, dsp.FadeSmooth, 0, 0, gen.NewDC(1.0))
	out := renderBackend(back, 48000, 256)

	// Relative times resolve against the backend's clock at consumption:
	// the event occupies [0.75, 1.0) in stream time, [12000, 24000) here.
	for i := 0; i < 12000; i++ {
		require.Equal(t, 0.0, out[i], "sample %d before relative start", i)
	}
	for i := 12000; i < 24000; i++ {
		require.Equal(t, 1.0, out[i], "sample %d inside relative event", i)
	}
	for i := 24000; i < 48000; i++ {
		require.Equal(t, 0.0, out[i], "sample %d after relative end", i)
	}
}

func TestExpiredEventsReturnToFrontend(t *testing.T) {
	front := New(false, 1)
	front.SetSampleRate(testRate)
	back := front.Backend()

	front.Push(0.0, 0.1, dsp.FadeSmooth, 0, 0, gen.NewDC(1.0))
	renderBackend(back, 9600, 256)

	assert.Empty(t, back.seq.past, "the backend must not hold on to expired events")
	assert.Len(t, back.returns, 1, "the expired event should be queued back to the frontend")

	// The next frontend operation drains and drops it.
	front.Push(10.0, 11.0, dsp.FadeSmooth, 0, 0, gen.NewDC(1.0))
	assert.Len(t, back.returns, 0)
}

func TestEditOverBackendCutsEvent(t *testing.T) {
	front := New(false, 1)
	front.SetSampleRate(testRate)
	back := front.Backend()

	id := front.Push(0.0, 10.0, dsp.FadeSmooth, 0, 0, gen.NewDC(1.0))
	renderBackend(back, 4800, 256)

	front.EditRelative(id, 0, 0)
	out := renderBackend(back, 512, 256)
	for i, v := range out {
		require.Equal(t, 0.0, v, "sample %d after the cut", i)
	}
	assert.Len(t, back.returns, 1, "the cut event should come back for deallocation")
}

func TestBackendTwicePanics(t *testing.T) {
	front := New(false, 1)
	front.Backend()
	assert.Panics(t, func() { front.Backend() })
}

func TestFrontendPushAfterSplitDoesNotRenderLocally(t *testing.T) {
	front := New(false, 1)
	front.SetSampleRate(testRate)
	front.Backend()
	front.Push(0.0, 1.0, dsp.FadeSmooth, 0, 0, gen.NewDC(1.0))

	assert.Empty(t, front.active)
	assert.Zero(t, front.ready.Len())
	assert.Zero(t, front.Time())
}

func TestReplayBackendKeepsEvents(t *testing.T) {
	front := New(true, 1)
	front.SetSampleRate(testRate)
	back := front.Backend()

	front.Push(0.0, 0.1, dsp.FadeSmooth, 0, 0, gen.NewSine(440))
	first := renderBackend(back, 9600, 256)
	assert.Len(t, back.returns, 0, "replay backends keep expired events")

	back.Reset()
	second := renderBackend(back, 9600, 256)
	assert.Equal(t, first, second)
}

func TestMessageOrderIsFIFO(t *testing.T) {
	front := New(false, 1)
	front.SetSampleRate(testRate)
	back := front.Backend()

	// A push immediately followed by an edit of the same event, consumed in
	// one drain: the edit applies on promotion.
	id := front.Push(0.0, 10.0, dsp.FadeSmooth, 0, 0, gen.NewDC(1.0))
	front.Edit(id, 0.1, 0)

	out := renderBackend(back, 9600, 256)
	for i := 0; i < 4800; i++ {
		require.Equal(t, 1.0, out[i], "sample %d", i)
	}
	for i := 4800; i < 9600; i++ {
		require.Equal(t, 0.0, out[i], "sample %d", i)
	}
}
