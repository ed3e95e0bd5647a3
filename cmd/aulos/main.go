package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
	"github.com/urfave/cli"

	"github.com/valerio/go-aulos/aulos/dsp"
	"github.com/valerio/go-aulos/aulos/gen"
	"github.com/valerio/go-aulos/aulos/resynth"
	"github.com/valerio/go-aulos/aulos/sequencer"
)

// masterGain keeps the summed voices out of clipping at the device
// boundary. The sequencer itself mixes at unit gain.
const masterGain = 0.2

func main() {
	app := cli.NewApp()
	app.Name = "Aulos"
	app.Description = "A sample-accurate audio sequencer and spectral resynthesizer"
	app.Usage = "aulos [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "out",
			Usage: "Render the demo schedule to a WAV file instead of playing it",
		},
		cli.Float64Flag{
			Name:  "duration",
			Usage: "Length of the demo schedule in seconds",
			Value: 8.0,
		},
		cli.Float64Flag{
			Name:  "sample-rate",
			Usage: "Sample rate in Hz",
			Value: 44100,
		},
		cli.IntFlag{
			Name:  "block",
			Usage: "Block size in frames",
			Value: 256,
		},
		cli.BoolFlag{
			Name:  "spectral",
			Usage: "Route the mix through a resynthesis low-pass",
		},
	}
	app.Action = run

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running aulos", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	duration := c.Float64("duration")
	sampleRate := c.Float64("sample-rate")
	block := c.Int("block")
	if duration <= 0 || sampleRate <= 0 || block <= 0 {
		return errors.New("duration, sample-rate and block must be positive")
	}

	if out := c.String("out"); out != "" {
		return renderFile(out, sampleRate, block, duration, c.Bool("spectral"))
	}
	return play(sampleRate, block, duration, c.Bool("spectral"))
}

// buildSchedule pushes a small arpeggio with power crossfades plus a noise
// swell onto the sequencer (or its frontend).
func buildSchedule(s *sequencer.Sequencer, duration float64) {
	freqs := []float64{220, 277.18, 329.63, 440}
	const step = 0.5
	const hold = 2.0
	for i := 0; ; i++ {
		start := float64(i) * step
		if start+hold > duration {
			break
		}
		s.Push(start, start+hold, dsp.FadePower, 0.25, 0.75, gen.NewSine(freqs[i%len(freqs)]))
	}
	s.Push(0, duration, dsp.FadeSmooth, duration/2, duration/2, gen.NewNoise())
}

// lowpass keeps the bottom quarter of the spectrum and discards the rest.
func lowpass(w *resynth.Window) {
	for i := 0; i < w.Bins()/4; i++ {
		w.Set(0, i, w.At(0, i))
	}
}

func newEffect(sampleRate float64) *resynth.Resynth {
	effect := resynth.New(1, 1, 1024, lowpass)
	effect.SetSampleRate(sampleRate)
	return effect
}

func play(sampleRate float64, block int, duration float64, spectral bool) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	front := sequencer.New(false, 1)
	front.SetSampleRate(sampleRate)
	back := front.Backend()
	buildSchedule(front, duration)

	var effect *resynth.Resynth
	if spectral {
		effect = newEffect(sampleRate)
	}

	dry := [][]float64{make([]float64, block)}
	wet := [][]float64{make([]float64, block)}
	callback := func(out [][]float32) {
		n := len(out[0])
		back.Process(n, nil, dry)
		src := dry
		if effect != nil {
			effect.Process(n, dry, wet)
			src = wet
		}
		for i := 0; i < n; i++ {
			v := float32(src[0][i] * masterGain)
			out[0][i] = v
			out[1][i] = v
		}
	}

	stream, err := portaudio.OpenDefaultStream(0, 2, sampleRate, block, callback)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	slog.Info("Playing", "duration", duration, "sampleRate", sampleRate, "spectral", spectral)

	tail := 0.0
	if effect != nil {
		tail = 2 * effect.Latency()
	}
	time.Sleep(time.Duration((duration + tail) * float64(time.Second)))
	return stream.Stop()
}

func renderFile(path string, sampleRate float64, block int, duration float64, spectral bool) error {
	s := sequencer.New(false, 1)
	s.SetSampleRate(sampleRate)
	buildSchedule(s, duration)

	var effect *resynth.Resynth
	if spectral {
		effect = newEffect(sampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, int(sampleRate), 16, 1, 1)
	dry := [][]float64{make([]float64, block)}
	wet := [][]float64{make([]float64, block)}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: int(sampleRate)},
		SourceBitDepth: 16,
		Data:           make([]int, block),
	}

	total := int(duration * sampleRate)
	for done := 0; done < total; done += block {
		n := block
		if total-done < n {
			n = total - done
		}
		s.Process(n, nil, dry)
		src := dry
		if effect != nil {
			effect.Process(n, dry, wet)
			src = wet
		}
		buf.Data = buf.Data[:n]
		for i := 0; i < n; i++ {
			buf.Data[i] = clamp16(src[0][i] * masterGain)
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("failed to write samples: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	slog.Info("Rendered", "path", path, "samples", total, "sampleRate", sampleRate)
	return nil
}

func clamp16(v float64) int {
	scaled := v * math.MaxInt16
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int(scaled)
}
