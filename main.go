package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gordonklaus/portaudio"
	"github.com/urfave/cli"

	"github.com/valerio/go-aulos/aulos/dsp"
	"github.com/valerio/go-aulos/aulos/gen"
	"github.com/valerio/go-aulos/aulos/sequencer"
)

const (
	sampleRate = 44100.0
	blockSize  = 256

	// Meter display refresh; the audio callback runs much faster and the
	// meter just samples its latest peak.
	meterFrame = time.Second / 30

	meterWidth = 60
	masterGain = 0.2
)

// Characters for the level bar, from full to empty.
var barChars = []rune{'█', '▓', '▒', '░'}

// MeterPlayer drives a sequencer backend into the default output device
// while drawing a peak meter in the terminal.
type MeterPlayer struct {
	screen  tcell.Screen
	backend *sequencer.Backend
	running bool

	// Peak level of the most recent block, stored as float64 bits so the
	// audio callback never blocks on the UI.
	peak atomic.Uint64
}

func NewMeterPlayer(backend *sequencer.Backend) (*MeterPlayer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}

	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}

	return &MeterPlayer{
		screen:  screen,
		backend: backend,
		running: true,
	}, nil
}

func (m *MeterPlayer) Run(duration float64) error {
	defer func() {
		slog.Info("Finishing terminal")
		m.screen.Fini()
	}()

	m.screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite))
	m.screen.Clear()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %v", err)
	}
	defer portaudio.Terminate()

	dry := [][]float64{make([]float64, blockSize)}
	stream, err := portaudio.OpenDefaultStream(0, 2, sampleRate, blockSize, func(out [][]float32) {
		n := len(out[0])
		m.backend.Process(n, nil, dry)
		peak := 0.0
		for i := 0; i < n; i++ {
			v := dry[0][i] * masterGain
			peak = math.Max(peak, math.Abs(v))
			out[0][i] = float32(v)
			out[1][i] = float32(v)
		}
		m.peak.Store(math.Float64bits(peak))
	})
	if err != nil {
		return fmt.Errorf("failed to open output stream: %v", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %v", err)
	}
	defer stream.Stop()

	// Handle input in a separate goroutine
	go m.handleInput()

	ticker := time.NewTicker(meterFrame)
	defer ticker.Stop()

	// catch SIGINT and SIGTERM
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	deadline := time.After(time.Duration(duration * float64(time.Second)))
	for m.running {
		select {
		case <-ticker.C:
			m.drawMeter()
			m.screen.Show()
		case <-deadline:
			m.running = false
		case <-signals:
			m.running = false
			slog.Info("Received signal to stop")
			return nil
		}
	}

	return nil
}

func (m *MeterPlayer) handleInput() {
	for m.running {
		ev := m.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyEscape:
				m.running = false
				return
			}
		case *tcell.EventResize:
			m.screen.Sync()
		}
	}
}

func (m *MeterPlayer) drawMeter() {
	peak := math.Float64frombits(m.peak.Load())
	filled := int(peak * meterWidth)
	if filled > meterWidth {
		filled = meterWidth
	}

	m.screen.Clear()
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	for x := 0; x < meterWidth; x++ {
		char := barChars[len(barChars)-1]
		if x < filled {
			// Shade the tip of the bar to soften the edge.
			switch {
			case x >= filled-1:
				char = barChars[2]
			case x >= filled-2:
				char = barChars[1]
			default:
				char = barChars[0]
			}
		}
		m.screen.SetContent(x+1, 1, char, nil, style)
	}
	label := fmt.Sprintf("peak %5.3f  t %6.2fs  (esc to quit)", peak, m.backend.Time())
	for i, r := range label {
		m.screen.SetContent(i+1, 3, r, nil, style)
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "Aulos"
	app.Description = "A sample-accurate audio sequencer and spectral resynthesizer"
	app.Usage = "aulos [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.Float64Flag{
			Name:  "duration",
			Usage: "Length of the demo schedule in seconds",
			Value: 8.0,
		},
	}
	app.Action = runPlayer

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running aulos", "error", err)
		os.Exit(1)
	}
}

func runPlayer(c *cli.Context) error {
	duration := c.Float64("duration")

	front := sequencer.New(false, 1)
	front.SetSampleRate(sampleRate)
	back := front.Backend()

	// A rising scale with power crossfades, and a noise swell underneath.
	freqs := []float64{220, 246.94, 277.18, 329.63, 369.99, 440}
	for i, freq := range freqs {
		start := float64(i) * duration / float64(len(freqs)+1)
		end := start + 2*duration/float64(len(freqs)+1)
		fade := math.Min(0.5, (end-start)/2)
		front.Push(start, end, dsp.FadePower, fade, fade, gen.NewSine(freq))
	}
	front.Push(0, duration, dsp.FadeSmooth, duration/2, duration/2, gen.NewNoise())

	player, err := NewMeterPlayer(back)
	if err != nil {
		return err
	}

	return player.Run(duration)
}
