package view

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const (
	chimeSampleRate = beep.SampleRate(44100)
	chimeFrequency  = 880.0
	chimeDuration   = 120 * time.Millisecond
	chimeVolume     = 0.2
)

// Chime plays a short tone each time a generation completes. Playback is
// best effort: without an audio device Init fails and Play does nothing.
type Chime struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	initialized bool
}

func NewChime() *Chime {
	return &Chime{mixer: &beep.Mixer{}}
}

func (c *Chime) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if err := speaker.Init(chimeSampleRate, chimeSampleRate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(c.mixer)
	c.initialized = true
	return nil
}

func (c *Chime) Play() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return
	}
	speaker.Lock()
	c.mixer.Add(newTone(chimeSampleRate, chimeFrequency, chimeDuration))
	speaker.Unlock()
}

func (c *Chime) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return
	}
	speaker.Lock()
	c.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	c.initialized = false
}

// tone is a sine wave with a linear fade out.
type tone struct {
	rate     beep.SampleRate
	freq     float64
	duration int
	position int
}

func newTone(rate beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	return &tone{rate: rate, freq: freq, duration: rate.N(d)}
}

func (t *tone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if t.position >= t.duration {
			return i, i > 0
		}
		fade := 1 - float64(t.position)/float64(t.duration)
		val := chimeVolume * fade * math.Sin(2*math.Pi*t.freq*float64(t.position)/float64(t.rate))
		samples[i][0] = val
		samples[i][1] = val
		t.position++
	}
	return len(samples), true
}

func (t *tone) Err() error { return nil }
