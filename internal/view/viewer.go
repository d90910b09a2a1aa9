// Package view renders a live population in the terminal.
package view

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"seekers/internal/agent"
	"seekers/internal/evo"
	"seekers/internal/model"
)

const (
	DefaultFPS    = 60
	headerRows    = 1
	agentGlyph    = '●'
	deadGlyph     = '•'
	targetGlyph   = 'X'
	quitHintLabel = "q/esc quit"
)

type Options struct {
	// FPS is the frame rate; 0 means DefaultFPS.
	FPS int
	// TicksPerFrame advances the simulation this many ticks per frame; 0 means 1.
	TicksPerFrame int
	// MaxGenerations stops the viewer after that many completed
	// generations; 0 runs until the user quits.
	MaxGenerations int
	// OnEpoch is called after each completed generation. An error stops Run.
	OnEpoch func(report evo.EpochReport, elapsed time.Duration) error
	Chime   *Chime
}

type Viewer struct {
	screen tcell.Screen
	pop    *evo.Population
	opts   Options

	completed  int
	lastMean   float64
	hasMean    bool
	epochStart time.Time
}

func New(screen tcell.Screen, pop *evo.Population, opts Options) *Viewer {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.TicksPerFrame <= 0 {
		opts.TicksPerFrame = 1
	}
	return &Viewer{screen: screen, pop: pop, opts: opts, epochStart: time.Now()}
}

// Run draws frames until the user quits, ctx is cancelled, or MaxGenerations
// generations have completed. The caller owns the screen's Init and Fini.
func (v *Viewer) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(v.opts.FPS))
	defer ticker.Stop()

	v.Draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			if v.handleEvent(ev) {
				return nil
			}
		case <-ticker.C:
			if err := v.Advance(); err != nil {
				return err
			}
			v.Draw()
			if v.opts.MaxGenerations > 0 && v.completed >= v.opts.MaxGenerations {
				return nil
			}
		}
	}
}

// Advance runs one frame worth of ticks and, when the generation finishes,
// the epoch that replaces it.
func (v *Viewer) Advance() error {
	for i := 0; i < v.opts.TicksPerFrame; i++ {
		if !v.pop.IsGenerationComplete() {
			v.pop.Tick()
			continue
		}
		report, err := v.pop.RunEpoch()
		if err != nil {
			return err
		}
		elapsed := time.Since(v.epochStart)
		v.epochStart = time.Now()
		v.completed++
		v.lastMean = report.MeanFitness
		v.hasMean = true
		v.opts.Chime.Play()
		if v.opts.OnEpoch != nil {
			if err := v.opts.OnEpoch(report, elapsed); err != nil {
				return err
			}
		}
		if v.opts.MaxGenerations > 0 && v.completed >= v.opts.MaxGenerations {
			return nil
		}
	}
	return nil
}

// Completed is the number of generations finished since the viewer started.
func (v *Viewer) Completed() int {
	return v.completed
}

func (v *Viewer) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyRune:
			if ev.Rune() == 'q' || ev.Rune() == 'Q' {
				return true
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return false
}

func (v *Viewer) Draw() {
	v.screen.Clear()
	cols, rows := v.screen.Size()
	if cols <= 0 || rows <= headerRows {
		v.screen.Show()
		return
	}

	v.drawHeader(cols)

	cfg := v.pop.Config().Simulation
	style := tcell.StyleDefault
	for _, a := range v.pop.Agents() {
		x, y := v.cell(cfg, a.Position(), cols, rows)
		glyph := agentGlyph
		if !a.Alive() {
			glyph = deadGlyph
		}
		c := a.Color()
		v.screen.SetContent(x, y, glyph, nil, style.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))))
	}

	// The target is drawn last so it stays visible under a crowd.
	tx, ty := v.cellCenter(cfg, cfg.Target, cols, rows)
	v.screen.SetContent(tx, ty, targetGlyph, nil, tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true))

	v.screen.Show()
}

func (v *Viewer) drawHeader(cols int) {
	mean := "-"
	if v.hasMean {
		mean = fmt.Sprintf("%.2f", v.lastMean)
	}
	text := fmt.Sprintf("generation %d  tick %d  mean %s  %s", v.pop.Generation(), v.pop.Ticks(), mean, quitHintLabel)
	style := tcell.StyleDefault.Reverse(true)
	col := 0
	for _, r := range text {
		if col >= cols {
			break
		}
		v.screen.SetContent(col, 0, r, nil, style)
		col++
	}
	for ; col < cols; col++ {
		v.screen.SetContent(col, 0, ' ', nil, style)
	}
}

// cell maps an agent's top-left world position to the terminal cell under the
// centre of its body.
func (v *Viewer) cell(cfg agent.SimulationConfig, pos model.Vec2, cols, rows int) (int, int) {
	center := pos.Add(model.Vec2{X: cfg.Body.Width / 2, Y: cfg.Body.Height / 2})
	return v.cellCenter(cfg, center, cols, rows)
}

func (v *Viewer) cellCenter(cfg agent.SimulationConfig, p model.Vec2, cols, rows int) (int, int) {
	return scale(p.X, cfg.Bounds.Width, cols), headerRows + scale(p.Y, cfg.Bounds.Height, rows-headerRows)
}

func scale(v, extent float64, cells int) int {
	if extent <= 0 || cells <= 0 {
		return 0
	}
	i := int(math.Floor(v / extent * float64(cells)))
	if i < 0 {
		return 0
	}
	if i >= cells {
		return cells - 1
	}
	return i
}
