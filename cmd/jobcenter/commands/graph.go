package commands

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Swind/go-job-center/core"
)

// graphShape describes the synthetic job graph: Layers of Width jobs where every
// job depends on every job of the previous layer, closed by one sink job.
type graphShape struct {
	Layers int
	Width  int
	Work   time.Duration

	// MainEvery routes every Nth job to the main thread; 0 disables it.
	MainEvery int
}

func (s graphShape) validate() error {
	if s.Layers < 1 {
		return fmt.Errorf("layers must be at least 1, got %d", s.Layers)
	}
	if s.Width < 1 || s.Width > core.MaxBlockees {
		return fmt.Errorf("width must be in [1, %d], got %d", core.MaxBlockees, s.Width)
	}
	if s.Work < 0 {
		return fmt.Errorf("work must not be negative, got %s", s.Work)
	}
	if s.MainEvery < 0 {
		return fmt.Errorf("main-every must not be negative, got %d", s.MainEvery)
	}
	return nil
}

func (s graphShape) jobCount() int {
	return s.Layers*s.Width + 1
}

var backgroundRotation = []core.Category{
	core.CategoryGeneric,
	core.CategoryGenericSlow,
	core.CategoryIO,
}

func (s graphShape) category(layer, index int) core.Category {
	if s.MainEvery > 0 && (layer*s.Width+index)%s.MainEvery == s.MainEvery-1 {
		return core.CategoryMainThread
	}
	return backgroundRotation[index%len(backgroundRotation)]
}

type jobGraph struct {
	shape  graphShape
	center *core.Center
	layers [][]*core.Counter
	sink   *core.Counter

	layerDone   []atomic.Int64
	perCategory [core.CategoryCount]atomic.Int64

	// jobs that observed an unfinished prerequisite layer
	violations atomic.Int64
	// main-thread jobs that ran on a background worker
	offMainThread atomic.Int64
}

func buildGraph(center *core.Center, shape graphShape) (*jobGraph, error) {
	if err := shape.validate(); err != nil {
		return nil, err
	}

	g := &jobGraph{
		shape:     shape,
		center:    center,
		layers:    make([][]*core.Counter, shape.Layers),
		layerDone: make([]atomic.Int64, shape.Layers),
	}

	for layer := range g.layers {
		g.layers[layer] = make([]*core.Counter, shape.Width)
		for i := range g.layers[layer] {
			cat := shape.category(layer, i)
			c, err := center.Create(g.body(layer, cat), cat, core.WithName(fmt.Sprintf("L%d-J%d", layer, i)))
			if err != nil {
				return nil, err
			}
			g.layers[layer][i] = c

			if layer == 0 {
				continue
			}
			for _, prereq := range g.layers[layer-1] {
				if err := center.Chain(prereq, c); err != nil {
					return nil, fmt.Errorf("chain %s -> %s: %w", prereq, c, err)
				}
			}
		}
	}

	sink, err := center.Create(g.body(shape.Layers, core.CategoryGeneric), core.CategoryGeneric, core.WithName("sink"))
	if err != nil {
		return nil, err
	}
	for _, prereq := range g.layers[shape.Layers-1] {
		if err := center.Chain(prereq, sink); err != nil {
			return nil, fmt.Errorf("chain %s -> sink: %w", prereq, err)
		}
	}
	g.sink = sink
	return g, nil
}

func (g *jobGraph) body(layer int, cat core.Category) core.Task {
	return func(ctx context.Context) {
		if layer > 0 && g.layerDone[layer-1].Load() != int64(g.shape.Width) {
			g.violations.Add(1)
		}
		if cat == core.CategoryMainThread {
			if exec, _ := core.CurrentExecutor(ctx); exec != core.ConsumerExecutorID {
				g.offMainThread.Add(1)
			}
		}
		if g.shape.Work > 0 {
			time.Sleep(g.shape.Work)
		}
		g.perCategory[cat].Add(1)
		if layer < len(g.layerDone) {
			g.layerDone[layer].Add(1)
		}
	}
}

// dispatch hands the graph to the center sink first, so every dependent is
// dispatched before its prerequisites.
func (g *jobGraph) dispatch() error {
	if err := g.center.Dispatch(g.sink); err != nil {
		return err
	}
	for layer := len(g.layers) - 1; layer >= 0; layer-- {
		for _, c := range g.layers[layer] {
			if err := g.center.Dispatch(c); err != nil {
				return err
			}
		}
	}
	return nil
}
