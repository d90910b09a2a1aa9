package evo

import (
	"github.com/sourcegraph/conc/pool"

	"seekers/internal/agent"
)

// forEachAgent applies fn to every agent and returns once all calls are done.
// fn must only touch the agent it is given.
func forEachAgent(agents []*agent.Agent, workers int, fn func(*agent.Agent)) {
	if workers <= 1 || len(agents) <= 1 {
		for _, a := range agents {
			fn(a)
		}
		return
	}
	if workers > len(agents) {
		workers = len(agents)
	}

	p := pool.New().WithMaxGoroutines(workers)
	for _, a := range agents {
		a := a // per-iteration copy; module targets go1.21 loop semantics
		p.Go(func() {
			fn(a)
		})
	}
	p.Wait()
}
