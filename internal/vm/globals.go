package vm

import (
	"matl/internal/strtable"
	"matl/internal/value"
)

// Globals is the C3-style name -> slot table paired with an ordered value
// vector (spec.md §4.5 "Globals (C3-style)"). It outlives any single Run
// call: the runtime facade keeps one Globals alive for the whole session so
// a REPL's successive inputs see each other's definitions.
type Globals struct {
	names  *strtable.Table
	values []value.Value
}

func NewGlobals() *Globals {
	return &Globals{names: strtable.New(4)}
}

// Get reads the current value bound to name.
func (g *Globals) Get(name string) (value.Value, bool) {
	slot, ok := g.names.Get(name)
	if !ok {
		return value.Nil, false
	}
	return g.values[slot], true
}

// Names returns every bound global name, for Runtime.Destroy's teardown
// sweep (spec.md §4.6 "destroy... releases... the globals (with
// refcounting)").
func (g *Globals) Names() []string {
	return g.names.Keys()
}

// Set binds name to v, releasing whatever it was previously bound to.
// Ownership of v transfers to Globals — the caller must not release it
// afterwards.
func (g *Globals) Set(name string, v value.Value) {
	slot := g.names.Put(name, uint32(len(g.values)))
	if int(slot) == len(g.values) {
		g.values = append(g.values, v)
		return
	}
	value.Release(g.values[slot])
	g.values[slot] = v
}
