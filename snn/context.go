// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"sync/atomic"
)

// SpikeFunc is called whenever a neuron fires, from within that neuron's
// Process call (i.e., possibly from any worker goroutine).
type SpikeFunc func(nrn *Neuron)

// snn.Context holds all the state that is shared by every neuron and synapse
// in one simulation instance: unique id counters, the spike callback, and the
// simulated clock.  There is no package-level state -- two Contexts are
// completely independent simulations.
type Context struct {

	// last neuron id handed out -- ids start at 1
	lastNeurID atomic.Uint64

	// last synapse id handed out -- ids start at 1
	lastSynID atomic.Uint64

	// last symbol number handed out to an assembly detector
	lastSymID atomic.Uint64

	// spike callback, nil if not registered
	spikeFn atomic.Pointer[SpikeFunc]

	// simulated time in msec
	time atomicF64

	// total number of completed ticks since last Reset
	cycleTot atomic.Int64
}

// NewContext returns a new Context with the clock at 0
func NewContext() *Context {
	return &Context{}
}

// NewNeuronID returns the next unique neuron id
func (ctx *Context) NewNeuronID() uint64 {
	return ctx.lastNeurID.Add(1)
}

// NewSynapseID returns the next unique synapse id
func (ctx *Context) NewSynapseID() uint64 {
	return ctx.lastSynID.Add(1)
}

// NewSymbolID returns the next unique symbol number.  Every assembly
// detector watching this simulation draws from it, so symbols never repeat.
func (ctx *Context) NewSymbolID() uint64 {
	return ctx.lastSymID.Add(1)
}

// ClaimNeuronID registers an explicitly supplied neuron id, advancing the
// counter past it so that subsequent NewNeuronID calls never collide with it.
func (ctx *Context) ClaimNeuronID(id uint64) uint64 {
	claimID(&ctx.lastNeurID, id)
	return id
}

// ClaimSynapseID is the synapse version of ClaimNeuronID
func (ctx *Context) ClaimSynapseID(id uint64) uint64 {
	claimID(&ctx.lastSynID, id)
	return id
}

func claimID(ctr *atomic.Uint64, id uint64) {
	for {
		cur := ctr.Load()
		if cur >= id {
			return
		}
		if ctr.CompareAndSwap(cur, id) {
			return
		}
	}
}

// SetSpikeFunc registers the spike callback, replacing any previous one.
// Passing nil removes it.
func (ctx *Context) SetSpikeFunc(fn SpikeFunc) {
	if fn == nil {
		ctx.spikeFn.Store(nil)
		return
	}
	ctx.spikeFn.Store(&fn)
}

// SpikeFunc returns the registered spike callback, or nil
func (ctx *Context) SpikeFunc() SpikeFunc {
	fp := ctx.spikeFn.Load()
	if fp == nil {
		return nil
	}
	return *fp
}

// Time returns the current simulated time in msec
func (ctx *Context) Time() float64 {
	return ctx.time.Load()
}

// CycleTot returns the number of ticks completed since the last Reset
func (ctx *Context) CycleTot() int {
	return int(ctx.cycleTot.Load())
}

// Advance moves the clock forward by dt msec and counts one tick.
// Only the driver of the simulation should call this, once per tick.
func (ctx *Context) Advance(dt float32) {
	ctx.time.Add(float64(dt))
	ctx.cycleTot.Add(1)
}

// Reset resets the clock and tick counter back to zero.
// Id counters are never reset, so ids stay globally unique.
func (ctx *Context) Reset() {
	ctx.time.Store(0)
	ctx.cycleTot.Store(0)
}
