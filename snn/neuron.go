// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"slices"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/c2h5oh/datasize"
)

// snn.Neuron is the atomic 3-state spiking unit.  It integrates the weighted
// input of its receiving synapses into a bounded activation value, fires when
// the activation crosses threshold, and is then refractory for a fixed period.
//
// Activation, state and the refractory timer are independent atomics: readers
// on other goroutines get each value individually, with no guarantee that a
// (state, activation) pair was read from the same tick.
type Neuron struct {

	// globally unique (per Context) id, assigned at creation
	ID uint64

	// arena handle of this neuron in its Network
	Handle NeuronHandle

	// integration and firing parameters -- set before processing starts
	Params NeuronParams

	ctx *Context

	// activation in [0, 1]
	act atomicF32

	// current NeurStates
	state atomic.Int32

	// remaining refractory time (msec)
	refrac atomicF32

	// number of spikes since last Reset
	fireCount atomic.Uint64

	// number of ticks dropped because the synapse lists were contended
	skips atomic.Uint64

	// true if the neuron fired on its most recent processed tick
	spiked atomic.Bool

	// simulated time of the last spike, -1 if never
	lastSpike atomicF64

	// synMu protects recvSyns and sendSyns.  Process only ever TryLocks it.
	synMu    sync.Mutex
	recvSyns []*Synapse
	sendSyns []*Synapse
}

func newNeuron(ctx *Context, id uint64, hnd NeuronHandle, np *NeuronParams) *Neuron {
	nrn := &Neuron{ID: id, Handle: hnd, ctx: ctx}
	if np != nil {
		nrn.Params = *np
	} else {
		nrn.Params.Defaults()
	}
	nrn.lastSpike.Store(-1)
	return nrn
}

// Act returns the current activation
func (nrn *Neuron) Act() float32 {
	return nrn.act.Load()
}

// SetAct sets the activation directly, clamped to [0, 1]
func (nrn *Neuron) SetAct(act float32) {
	nrn.act.Store(clamp01(act))
}

// Inject adds amt to the activation, clamped to [0, 1], and returns the new value.
// Used for external input (e.g., working memory pattern injection).
func (nrn *Neuron) Inject(amt float32) float32 {
	return nrn.act.Update(func(cur float32) float32 {
		return clamp01(cur + amt)
	})
}

// State returns the current state
func (nrn *Neuron) State() NeurStates {
	return NeurStates(nrn.state.Load())
}

// IsFiring returns true if the neuron fired on its most recently processed tick
func (nrn *Neuron) IsFiring() bool {
	return nrn.spiked.Load()
}

// FireCount returns the number of spikes since the last Reset
func (nrn *Neuron) FireCount() uint64 {
	return nrn.fireCount.Load()
}

// Skips returns the number of ticks skipped due to synapse list contention
func (nrn *Neuron) Skips() uint64 {
	return nrn.skips.Load()
}

// RefracTimer returns the remaining refractory time
func (nrn *Neuron) RefracTimer() float32 {
	return nrn.refrac.Load()
}

// LastSpike returns the simulated time (msec) of the last spike, or -1
func (nrn *Neuron) LastSpike() float64 {
	return nrn.lastSpike.Load()
}

// Process advances the neuron by one tick of duration dt.
//
// A refractory neuron only counts down its timer.  Otherwise the receiving
// synapse list is acquired without blocking -- if another goroutine holds it,
// the whole tick is skipped for this neuron.  A spike calls the Context spike
// callback and propagates the new activation through all sending synapses
// (skipped, again, if that list is contended) before the neuron enters
// Refractory.
func (nrn *Neuron) Process(dt float32) {
	if nrn.State() == Refractory {
		nrn.spiked.Store(false)
		tm := nrn.refrac.Load() - dt
		if tm <= 0 {
			nrn.refrac.Store(0)
			nrn.state.Store(int32(Inactive))
		} else {
			nrn.refrac.Store(tm)
		}
		return
	}

	if !nrn.synMu.TryLock() {
		nrn.skips.Add(1)
		return
	}
	recv := slices.Clone(nrn.recvSyns)
	nrn.synMu.Unlock()

	sum := float32(0)
	for _, sy := range recv {
		sum += sy.WeightedInput()
	}
	np := &nrn.Params
	nw := clamp01((nrn.act.Load() + sum*dt) * (1 - np.DecayRate*dt))
	nrn.act.Store(nw)
	nrn.spiked.Store(false)

	st := nrn.State()
	switch {
	case nw >= np.Thr && st != Active:
		nrn.fire(nw)
	case nw < np.Thr && st == Active:
		nrn.state.Store(int32(Inactive))
	}
}

// fire handles the spike: Active, callback, propagation, then Refractory
func (nrn *Neuron) fire(act float32) {
	nrn.state.Store(int32(Active))
	nrn.fireCount.Add(1)
	nrn.spiked.Store(true)
	if nrn.ctx != nil {
		nrn.lastSpike.Store(nrn.ctx.Time())
		if fn := nrn.ctx.SpikeFunc(); fn != nil {
			fn(nrn)
		}
	}
	if nrn.synMu.TryLock() {
		send := slices.Clone(nrn.sendSyns)
		nrn.synMu.Unlock()
		for _, sy := range send {
			sy.PropagateSignal(act)
		}
	} else {
		nrn.skips.Add(1)
	}
	nrn.refrac.Store(nrn.Params.RefracPeriod)
	nrn.state.Store(int32(Refractory))
}

// Reset zeroes activation, state, timer and counters.
// Synapse connections are not affected.
func (nrn *Neuron) Reset() {
	nrn.act.Store(0)
	nrn.state.Store(int32(Inactive))
	nrn.refrac.Store(0)
	nrn.fireCount.Store(0)
	nrn.skips.Store(0)
	nrn.spiked.Store(false)
	nrn.lastSpike.Store(-1)
}

///////////////////////////////////////////////////////////////////////
//  Connection management

// RecvSyns returns a copy of the receiving (input) synapse list
func (nrn *Neuron) RecvSyns() []*Synapse {
	nrn.synMu.Lock()
	defer nrn.synMu.Unlock()
	return slices.Clone(nrn.recvSyns)
}

// SendSyns returns a copy of the sending (output) synapse list
func (nrn *Neuron) SendSyns() []*Synapse {
	nrn.synMu.Lock()
	defer nrn.synMu.Unlock()
	return slices.Clone(nrn.sendSyns)
}

func (nrn *Neuron) addRecv(sy *Synapse) {
	nrn.synMu.Lock()
	nrn.recvSyns = append(nrn.recvSyns, sy)
	nrn.synMu.Unlock()
}

func (nrn *Neuron) addSend(sy *Synapse) {
	nrn.synMu.Lock()
	nrn.sendSyns = append(nrn.sendSyns, sy)
	nrn.synMu.Unlock()
}

func (nrn *Neuron) removeSyn(sy *Synapse) bool {
	nrn.synMu.Lock()
	defer nrn.synMu.Unlock()
	found := false
	if i := slices.Index(nrn.recvSyns, sy); i >= 0 {
		nrn.recvSyns = slices.Delete(nrn.recvSyns, i, i+1)
		found = true
	}
	if i := slices.Index(nrn.sendSyns, sy); i >= 0 {
		nrn.sendSyns = slices.Delete(nrn.sendSyns, i, i+1)
		found = true
	}
	return found
}

// MemSize returns the approximate memory footprint of the neuron in bytes,
// including its synapse lists (not the synapses themselves)
func (nrn *Neuron) MemSize() int {
	nrn.synMu.Lock()
	nsyn := cap(nrn.recvSyns) + cap(nrn.sendSyns)
	nrn.synMu.Unlock()
	return int(unsafe.Sizeof(Neuron{})) + nsyn*int(unsafe.Sizeof(uintptr(0)))
}

// MemString returns MemSize in human readable form
func (nrn *Neuron) MemString() string {
	return datasize.ByteSize(nrn.MemSize()).HumanReadable()
}
