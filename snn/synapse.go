// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"sync"
	"sync/atomic"

	"github.com/goki/mat32"
)

// DelayedSignal is a propagated signal waiting in a synapse delay queue
type DelayedSignal struct {

	// signal strength times weight at the time of propagation
	Strength float32

	// simulated time (msec) at which the signal is due
	Due float64
}

// snn.Synapse is a directed, weighted, plastic connection from a source to a
// target neuron.  It holds only arena handles to its endpoints, so it never
// keeps a neuron alive: once either endpoint is removed from the Network the
// synapse is inert, contributing 0 input and ignoring propagation and learning.
type Synapse struct {

	// globally unique (per Context) id, assigned at creation
	ID uint64

	// handle of the sending (pre-synaptic) neuron
	Src NeuronHandle

	// handle of the receiving (post-synaptic) neuron
	Dst NeuronHandle

	// parameters, typically shared across all synapses of a projection
	Params *SynParams

	net *Network

	// current weight, always within [WtMin, WtMax]
	wt atomicF32

	// bounded eligibility trace
	elig atomicF32

	// number of consecutive large updates seen by ApplySafetyGuardrails
	largeRun atomic.Int32

	nSignals atomic.Uint64
	nUpdates atomic.Uint64
	nWtSets  atomic.Uint64
	minWt    atomicF32
	maxWt    atomicF32
	sumWt    atomicF64

	// qmu protects queue
	qmu   sync.Mutex
	queue []DelayedSignal
}

func newSynapse(net *Network, id uint64, src, dst NeuronHandle, sp *SynParams) *Synapse {
	sy := &Synapse{ID: id, Src: src, Dst: dst, Params: sp, net: net}
	sy.minWt.Store(mat32.Infinity)
	sy.maxWt.Store(-mat32.Infinity)
	sy.SetWeight(sp.WtInit)
	return sy
}

// IsValid returns true if both endpoint neurons are still alive
func (sy *Synapse) IsValid() bool {
	return sy.Source() != nil && sy.Target() != nil
}

// Source returns the sending neuron, or nil if it has been removed
func (sy *Synapse) Source() *Neuron {
	if sy.net == nil {
		return nil
	}
	return sy.net.Neuron(sy.Src)
}

// Target returns the receiving neuron, or nil if it has been removed
func (sy *Synapse) Target() *Neuron {
	if sy.net == nil {
		return nil
	}
	return sy.net.Neuron(sy.Dst)
}

// Weight returns the current weight
func (sy *Synapse) Weight() float32 {
	return sy.wt.Load()
}

// SetWeight sets the weight, clamped to [WtMin, WtMax], and updates the
// running min / max / sum weight statistics.
func (sy *Synapse) SetWeight(wt float32) {
	wt = sy.Params.ClampWt(wt)
	sy.wt.Store(wt)
	sy.minWt.Update(func(cur float32) float32 { return mat32.Min(cur, wt) })
	sy.maxWt.Update(func(cur float32) float32 { return mat32.Max(cur, wt) })
	sy.sumWt.Add(float64(wt))
	sy.nWtSets.Add(1)
}

// WeightedInput returns the contribution of this synapse to its target's
// input: source activation times weight, transformed by the synapse type.
// Any delayed signals whose delivery time has elapsed are drained from the
// queue first, and added to the result only if Params.DeliverDelayed is set.
func (sy *Synapse) WeightedInput() float32 {
	src := sy.Source()
	if src == nil || sy.Target() == nil {
		return 0
	}
	deliv := sy.drainDue()
	wi := src.Act() * sy.wt.Load()
	if sy.Params.DeliverDelayed {
		wi += deliv
	}
	return sy.Params.TypeInput(wi)
}

// drainDue removes all elapsed signals from the queue, returning their summed strength
func (sy *Synapse) drainDue() float32 {
	sy.qmu.Lock()
	defer sy.qmu.Unlock()
	if len(sy.queue) == 0 {
		return 0
	}
	now := sy.net.Ctx.Time()
	sum := float32(0)
	keep := sy.queue[:0]
	for _, ds := range sy.queue {
		if ds.Due <= now {
			sum += ds.Strength
			continue
		}
		keep = append(keep, ds)
	}
	sy.queue = keep
	return sum
}

// PropagateSignal sends a signal of given strength from the source.
// Delayed synapses enqueue strength * weight for delivery DelayMs from now.
// Zero-delay synapses only count the signal: their target reads the source
// activation directly through WeightedInput.
func (sy *Synapse) PropagateSignal(strength float32) {
	if !sy.IsValid() {
		return
	}
	sy.nSignals.Add(1)
	if sy.Params.DelayMs <= 0 {
		return
	}
	ds := DelayedSignal{Strength: strength * sy.wt.Load(), Due: sy.net.Ctx.Time() + float64(sy.Params.DelayMs)}
	sy.qmu.Lock()
	sy.queue = append(sy.queue, ds)
	sy.qmu.Unlock()
}

// QueueLen returns the number of signals waiting in the delay queue
func (sy *Synapse) QueueLen() int {
	sy.qmu.Lock()
	defer sy.qmu.Unlock()
	return len(sy.queue)
}

// UpdateWeight applies the rate-based learning rule (Hebbian, BCM or Oja)
// for given pre and post activations over dt, and updates the eligibility
// trace.  No-op for invalid synapses; NoPlast and STDP synapses only update
// the trace.
func (sy *Synapse) UpdateWeight(pre, post, dt float32) {
	if !sy.IsValid() {
		return
	}
	sp := sy.Params
	sy.elig.Update(func(cur float32) float32 { return sp.Elig.Trace(cur, pre, post) })
	if sp.Rule == NoPlast || sp.Rule == STDP {
		return
	}
	wt := sy.wt.Load()
	dw := sy.ApplySafetyGuardrails(sp.RateDWt(pre, post, wt, dt))
	sy.SetWeight(wt + dw)
	sy.nUpdates.Add(1)
}

// ApplySTDP applies spike-timing dependent plasticity for a pre-synaptic spike
// at tPre and a post-synaptic spike at tPost (msec).  No-op unless the rule is STDP.
func (sy *Synapse) ApplySTDP(tPre, tPost float32) {
	if !sy.IsValid() || sy.Params.Rule != STDP {
		return
	}
	dw := sy.ApplySafetyGuardrails(sy.Params.STDPDWt(tPre, tPost))
	sy.SetWeight(sy.wt.Load() + dw)
	sy.nUpdates.Add(1)
}

// ApplySafetyGuardrails returns the weight change that is actually applied:
// non-finite values become 0, the magnitude is clipped to Guard.MaxGrad and
// then to Guard.MaxStep.  Large updates (above Guard.LargeThr) are counted;
// once Guard.LargeRunThr of them occur in a row, each further large update is
// damped by Guard.Damp until a small update resets the run.
func (sy *Synapse) ApplySafetyGuardrails(dw float32) float32 {
	gp := &sy.Params.Guard
	dw = gp.Clip(dw)
	if !gp.IsLarge(dw) {
		sy.largeRun.Store(0)
		return dw
	}
	if int(sy.largeRun.Add(1)) >= gp.LargeRunThr {
		dw *= gp.Damp
	}
	return dw
}

// Elig returns the eligibility trace
func (sy *Synapse) Elig() float32 {
	return sy.elig.Load()
}

// LargeRun returns the current count of consecutive large updates
func (sy *Synapse) LargeRun() int {
	return int(sy.largeRun.Load())
}

// NSignals returns the number of signals propagated through the synapse
func (sy *Synapse) NSignals() uint64 {
	return sy.nSignals.Load()
}

// NUpdates returns the number of learning updates applied
func (sy *Synapse) NUpdates() uint64 {
	return sy.nUpdates.Load()
}

// MinWt returns the minimum weight ever set
func (sy *Synapse) MinWt() float32 {
	return sy.minWt.Load()
}

// MaxWt returns the maximum weight ever set
func (sy *Synapse) MaxWt() float32 {
	return sy.maxWt.Load()
}

// AvgWt returns the average of all weights ever set
func (sy *Synapse) AvgWt() float32 {
	n := sy.nWtSets.Load()
	if n == 0 {
		return 0
	}
	return float32(sy.sumWt.Load() / float64(n))
}
