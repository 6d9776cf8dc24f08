// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/c2h5oh/datasize"
	"github.com/emer/emergent/v2/prjn"
	"github.com/emer/emergent/v2/timer"
	"github.com/emer/etable/v2/etensor"
	"golang.org/x/sync/errgroup"
)

// NeuronHandle is an opaque reference to a neuron in a Network arena.
// A handle goes stale when its neuron is removed: the slot generation
// no longer matches, and lookups return nil.
type NeuronHandle struct {
	Idx int32
	Gen uint32
}

// NilHandle never resolves to a neuron
var NilHandle = NeuronHandle{Idx: -1}

// slot is one arena entry.  A removed neuron leaves a tombstone (nil nrn)
// with an incremented generation.
type slot struct {
	nrn atomic.Pointer[Neuron]
	gen atomic.Uint32
}

// snn.Network is the arena that owns all neurons and synapses of one
// simulation, together with its Context.  Neurons are addressed by
// NeuronHandle; synapses hold handles, never pointers, to their endpoints.
type Network struct {

	// name of the network
	Name string

	// shared simulation context: ids, spike callback, clock
	Ctx *Context

	// number of worker goroutines used by Cycle -- <= 1 is sequential
	NThreads int

	// timers for each worker goroutine, so you can see how evenly the workload is being distributed
	ThrTimes []timer.Time

	// timers for each major function (step of processing)
	FunTimes map[string]*timer.Time

	// mu serializes structural changes: adding / removing neurons, synapses and populations
	mu sync.Mutex

	// arena slots, copy-on-write so that lookups never lock
	slots atomic.Pointer[[]*slot]

	syns []*Synapse

	// popMu guards the population registry for the whole of AddPopulation
	popMu  sync.Mutex
	pops   []*Population
	popMap map[string]*Population
}

// NewNetwork returns a new, empty network with its own Context
func NewNetwork(name string) *Network {
	nt := &Network{Name: name, Ctx: NewContext()}
	nt.popMap = make(map[string]*Population)
	nt.FunTimes = make(map[string]*timer.Time)
	empty := []*slot{}
	nt.slots.Store(&empty)
	nt.SetNThreads(1)
	return nt
}

// SetNThreads sets the number of worker goroutines used by Cycle
func (nt *Network) SetNThreads(nthr int) {
	nt.NThreads = max(nthr, 1)
	nt.ThrTimes = make([]timer.Time, nt.NThreads)
}

///////////////////////////////////////////////////////////////////////
//  Neurons

// AddNeuron adds a new neuron with the next unique id, using given
// params (nil = defaults), and returns its handle
func (nt *Network) AddNeuron(np *NeuronParams) NeuronHandle {
	return nt.addNeuron(nt.Ctx.NewNeuronID(), np)
}

// AddNeuronWithID adds a neuron with an explicitly supplied id.
// The Context id counter is advanced past it.
func (nt *Network) AddNeuronWithID(id uint64, np *NeuronParams) NeuronHandle {
	return nt.addNeuron(nt.Ctx.ClaimNeuronID(id), np)
}

func (nt *Network) addNeuron(id uint64, np *NeuronParams) NeuronHandle {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	old := *nt.slots.Load()
	sl := &slot{}
	hnd := NeuronHandle{Idx: int32(len(old)), Gen: 0}
	sl.nrn.Store(newNeuron(nt.Ctx, id, hnd, np))
	nw := make([]*slot, len(old)+1)
	copy(nw, old)
	nw[len(old)] = sl
	nt.slots.Store(&nw)
	return hnd
}

// Neuron returns the neuron for given handle, or nil if the handle is
// out of range, stale, or the neuron has been removed
func (nt *Network) Neuron(hnd NeuronHandle) *Neuron {
	slots := *nt.slots.Load()
	if hnd.Idx < 0 || int(hnd.Idx) >= len(slots) {
		return nil
	}
	sl := slots[hnd.Idx]
	if sl.gen.Load() != hnd.Gen {
		return nil
	}
	return sl.nrn.Load()
}

// RemoveNeuron removes the neuron from the arena, leaving a tombstone.
// All synapses to or from it become inert.  Returns false if the handle
// was already invalid.
func (nt *Network) RemoveNeuron(hnd NeuronHandle) bool {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	if nt.Neuron(hnd) == nil {
		return false
	}
	sl := (*nt.slots.Load())[hnd.Idx]
	sl.gen.Add(1)
	sl.nrn.Store(nil)
	return true
}

// NNeurons returns the number of live neurons
func (nt *Network) NNeurons() int {
	n := 0
	for _, sl := range *nt.slots.Load() {
		if sl.nrn.Load() != nil {
			n++
		}
	}
	return n
}

// Neurons returns all live neurons in arena order
func (nt *Network) Neurons() []*Neuron {
	slots := *nt.slots.Load()
	nrns := make([]*Neuron, 0, len(slots))
	for _, sl := range slots {
		if nrn := sl.nrn.Load(); nrn != nil {
			nrns = append(nrns, nrn)
		}
	}
	return nrns
}

///////////////////////////////////////////////////////////////////////
//  Synapses

// Connect creates a synapse from src to dst with given params (shared, not
// copied -- nil = a new default SynParams).  Returns nil if either handle is invalid.
func (nt *Network) Connect(src, dst NeuronHandle, sp *SynParams) *Synapse {
	return nt.connect(nt.Ctx.NewSynapseID(), src, dst, sp)
}

// ConnectWithID is Connect with an explicitly supplied synapse id
func (nt *Network) ConnectWithID(id uint64, src, dst NeuronHandle, sp *SynParams) *Synapse {
	return nt.connect(nt.Ctx.ClaimSynapseID(id), src, dst, sp)
}

func (nt *Network) connect(id uint64, src, dst NeuronHandle, sp *SynParams) *Synapse {
	sn := nt.Neuron(src)
	rn := nt.Neuron(dst)
	if sn == nil || rn == nil {
		return nil
	}
	if sp == nil {
		sp = &SynParams{}
		sp.Defaults()
	}
	sy := newSynapse(nt, id, src, dst, sp)
	sn.addSend(sy)
	rn.addRecv(sy)
	nt.mu.Lock()
	nt.syns = append(nt.syns, sy)
	nt.mu.Unlock()
	return sy
}

// Disconnect removes the synapse from its endpoints and the network.
// Returns false if it was not part of the network.
func (nt *Network) Disconnect(sy *Synapse) bool {
	nt.mu.Lock()
	i := slices.Index(nt.syns, sy)
	if i < 0 {
		nt.mu.Unlock()
		return false
	}
	nt.syns = slices.Delete(nt.syns, i, i+1)
	nt.mu.Unlock()
	if sn := nt.Neuron(sy.Src); sn != nil {
		sn.removeSyn(sy)
	}
	if rn := nt.Neuron(sy.Dst); rn != nil {
		rn.removeSyn(sy)
	}
	return true
}

// Synapses returns a copy of the list of all synapses
func (nt *Network) Synapses() []*Synapse {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	return slices.Clone(nt.syns)
}

// NSynapses returns the total number of synapses
func (nt *Network) NSynapses() int {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	return len(nt.syns)
}

///////////////////////////////////////////////////////////////////////
//  Populations

// AddPopulation adds a new named population of n neurons, with a 1D
// "Units" shape.  Returns nil (and logs) if the name is already in use.
func (nt *Network) AddPopulation(name string, n int, np *NeuronParams) *Population {
	nt.popMu.Lock()
	defer nt.popMu.Unlock()
	if _, has := nt.popMap[name]; has {
		log.Printf("Network AddPopulation: Network %v already has a population named: %v\n", nt.Name, name)
		return nil
	}
	pl := &Population{Name: name, Net: nt, Handles: make([]NeuronHandle, n)}
	pl.Shape.SetShape([]int{n}, nil, []string{"Units"})
	for i := range pl.Handles {
		pl.Handles[i] = nt.AddNeuron(np)
	}
	nt.pops = append(nt.pops, pl)
	nt.popMap[name] = pl
	return pl
}

// PopByName returns the population of given name, or nil
func (nt *Network) PopByName(name string) *Population {
	nt.popMu.Lock()
	defer nt.popMu.Unlock()
	return nt.popMap[name]
}

// Pops returns the list of populations in order of creation
func (nt *Network) Pops() []*Population {
	nt.popMu.Lock()
	defer nt.popMu.Unlock()
	return slices.Clone(nt.pops)
}

// ConnectPops connects send to recv according to pattern, with all new
// synapses sharing sp, and returns the number of synapses created.
// One synapse is made for every connection bit that pat sets.
// Repeated calls add new synapses: connections are never deduplicated.
func (nt *Network) ConnectPops(send, recv *Population, pat prjn.Pattern, sp *SynParams) int {
	if send == nil || recv == nil || pat == nil {
		return 0
	}
	if sp == nil {
		sp = &SynParams{}
		sp.Defaults()
	}
	_, _, cons := pat.Connect(&send.Shape, &recv.Shape, send == recv)
	return nt.connectBits(send, recv, cons, sp)
}

// connectBits makes one synapse per set bit of cons, which is in recv-major
// order: for each recv unit a full row of sender bits
func (nt *Network) connectBits(send, recv *Population, cons *etensor.Bits, sp *SynParams) int {
	slen := send.Len()
	rlen := recv.Len()
	cbits := cons.Values
	n := 0
	for ri := 0; ri < rlen; ri++ {
		rbi := ri * slen
		for si := 0; si < slen; si++ {
			if !cbits.Index(rbi + si) {
				continue
			}
			if nt.Connect(send.Handles[si], recv.Handles[ri], sp) != nil {
				n++
			}
		}
	}
	return n
}

///////////////////////////////////////////////////////////////////////
//  Processing

// Cycle runs one tick of duration dt over every live neuron and then
// advances the Context clock.
//
// With NThreads <= 1 neurons are processed sequentially in ascending arena
// order, updating in place: a neuron sees the current-tick activation of
// any source earlier in the arena and the previous-tick activation of later
// ones.  This order is deterministic.  With NThreads > 1 the arena is split
// into contiguous blocks processed concurrently, so reads across blocks may
// see either value.
//
// If ctx is already done, the whole tick is skipped and ctx.Err() returned:
// a tick is never partially applied because of cancellation.
func (nt *Network) Cycle(ctx context.Context, dt float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nt.FunTimerStart("Cycle")
	nrns := nt.Neurons()
	if nt.NThreads <= 1 || len(nrns) < 2*nt.NThreads {
		for _, nrn := range nrns {
			nrn.Process(dt)
		}
	} else {
		nt.thrFun(nrns, func(nrn *Neuron) { nrn.Process(dt) })
	}
	nt.Ctx.Advance(dt)
	nt.FunTimerStop("Cycle")
	return nil
}

// thrFun runs fun over nrns split into NThreads contiguous blocks
func (nt *Network) thrFun(nrns []*Neuron, fun func(nrn *Neuron)) {
	if len(nt.ThrTimes) != nt.NThreads {
		nt.ThrTimes = make([]timer.Time, nt.NThreads)
	}
	var eg errgroup.Group
	per := (len(nrns) + nt.NThreads - 1) / nt.NThreads
	for th := 0; th < nt.NThreads; th++ {
		st := th * per
		ed := min(st+per, len(nrns))
		if st >= ed {
			break
		}
		eg.Go(func() error {
			nt.ThrTimes[th].Start()
			for _, nrn := range nrns[st:ed] {
				fun(nrn)
			}
			nt.ThrTimes[th].Stop()
			return nil
		})
	}
	eg.Wait()
}

// Learn applies learning to every synapse: rate-based rules use the current
// source and target activations over dt; STDP synapses use the last spike
// times of their endpoints, whenever either endpoint fired on this tick.
func (nt *Network) Learn(dt float32) {
	nt.FunTimerStart("Learn")
	for _, sy := range nt.Synapses() {
		src, dst := sy.Source(), sy.Target()
		if src == nil || dst == nil {
			continue
		}
		if sy.Params.Rule != STDP {
			sy.UpdateWeight(src.Act(), dst.Act(), dt)
			continue
		}
		if !src.IsFiring() && !dst.IsFiring() {
			continue
		}
		tpre, tpost := src.LastSpike(), dst.LastSpike()
		if tpre < 0 || tpost < 0 {
			continue
		}
		sy.ApplySTDP(float32(tpre), float32(tpost))
	}
	nt.FunTimerStop("Learn")
}

// InitActs resets the activation state of all neurons and clears the clock
func (nt *Network) InitActs() {
	for _, nrn := range nt.Neurons() {
		nrn.Reset()
	}
	nt.Ctx.Reset()
}

///////////////////////////////////////////////////////////////////////
//  Stats and reports

// NetStats are aggregate statistics over the whole network
type NetStats struct {
	NNeurons int
	NSyns    int
	NFiring  int
	MeanAct  float32
	MeanWt   float32
	MinWt    float32
	MaxWt    float32
	Signals  uint64
	Updates  uint64
	Skips    uint64
}

// Stats computes the current NetStats
func (nt *Network) Stats() NetStats {
	var st NetStats
	nrns := nt.Neurons()
	st.NNeurons = len(nrns)
	for _, nrn := range nrns {
		st.MeanAct += nrn.Act()
		st.Skips += nrn.Skips()
		if nrn.IsFiring() {
			st.NFiring++
		}
	}
	if st.NNeurons > 0 {
		st.MeanAct /= float32(st.NNeurons)
	}
	syns := nt.Synapses()
	st.NSyns = len(syns)
	for i, sy := range syns {
		wt := sy.Weight()
		st.MeanWt += wt
		if i == 0 || wt < st.MinWt {
			st.MinWt = wt
		}
		if i == 0 || wt > st.MaxWt {
			st.MaxWt = wt
		}
		st.Signals += sy.NSignals()
		st.Updates += sy.NUpdates()
	}
	if st.NSyns > 0 {
		st.MeanWt /= float32(st.NSyns)
	}
	return st
}

// SizeReport returns a string reporting the size of each population
// and the total memory footprint of neurons and synapses.
func (nt *Network) SizeReport() string {
	var b strings.Builder
	neurMem := 0
	for _, pl := range nt.Pops() {
		nmem := 0
		for i := range pl.Handles {
			if nrn := pl.Neuron(i); nrn != nil {
				nmem += nrn.MemSize()
			}
		}
		fmt.Fprintf(&b, "%14s:\t Neurons: %d\t NeurMem: %v\n", pl.Name, pl.Len(), datasize.ByteSize(nmem).HumanReadable())
	}
	nrns := nt.Neurons()
	for _, nrn := range nrns {
		neurMem += nrn.MemSize()
	}
	syns := nt.Synapses()
	synMem := 0
	for _, sy := range syns {
		synMem += int(unsafe.Sizeof(Synapse{})) + sy.QueueLen()*int(unsafe.Sizeof(DelayedSignal{}))
	}
	fmt.Fprintf(&b, "\n%14s:\t Neurons: %d\t NeurMem: %v \t Syns: %d \t SynMem: %v\n", nt.Name, len(nrns), datasize.ByteSize(neurMem).HumanReadable(), len(syns), datasize.ByteSize(synMem).HumanReadable())
	return b.String()
}

// TimerReport reports the amount of time spent in each function, and in each thread
func (nt *Network) TimerReport() string {
	var b strings.Builder
	fmt.Fprintf(&b, "TimerReport: %v, NThreads: %v\n", nt.Name, nt.NThreads)
	fmt.Fprintf(&b, "\t%13s \t%7s\t%7s\n", "Function Name", "Secs", "Pct")
	fnms := make([]string, 0, len(nt.FunTimes))
	for k := range nt.FunTimes {
		fnms = append(fnms, k)
	}
	sort.Strings(fnms)
	pcts := make([]float64, len(fnms))
	tot := 0.0
	for i, fn := range fnms {
		pcts[i] = nt.FunTimes[fn].TotalSecs()
		tot += pcts[i]
	}
	for i, fn := range fnms {
		fmt.Fprintf(&b, "\t%13s \t%7.3f\t%7.1f\n", fn, pcts[i], 100*(pcts[i]/max(tot, 1e-12)))
	}
	fmt.Fprintf(&b, "\t%13s \t%7.3f\n", "Total", tot)
	if nt.NThreads <= 1 {
		return b.String()
	}
	fmt.Fprintf(&b, "\n\tThr\tSecs\tPct\n")
	pcts = make([]float64, nt.NThreads)
	tot = 0.0
	for th := range nt.ThrTimes {
		pcts[th] = nt.ThrTimes[th].TotalSecs()
		tot += pcts[th]
	}
	for th := range nt.ThrTimes {
		fmt.Fprintf(&b, "\t%v \t%7.3f\t%7.1f\n", th, pcts[th], 100*(pcts[th]/max(tot, 1e-12)))
	}
	return b.String()
}

// FunTimerStart starts function timer for given function name -- ensures creation of timer
func (nt *Network) FunTimerStart(fun string) {
	ft, ok := nt.FunTimes[fun]
	if !ok {
		ft = &timer.Time{}
		nt.FunTimes[fun] = ft
	}
	ft.Start()
}

// FunTimerStop stops function timer -- timer must already exist
func (nt *Network) FunTimerStop(fun string) {
	ft := nt.FunTimes[fun]
	ft.Stop()
}
