// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goki/mat32"
)

// difTol is the numerical difference tolerance for comparing vs. target values
const difTol = float32(1.0e-6)

func CmprFloats(got, trg []float32, msg string, t *testing.T) {
	t.Helper()
	for i := range got {
		dif := mat32.Abs(got[i] - trg[i])
		if dif > difTol { // allow for small numerical diffs
			t.Errorf("%v err: idx: %v, got: %v, trg: %v, dif: %v\n", msg, i, got[i], trg[i], dif)
		}
	}
}

// makePair returns a network with neurons A -> B connected by an excitatory
// synapse of weight wt
func makePair(t *testing.T, wt float32) (*Network, *Neuron, *Neuron, *Synapse) {
	t.Helper()
	nt := NewNetwork("Pair")
	ah := nt.AddNeuron(nil)
	bh := nt.AddNeuron(nil)
	sp := &SynParams{}
	sp.Defaults()
	sp.WtInit = wt
	sy := nt.Connect(ah, bh, sp)
	if sy == nil {
		t.Fatalf("Connect returned nil")
	}
	return nt, nt.Neuron(ah), nt.Neuron(bh), sy
}

func TestNeuronFireAndPropagate(t *testing.T) {
	_, a, b, _ := makePair(t, 1)
	a.SetAct(0.6)
	a.Process(1)

	if a.State() != Refractory {
		t.Errorf("A state: got %v, want %v", a.State(), Refractory)
	}
	if a.FireCount() != 1 || !a.IsFiring() {
		t.Errorf("A should have fired once, FireCount: %v, IsFiring: %v", a.FireCount(), a.IsFiring())
	}
	// 0.6 * (1 - 0.1)
	CmprFloats([]float32{a.Act()}, []float32{0.54}, "A act", t)

	b.Process(1)
	if b.Act() <= 0 {
		t.Errorf("B should reflect input from A, act: %v", b.Act())
	}
	CmprFloats([]float32{b.Act()}, []float32{0.54 * 0.9}, "B act", t)
}

func TestNeuronRefractory(t *testing.T) {
	nt, src, trg, _ := makePair(t, 1)
	trg.Params.RefracPeriod = 3
	src.SetAct(1)

	trg.Process(1)
	if trg.FireCount() != 1 || trg.State() != Refractory {
		t.Fatalf("target should fire on first tick, state: %v, fires: %v", trg.State(), trg.FireCount())
	}
	prev := trg.RefracTimer()
	for i := 0; i < 3; i++ {
		src.SetAct(1)
		trg.Process(1)
		nt.Ctx.Advance(1)
		if trg.State() == Active {
			t.Errorf("tick %d: refractory neuron became Active", i)
		}
		if trg.FireCount() != 1 {
			t.Errorf("tick %d: refractory neuron fired, FireCount: %v", i, trg.FireCount())
		}
		if tm := trg.RefracTimer(); tm >= prev && prev > 0 {
			t.Errorf("tick %d: refractory timer did not decrease: %v -> %v", i, prev, tm)
		}
		prev = trg.RefracTimer()
	}
	if trg.State() != Inactive || trg.RefracTimer() != 0 {
		t.Errorf("after refractory period: state: %v, timer: %v", trg.State(), trg.RefracTimer())
	}
	trg.Process(1)
	if trg.FireCount() != 2 {
		t.Errorf("target should fire again after refractory, FireCount: %v", trg.FireCount())
	}
}

func TestNeuronActBounds(t *testing.T) {
	nt := NewNetwork("Bounds")
	trg := nt.AddNeuron(nil)
	exc := &SynParams{}
	exc.Defaults()
	exc.WtMax = 50
	exc.WtInit = 50
	inh := &SynParams{}
	inh.Defaults()
	inh.Type = Inhibitory
	inh.WtMax = 50
	inh.WtInit = 50
	srcs := make([]*Neuron, 4)
	for i := range srcs {
		sh := nt.AddNeuron(nil)
		srcs[i] = nt.Neuron(sh)
		srcs[i].SetAct(1)
		if i < 2 {
			nt.Connect(sh, trg, exc)
		} else {
			nt.Connect(sh, trg, inh)
		}
	}
	tn := nt.Neuron(trg)
	for i := 0; i < 20; i++ {
		srcs[2].SetAct(float32(i%2) * 0.9)
		srcs[3].SetAct(float32(i%3) * 0.4)
		tn.Process(0.7)
		if act := tn.Act(); act < 0 || act > 1 {
			t.Errorf("tick %d: act out of range: %v", i, act)
		}
	}
	for _, in := range []float32{-5, -0.1, 0, 0.3, 1, 7, mat32.NaN()} {
		tn.SetAct(in)
		if act := tn.Act(); act < 0 || act > 1 {
			t.Errorf("SetAct(%v): act out of range: %v", in, act)
		}
		tn.Inject(in)
		if act := tn.Act(); act < 0 || act > 1 {
			t.Errorf("Inject(%v): act out of range: %v", in, act)
		}
	}
}

func TestNeuronSpikeFunc(t *testing.T) {
	nt, a, _, _ := makePair(t, 1)
	var nspk atomic.Int32
	var lastID atomic.Uint64
	nt.Ctx.SetSpikeFunc(func(nrn *Neuron) {
		nspk.Add(1)
		lastID.Store(nrn.ID)
	})
	a.SetAct(0.9)
	a.Process(1)
	if nspk.Load() != 1 || lastID.Load() != a.ID {
		t.Errorf("spike callback: calls: %v, last id: %v, want 1, %v", nspk.Load(), lastID.Load(), a.ID)
	}
	nt.Ctx.SetSpikeFunc(nil)
	a.Reset()
	a.SetAct(0.9)
	a.Process(1)
	if nspk.Load() != 1 {
		t.Errorf("removed spike callback was still called")
	}
}

func TestNeuronSkipOnContention(t *testing.T) {
	_, a, b, _ := makePair(t, 1)
	a.SetAct(1)
	b.SetAct(0.2)

	b.synMu.Lock()
	b.Process(1)
	b.synMu.Unlock()

	if b.Skips() != 1 {
		t.Errorf("contended Process should be skipped, Skips: %v", b.Skips())
	}
	CmprFloats([]float32{b.Act()}, []float32{0.2}, "skipped tick must not change act", t)

	b.Process(1)
	if b.Skips() != 1 || b.FireCount() != 1 {
		t.Errorf("uncontended Process: skips: %v fires: %v", b.Skips(), b.FireCount())
	}
}

func TestNeuronFireWithSendContention(t *testing.T) {
	nt, a, _, sy := makePair(t, 1)
	sy.Params.DelayMs = 1
	a.SetAct(0.9)
	// hold the lock from another goroutine only while sending is attempted
	var wg sync.WaitGroup
	locked := make(chan struct{})
	release := make(chan struct{})
	nt.Ctx.SetSpikeFunc(func(nrn *Neuron) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nrn.synMu.Lock()
			close(locked)
			<-release
			nrn.synMu.Unlock()
		}()
		<-locked
	})
	a.Process(1)
	close(release)
	wg.Wait()
	if a.State() != Refractory {
		t.Errorf("neuron must still enter Refractory, state: %v", a.State())
	}
	if sy.NSignals() != 0 || sy.QueueLen() != 0 {
		t.Errorf("propagation should be skipped, signals: %v, queue: %v", sy.NSignals(), sy.QueueLen())
	}
}

func TestNeuronReset(t *testing.T) {
	_, a, _, _ := makePair(t, 1)
	a.SetAct(1)
	a.Process(1)
	a.Reset()
	if a.Act() != 0 || a.State() != Inactive || a.RefracTimer() != 0 || a.FireCount() != 0 || a.LastSpike() != -1 {
		t.Errorf("Reset did not clear state: act %v state %v timer %v fires %v last %v", a.Act(), a.State(), a.RefracTimer(), a.FireCount(), a.LastSpike())
	}
}

func TestNeuronIDs(t *testing.T) {
	nt := NewNetwork("IDs")
	h1 := nt.AddNeuron(nil)
	h2 := nt.AddNeuronWithID(100, nil)
	h3 := nt.AddNeuron(nil)
	h4 := nt.AddNeuronWithID(50, nil) // below counter: counter stays
	h5 := nt.AddNeuron(nil)
	got := []uint64{nt.Neuron(h1).ID, nt.Neuron(h2).ID, nt.Neuron(h3).ID, nt.Neuron(h4).ID, nt.Neuron(h5).ID}
	want := []uint64{1, 100, 101, 50, 102}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("id %d: got %v, want %v", i, got[i], want[i])
		}
	}

	ctx := NewContext()
	const nper = 200
	ids := make([][]uint64, 8)
	var wg sync.WaitGroup
	for g := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < nper; i++ {
				if i%50 == 0 {
					ctx.ClaimNeuronID(uint64(g*1000 + i))
				}
				ids[g] = append(ids[g], ctx.NewNeuronID())
			}
		}()
	}
	wg.Wait()
	seen := make(map[uint64]bool)
	for _, gids := range ids {
		for i, id := range gids {
			if seen[id] {
				t.Fatalf("duplicate id: %v", id)
			}
			seen[id] = true
			if i > 0 && id <= gids[i-1] {
				t.Errorf("ids not increasing within goroutine: %v then %v", gids[i-1], id)
			}
		}
	}
}

func TestNeuronMemString(t *testing.T) {
	_, a, _, _ := makePair(t, 1)
	if a.MemSize() <= 0 || a.MemString() == "" {
		t.Errorf("MemSize: %v, MemString: %q", a.MemSize(), a.MemString())
	}
}
