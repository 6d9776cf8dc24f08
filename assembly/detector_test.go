// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package assembly

import (
	"testing"

	"github.com/emer/spikewm/snn"
	"github.com/goki/mat32"
)

// difTol is the numerical difference tolerance for comparing vs. target values
const difTol = float32(1.0e-5)

func CmprFloats(got, trg []float32, msg string, t *testing.T) {
	t.Helper()
	for i := range got {
		dif := mat32.Abs(got[i] - trg[i])
		if dif > difTol { // allow for small numerical diffs
			t.Errorf("%v err: idx: %v, got: %v, trg: %v, dif: %v\n", msg, i, got[i], trg[i], dif)
		}
	}
}

// testSrc is a Source with ids 1..n and directly settable activations
type testSrc struct {
	acts []float32
}

func newTestSrc(n int) *testSrc {
	return &testSrc{acts: make([]float32, n)}
}

func (ts *testSrc) Len() int { return len(ts.acts) }
func (ts *testSrc) UnitID(i int) uint64 { return uint64(i + 1) }
func (ts *testSrc) UnitAct(i int) float32 { return ts.acts[i] }
func (ts *testSrc) set(act float32, ids ...int) {
	for i := range ts.acts {
		ts.acts[i] = 0.1
	}
	for _, id := range ids {
		ts.acts[id-1] = act
	}
}

func sameIDs(got []uint64, want ...uint64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestDetectSingleAssembly(t *testing.T) {
	src := newTestSrc(8)
	ad := NewDetector(src, nil, nil)
	for i, act := range []float32{0.8, 0.7, 0.9} {
		src.set(act, 3, 1, 2)
		ad.Step()
		if i < 2 && len(ad.GetCurrentAssemblies()) != 0 {
			t.Errorf("no detection before %d snapshots", MinHistory)
		}
	}
	asms := ad.GetCurrentAssemblies()
	if len(asms) != 1 {
		t.Fatalf("expected exactly 1 assembly, got %d", len(asms))
	}
	as := asms[0]
	if !sameIDs(as.Members, 1, 2, 3) {
		t.Errorf("members: %v, want [1 2 3]", as.Members)
	}
	if as.Stability <= 0 || as.Stability > 1 {
		t.Errorf("stability out of (0, 1]: %v", as.Stability)
	}
	CmprFloats(as.Pattern, []float32{0.8, 0.8, 0.8}, "mean pattern", t)
	if lk, ok := ad.Lookup(as.Symbol); !ok || lk.Symbol != as.Symbol {
		t.Errorf("Lookup(%v) failed", as.Symbol)
	}
}

func TestDetectScores(t *testing.T) {
	src := newTestSrc(6)
	pr := &Params{}
	pr.Defaults()
	pr.Window = 4
	ad := NewDetector(src, pr, nil)
	src.set(0.6, 1, 2, 3)
	ad.Record()
	src.set(0.8, 1, 2, 3)
	ad.Record()
	src.set(0)
	ad.Record()
	ad.Record()
	cands := ad.Detect()
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	cd := cands[0]
	cons := float32(1 / 1.01) // population variance of {0.6, 0.8} is 0.01
	CmprFloats([]float32{cd.Temporal, cd.Consistency, cd.Stability}, []float32{0.5, cons, 0.3 + 0.4*cons}, "candidate scores", t)
	CmprFloats(cd.Pattern, []float32{0.7, 0.7, 0.7}, "candidate pattern", t)
	if cd.Occurrences != 2 {
		t.Errorf("occurrences: %v", cd.Occurrences)
	}

	// noisier candidates need higher stability: 0.696 < 0.9 * (0.8 + 0.2 * 0.99)
	pr.BaseThr = 0.9
	strict := NewDetector(src, pr, nil)
	src.set(0.6, 1, 2, 3)
	strict.Record()
	src.set(0.8, 1, 2, 3)
	strict.Record()
	src.set(0)
	strict.Record()
	strict.Record()
	if cands := strict.Detect(); len(cands) != 0 {
		t.Errorf("candidate should fail the acceptance threshold: %+v", cands)
	}
}

func TestDetectMinSize(t *testing.T) {
	src := newTestSrc(6)
	ad := NewDetector(src, nil, nil)
	for i := 0; i < 5; i++ {
		src.set(0.9, 2, 4)
		ad.Step()
	}
	if n := len(ad.GetCurrentAssemblies()); n != 0 {
		t.Errorf("groups below MinSize must not be detected: %d", n)
	}
}

func TestDetectNovelty(t *testing.T) {
	run := func(novelty float32) []Assembly {
		src := newTestSrc(8)
		pr := &Params{}
		pr.Defaults()
		pr.Window = 4
		pr.NoveltyThr = novelty
		ad := NewDetector(src, pr, nil)
		for _, ids := range [][]int{{1, 2, 3, 4}, {1, 2, 3, 4}, {1, 2, 3, 4, 5}, {1, 2, 3, 4, 5}} {
			src.set(0.9, ids...)
			ad.Record()
		}
		ad.Detect()
		asms := ad.GetCurrentAssemblies()
		for i := range asms {
			for j := i + 1; j < len(asms); j++ {
				if Jaccard(asms[i].Members, asms[j].Members) >= pr.SimThr() {
					t.Errorf("similar assemblies both retained: %v, %v", asms[i].Members, asms[j].Members)
				}
			}
		}
		return asms
	}
	// Jaccard({1..4}, {1..5}) = 0.8
	if n := len(run(0.3)); n != 1 {
		t.Errorf("similar candidates should merge, got %d assemblies", n)
	}
	if n := len(run(0.1)); n != 2 {
		t.Errorf("candidates below similarity threshold are both novel, got %d", n)
	}
}

func TestDetectMaxCands(t *testing.T) {
	src := newTestSrc(20)
	pr := &Params{}
	pr.Defaults()
	pr.MaxCands = 2
	ad := NewDetector(src, pr, nil)
	for g := 0; g < 5; g++ {
		for rep := 0; rep < 2; rep++ {
			src.set(0.9, g*3+1, g*3+2, g*3+3)
			ad.Record()
		}
	}
	if cands := ad.Detect(); len(cands) != 2 {
		t.Errorf("candidates not capped: %d", len(cands))
	}
	if n := len(ad.GetCurrentAssemblies()); n != 2 {
		t.Errorf("assemblies: %d, want 2", n)
	}
}

func TestMaintainAndPrune(t *testing.T) {
	src := newTestSrc(6)
	pr := &Params{}
	pr.Defaults()
	pr.Window = 3
	pr.Timeout = 5
	ad := NewDetector(src, pr, nil)
	for i := 0; i < 3; i++ {
		src.set(0.9, 1, 2, 3)
		ad.Step()
	}
	as := ad.GetCurrentAssemblies()
	if len(as) != 1 {
		t.Fatalf("expected 1 assembly, got %d", len(as))
	}
	sym := as[0].Symbol

	// kept active: stability boosted but capped at 1, last seen refreshed
	src.set(0.9, 1, 2, 3)
	ad.Step()
	as = ad.GetCurrentAssemblies()
	if as[0].Stability > 1 || as[0].LastSeen != ad.Tick() {
		t.Errorf("active assembly: stability %v, last seen %v, tick %v", as[0].Stability, as[0].LastSeen, ad.Tick())
	}

	// tick 5 still has 2 occurrences in the window, so it is re-observed there
	src.set(0)
	prev := as[0].Stability
	for ad.Tick() < 10 {
		ad.Step()
		as = ad.GetCurrentAssemblies()
		if len(as) != 1 {
			t.Fatalf("tick %d: pruned before timeout", ad.Tick())
		}
		if ad.Tick() > 5 && as[0].Stability > prev {
			t.Errorf("tick %d: unobserved assembly gained stability", ad.Tick())
		}
		prev = as[0].Stability
	}
	ad.Step()
	if n := len(ad.GetCurrentAssemblies()); n != 0 {
		t.Errorf("stale assembly not pruned at tick %d", ad.Tick())
	}
	if _, ok := ad.Lookup(sym); ok {
		t.Errorf("lookup of pruned symbol must fail")
	}
}

func TestPruneStabilityFloor(t *testing.T) {
	src := newTestSrc(6)
	pr := &Params{}
	pr.Defaults()
	pr.StabDecay = 0.5
	pr.Timeout = 1000
	pr.Window = 3
	ad := NewDetector(src, pr, nil)
	for i := 0; i < 3; i++ {
		src.set(0.9, 1, 2, 3)
		ad.Step()
	}
	src.set(0)
	for i := 0; i < 10; i++ {
		ad.Step()
	}
	if n := len(ad.GetCurrentAssemblies()); n != 0 {
		t.Errorf("assembly below stability floor retained")
	}
	st := ad.Stats()
	if st.NDiscovered != 1 || st.NAssemblies != 0 || st.AvgStability != 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestSymbolsNeverReused(t *testing.T) {
	syms := &Symbols{}
	seen := make(map[string]bool)
	for round := 0; round < 3; round++ {
		for _, ad := range []*Detector{NewDetector(newTestSrc(6), nil, syms), NewDetector(newTestSrc(6), nil, syms)} {
			src := ad.Src.(*testSrc)
			for i := 0; i < 3; i++ {
				src.set(0.9, 1+round, 2+round, 3+round)
				ad.Step()
			}
			for _, as := range ad.GetCurrentAssemblies() {
				if seen[as.Symbol] {
					t.Errorf("symbol reused: %v", as.Symbol)
				}
				seen[as.Symbol] = true
			}
			ad.Reset()
		}
	}
	if len(seen) != 6 {
		t.Errorf("expected 6 distinct symbols, got %d", len(seen))
	}
}

func TestJaccard(t *testing.T) {
	got := []float32{
		Jaccard([]uint64{1, 2, 3}, []uint64{2, 3, 4}),
		Jaccard([]uint64{1, 2}, []uint64{3, 4}),
		Jaccard([]uint64{1, 2, 3}, []uint64{1, 2, 3}),
		Jaccard(nil, nil),
	}
	CmprFloats(got, []float32{0.5, 0, 1, 1}, "jaccard", t)
}

func TestPopulationSource(t *testing.T) {
	net := snn.NewNetwork("Asm")
	pl := net.AddPopulation("Hidden", 10, nil)
	ad := NewDetector(pl, nil, nil)
	for i := 0; i < 4; i++ {
		pl.SetActs(0)
		for _, ui := range []int{2, 5, 7} {
			pl.Neuron(ui).SetAct(0.9)
		}
		ad.Step()
	}
	asms := ad.GetCurrentAssemblies()
	if len(asms) != 1 {
		t.Fatalf("expected 1 assembly, got %d", len(asms))
	}
	if !sameIDs(asms[0].Members, pl.UnitID(2), pl.UnitID(5), pl.UnitID(7)) {
		t.Errorf("members: %v", asms[0].Members)
	}
	st := ad.Stats()
	if st.NStable != 1 || st.AvgStability <= 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestContextSymbols(t *testing.T) {
	net := snn.NewNetwork("Syms")
	pls := []*snn.Population{net.AddPopulation("A", 6, nil), net.AddPopulation("B", 6, nil)}
	seen := make(map[string]bool)
	for _, pl := range pls {
		ad := NewDetector(pl, nil, nil)
		if ad.Syms != SymbolSource(net.Ctx) {
			t.Errorf("detector on a population should draw symbols from the network context")
		}
		for i := 0; i < 3; i++ {
			pl.SetActs(0)
			for ui := 0; ui < 3; ui++ {
				pl.Neuron(ui).SetAct(0.9)
			}
			ad.Step()
		}
		asms := ad.GetCurrentAssemblies()
		if len(asms) != 1 {
			t.Fatalf("%v: expected 1 assembly, got %d", pl.Name, len(asms))
		}
		if seen[asms[0].Symbol] {
			t.Errorf("symbol reused across detectors of one network: %v", asms[0].Symbol)
		}
		seen[asms[0].Symbol] = true
	}
	if next := net.Ctx.NewSymbolID(); next != 3 {
		t.Errorf("context symbol counter: next %d, want 3", next)
	}
}
