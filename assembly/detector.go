// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package assembly

import (
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/emer/etable/v2/etensor"
	"github.com/emer/spikewm/snn"
	"github.com/goki/mat32"
	"gonum.org/v1/gonum/stat"
)

// snapshot is the activation of every Source unit at one tick
type snapshot struct {
	tick int
	ids  []uint64
	acts etensor.Float32
}

// Detector mines a rolling window of activation snapshots for assemblies.
// Each public method holds a single lock for its duration, so detection
// cycles never overlap.
type Detector struct {

	// parameters -- call Params.Update after changes
	Params Params

	// activation source
	Src Source

	// symbol counter -- shared with every other detector using the same source
	Syms SymbolSource

	mu     sync.Mutex
	hist   []snapshot
	tick   int
	asms   []*Assembly
	symIdx map[string]int
	nDisc  int
}

// NewDetector returns a detector sampling src.  pr may be nil for defaults.
// If syms is nil, the simulation Context of src is used when src has one
// (e.g., an snn.Population), else a new private Symbols.
func NewDetector(src Source, pr *Params, syms SymbolSource) *Detector {
	ad := &Detector{Src: src, Syms: syms}
	if pr != nil {
		ad.Params = *pr
		ad.Params.Update()
	} else {
		ad.Params.Defaults()
	}
	if ad.Syms == nil {
		if cs, ok := src.(contextSource); ok && cs.Context() != nil {
			ad.Syms = cs.Context()
		} else {
			ad.Syms = &Symbols{}
		}
	}
	ad.symIdx = make(map[string]int)
	return ad
}

// contextSource is a Source that belongs to an snn simulation
type contextSource interface {
	Context() *snn.Context
}

// Step runs one full cycle: Record, Maintain, Detect (once at least
// MinHistory snapshots are available) and Prune.  Returns the candidates
// accepted by Detect (nil if it did not run).
func (ad *Detector) Step() []Candidate {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	ad.record()
	ad.maintain()
	var cands []Candidate
	if len(ad.hist) >= MinHistory {
		cands = ad.detect()
	}
	ad.prune()
	return cands
}

// Record takes a snapshot of the Source and advances the tick counter
func (ad *Detector) Record() {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	ad.record()
}

func (ad *Detector) record() {
	ad.tick++
	n := ad.Src.Len()
	sn := snapshot{tick: ad.tick, ids: make([]uint64, n)}
	sn.acts.SetShape([]int{n}, nil, []string{"Units"})
	for i := 0; i < n; i++ {
		sn.ids[i] = ad.Src.UnitID(i)
		sn.acts.Values[i] = ad.Src.UnitAct(i)
	}
	ad.hist = append(ad.hist, sn)
	if over := len(ad.hist) - ad.Params.Window; over > 0 {
		ad.hist = slices.Delete(ad.hist, 0, over)
	}
}

// Detect mines the current history for candidates and integrates them:
// novel candidates become new assemblies, the others reinforce the most
// similar stored assembly.  Returns the accepted candidates, most stable first.
func (ad *Detector) Detect() []Candidate {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	if len(ad.hist) < MinHistory {
		return nil
	}
	return ad.detect()
}

func (ad *Detector) detect() []Candidate {
	cands := ad.mine()
	for i := range cands {
		ad.integrate(&cands[i])
	}
	ad.rebuildIndex()
	return cands
}

// occurrence accumulates the snapshots in which one exact group was active
type occurrence struct {
	ids   []uint64
	idxs  []int
	ticks map[int]bool
	vecs  [][]float32
}

// mine groups active units per snapshot and scores every group that
// occurs in at least 2 distinct snapshots
func (ad *Detector) mine() []Candidate {
	pr := &ad.Params
	occs := make(map[string]*occurrence)
	var keys []string
	for _, sn := range ad.hist {
		var idxs []int
		for i, act := range sn.acts.Values {
			if act > pr.ActThr && sn.ids[i] != 0 {
				idxs = append(idxs, i)
			}
		}
		if len(idxs) < pr.MinSize {
			continue
		}
		sort.Slice(idxs, func(a, b int) bool { return sn.ids[idxs[a]] < sn.ids[idxs[b]] })
		ids := make([]uint64, len(idxs))
		vec := make([]float32, len(idxs))
		for k, i := range idxs {
			ids[k] = sn.ids[i]
			vec[k] = sn.acts.Values[i]
		}
		key := groupKey(ids)
		oc, has := occs[key]
		if !has {
			oc = &occurrence{ids: ids, idxs: idxs, ticks: make(map[int]bool)}
			occs[key] = oc
			keys = append(keys, key)
		}
		if oc.ticks[sn.tick] {
			continue
		}
		oc.ticks[sn.tick] = true
		oc.vecs = append(oc.vecs, vec)
	}

	var cands []Candidate
	wlen := float32(len(ad.hist))
	for _, key := range keys {
		oc := occs[key]
		if len(oc.ticks) < 2 {
			continue
		}
		cd := Candidate{Members: oc.ids, idxs: oc.idxs, Occurrences: len(oc.ticks)}
		cd.Pattern, cd.Consistency = meanConsistency(oc.vecs)
		cd.Temporal = float32(cd.Occurrences) / wlen
		cd.Stability = mat32.Min(1, 0.6*cd.Temporal+0.4*cd.Consistency)
		if cd.Stability < pr.BaseThr*(0.8+0.2*cd.Consistency) {
			continue
		}
		cands = append(cands, cd)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Stability > cands[j].Stability
	})
	if len(cands) > pr.MaxCands {
		cands = cands[:pr.MaxCands]
	}
	return cands
}

// meanConsistency returns the per-dimension mean of vecs and the mean
// over dimensions of 1 / (1 + variance)
func meanConsistency(vecs [][]float32) ([]float32, float32) {
	nd := len(vecs[0])
	mean := make([]float32, nd)
	col := make([]float64, len(vecs))
	cons := 0.0
	for d := 0; d < nd; d++ {
		for o, vec := range vecs {
			col[o] = float64(vec[d])
		}
		mn, vr := stat.PopMeanVariance(col, nil)
		mean[d] = float32(mn)
		cons += 1 / (1 + vr)
	}
	return mean, float32(cons / float64(nd))
}

func groupKey(ids []uint64) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(id, 10))
	}
	return b.String()
}

// integrate adds the candidate as a new assembly if it is novel, else
// reinforces the most similar stored assembly
func (ad *Detector) integrate(cd *Candidate) {
	var best *Assembly
	bestSim := float32(-1)
	for _, as := range ad.asms {
		if sim := Jaccard(cd.Members, as.Members); sim > bestSim {
			best, bestSim = as, sim
		}
	}
	if best != nil && bestSim >= ad.Params.SimThr() {
		best.Occurrences++
		best.Stability = mat32.Min(1, mat32.Max(best.Stability, cd.Stability))
		best.LastSeen = ad.tick
		if bestSim == 1 {
			best.Pattern = append(best.Pattern[:0], cd.Pattern...)
		}
		return
	}
	as := &Assembly{
		Symbol:      SymbolName(ad.Syms.NewSymbolID()),
		Members:     append([]uint64(nil), cd.Members...),
		Pattern:     append([]float32(nil), cd.Pattern...),
		Stability:   mat32.Min(1, cd.Stability),
		Occurrences: cd.Occurrences,
		LastSeen:    ad.tick,
		Discovered:  ad.tick,
		idxs:        append([]int(nil), cd.idxs...),
	}
	ad.asms = append(ad.asms, as)
	ad.nDisc++
}

// Maintain decays every stored assembly's stability, and boosts those whose
// members are all currently active above MaintFloor
func (ad *Detector) Maintain() {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	ad.maintain()
}

func (ad *Detector) maintain() {
	if len(ad.hist) == 0 {
		return
	}
	pr := &ad.Params
	sn := &ad.hist[len(ad.hist)-1]
	for _, as := range ad.asms {
		as.Stability *= pr.StabDecay
		if ad.allActive(as, sn) {
			as.Stability = mat32.Min(1, as.Stability+pr.Boost)
			as.LastSeen = ad.tick
		}
	}
}

// allActive returns true if every member is above MaintFloor in the snapshot
func (ad *Detector) allActive(as *Assembly, sn *snapshot) bool {
	for k, i := range as.idxs {
		if i >= len(sn.ids) || sn.ids[i] != as.Members[k] || sn.acts.Values[i] <= ad.Params.MaintFloor {
			return false
		}
	}
	return len(as.idxs) > 0
}

// Prune removes assemblies not seen for more than Timeout ticks or with
// stability below StabFloor
func (ad *Detector) Prune() {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	ad.prune()
}

func (ad *Detector) prune() {
	pr := &ad.Params
	ad.asms = slices.DeleteFunc(ad.asms, func(as *Assembly) bool {
		return ad.tick-as.LastSeen > pr.Timeout || as.Stability < pr.StabFloor
	})
	ad.rebuildIndex()
}

// rebuildIndex recomputes the symbol -> index lookup -- must follow every
// change to asms
func (ad *Detector) rebuildIndex() {
	clear(ad.symIdx)
	for i, as := range ad.asms {
		ad.symIdx[as.Symbol] = i
	}
}

// Lookup returns the assembly with given symbol
func (ad *Detector) Lookup(sym string) (Assembly, bool) {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	i, ok := ad.symIdx[sym]
	if !ok {
		return Assembly{}, false
	}
	return ad.asms[i].clone(), true
}

// GetCurrentAssemblies returns copies of all stored assemblies, in order of discovery
func (ad *Detector) GetCurrentAssemblies() []Assembly {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	out := make([]Assembly, len(ad.asms))
	for i, as := range ad.asms {
		out[i] = as.clone()
	}
	return out
}

// Stats returns summary statistics: assemblies whose stability is at least
// BaseThr count as stable
func (ad *Detector) Stats() Stats {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	st := Stats{NAssemblies: len(ad.asms), NDiscovered: ad.nDisc}
	for _, as := range ad.asms {
		st.AvgStability += as.Stability
		if as.Stability >= ad.Params.BaseThr {
			st.NStable++
		}
	}
	if st.NAssemblies > 0 {
		st.AvgStability /= float32(st.NAssemblies)
	}
	return st
}

// Tick returns the number of snapshots recorded so far
func (ad *Detector) Tick() int {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	return ad.tick
}

// Reset clears the history and all assemblies.  The symbol counter is not
// reset, so symbols are never reused.
func (ad *Detector) Reset() {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	ad.hist = nil
	ad.asms = nil
	ad.tick = 0
	ad.rebuildIndex()
}
