// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package assembly discovers cell assemblies: groups of units that are
// repeatedly co-active with a consistent activation pattern over a rolling
// window of snapshots.  Discovered assemblies are tagged with a symbol,
// reinforced when re-observed, decayed otherwise, and pruned when stale.
package assembly

import (
	"strconv"
	"sync/atomic"
)

// Source provides the unit activations that the detector samples.
// snn.Population implements it.
type Source interface {
	// Len returns the number of units
	Len() int

	// UnitID returns the unique id of unit i (0 if the unit no longer exists)
	UnitID(i int) uint64

	// UnitAct returns the activation of unit i
	UnitAct(i int) float32
}

// SymbolSource hands out never-reused symbol numbers.  snn.Context
// implements it, so all detectors of one simulation share its counter.
type SymbolSource interface {
	NewSymbolID() uint64
}

// Symbols is a standalone SymbolSource, for sources that are not part of
// an snn.Network.  Detectors that share a Symbols never collide.
type Symbols struct {
	last atomic.Uint64
}

// NewSymbolID returns the next symbol number, starting at 1
func (sy *Symbols) NewSymbolID() uint64 {
	return sy.last.Add(1)
}

// SymbolName returns the assembly symbol for given symbol number
func SymbolName(id uint64) string {
	return "A" + strconv.FormatUint(id, 10)
}

// Assembly is a discovered group of units
type Assembly struct {

	// unique symbol tagging this assembly
	Symbol string

	// member unit ids, sorted ascending
	Members []uint64

	// mean activation of each member (same order as Members) across occurrences
	Pattern []float32

	// stability score in [0, 1]
	Stability float32

	// number of detection cycles in which it was observed (initially, the
	// number of window snapshots it occurred in)
	Occurrences int

	// tick at which it was last observed
	LastSeen int

	// tick at which it was discovered
	Discovered int

	// unit indices in the Source, same order as Members
	idxs []int
}

// clone returns a deep copy suitable for handing out
func (as *Assembly) clone() Assembly {
	cp := *as
	cp.Members = append([]uint64(nil), as.Members...)
	cp.Pattern = append([]float32(nil), as.Pattern...)
	cp.idxs = append([]int(nil), as.idxs...)
	return cp
}

// Candidate is a group that passed the stability test in one detection cycle
type Candidate struct {

	// member unit ids, sorted ascending
	Members []uint64

	// mean activation vector across occurrences
	Pattern []float32

	// number of distinct snapshots the exact group occurred in
	Occurrences int

	// occurrences / window length
	Temporal float32

	// mean over members of 1 / (1 + variance)
	Consistency float32

	// 0.6 * Temporal + 0.4 * Consistency
	Stability float32

	idxs []int
}

// Jaccard returns the Jaccard similarity |a ∩ b| / |a ∪ b| of two sorted id sets
func Jaccard(a, b []uint64) float32 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return float32(inter) / float32(len(a)+len(b)-inter)
}

// Stats are summary statistics over the stored assemblies
type Stats struct {
	NAssemblies  int
	NStable      int
	AvgStability float32
	NDiscovered  int
}
