// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package assembly

import (
	"log"
)

// MinHistory is the number of snapshots needed before mining starts
const MinHistory = 3

// assembly.Params are the detection, maintenance and pruning parameters
type Params struct {
	Window     int     `def:"10" desc:"number of activation snapshots kept in the rolling history -- at least MinHistory"`
	ActThr     float32 `def:"0.5" desc:"units above this activation count as active in a snapshot"`
	MinSize    int     `def:"3" desc:"minimum number of jointly active units for a group to be considered"`
	BaseThr    float32 `def:"0.3" desc:"base stability threshold: candidates need stability >= BaseThr * (0.8 + 0.2 * consistency)"`
	NoveltyThr float32 `def:"0.3" desc:"a candidate is novel only if its Jaccard similarity to every stored assembly is below 1 - NoveltyThr"`
	MaxCands   int     `def:"50" desc:"maximum number of accepted candidates per detection cycle"`
	StabDecay  float32 `def:"0.99" desc:"multiplicative decay of every stored assembly's stability per cycle"`
	Boost      float32 `def:"0.05" desc:"stability increment when all members are concurrently active"`
	MaintFloor float32 `def:"0.3" desc:"members must all be above this activation to count as re-observed during maintenance"`
	Timeout    int     `def:"100" desc:"assemblies not seen for more than this many ticks are pruned"`
	StabFloor  float32 `def:"0.1" desc:"assemblies whose stability drops below this are pruned"`
}

func (pr *Params) Defaults() {
	pr.Window = 10
	pr.ActThr = 0.5
	pr.MinSize = 3
	pr.BaseThr = 0.3
	pr.NoveltyThr = 0.3
	pr.MaxCands = 50
	pr.StabDecay = 0.99
	pr.Boost = 0.05
	pr.MaintFloor = 0.3
	pr.Timeout = 100
	pr.StabFloor = 0.1
	pr.Update()
}

// Update must be called after any changes to parameters
func (pr *Params) Update() {
	if pr.Window < MinHistory {
		log.Printf("assembly.Params: Window: %d < %d -- using %d\n", pr.Window, MinHistory, MinHistory)
		pr.Window = MinHistory
	}
	if pr.MinSize < 1 {
		pr.MinSize = 1
	}
	if pr.MaxCands < 1 {
		pr.MaxCands = 1
	}
}

// SimThr returns the Jaccard similarity at or above which a candidate is
// considered the same as an existing assembly
func (pr *Params) SimThr() float32 {
	return 1 - pr.NoveltyThr
}
