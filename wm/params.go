// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wm

import (
	"log"

	"github.com/goki/mat32"
)

// wm.Params are the working memory store parameters
type Params struct {
	Capacity     int     `def:"7" desc:"maximum number of bindings held at once -- the weakest is evicted on overflow"`
	PopSize      int     `def:"100" desc:"number of neurons in each of the role, filler and sequence populations"`
	PatSize      int     `def:"5" desc:"number of hashed unit indices in each label's activation pattern"`
	DecayRate    float32 `def:"0.95" desc:"binding strength decays by DecayRate^dt each step"`
	RefreshMult  float32 `def:"0.9" desc:"decayed strength is multiplied by this before comparing against co-activation"`
	PruneThr     float32 `def:"0.1" desc:"bindings whose strength drops below this are removed"`
	MaintFloor   float32 `def:"0.1" desc:"neurons with activation above this are engaged and receive the maintenance current"`
	MaintCurrent float32 `def:"0.02" desc:"current injected into engaged neurons each step to resist decay"`
	PredThr      float32 `def:"0.3" desc:"minimum prediction confidence for a predicted label to be emitted"`
}

func (pr *Params) Defaults() {
	pr.Capacity = 7
	pr.PopSize = 100
	pr.PatSize = 5
	pr.DecayRate = 0.95
	pr.RefreshMult = 0.9
	pr.PruneThr = 0.1
	pr.MaintFloor = 0.1
	pr.MaintCurrent = 0.02
	pr.PredThr = 0.3
	pr.Update()
}

// Update must be called after any changes to parameters
func (pr *Params) Update() {
	if pr.Capacity < 1 {
		pr.Capacity = 1
	}
	if pr.PatSize < 1 {
		pr.PatSize = 1
	}
	if pr.PopSize < 1 {
		pr.PopSize = 1
	}
	if pr.PopSize < pr.PatSize {
		log.Printf("wm.Params: PopSize: %d < PatSize: %d -- patterns will overlap heavily\n", pr.PopSize, pr.PatSize)
	}
	pr.DecayRate = mat32.Min(mat32.Max(pr.DecayRate, 0), 1)
}
