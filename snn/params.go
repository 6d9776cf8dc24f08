// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"github.com/goki/mat32"
)

///////////////////////////////////////////////////////////////////////
//  params.go contains the neuron and synapse parameters

const (
	// BCMTheta is the fixed modification threshold used by the BCM rule
	BCMTheta = float32(0.5)

	// STDPTau is the time constant (msec) of the STDP exponential window
	STDPTau = float32(20)

	// ModScale scales the weighted input of Modulatory synapses
	ModScale = float32(0.1)
)

// NeuronParams are the per-neuron integration and firing parameters
type NeuronParams struct {
	Thr          float32 `def:"0.5" desc:"activation threshold: crossing it from below fires a spike"`
	DecayRate    float32 `def:"0.1" desc:"leak rate per unit time: activation is multiplied by (1 - DecayRate * dt) every tick"`
	RefracPeriod float32 `def:"2" desc:"duration (msec) of the refractory period entered after every spike"`
}

func (np *NeuronParams) Defaults() {
	np.Thr = 0.5
	np.DecayRate = 0.1
	np.RefracPeriod = 2
	np.Update()
}

// Update must be called after any changes to parameters
func (np *NeuronParams) Update() {
	np.DecayRate = mat32.Max(np.DecayRate, 0)
	np.RefracPeriod = mat32.Max(np.RefracPeriod, 0)
}

// GuardParams are the numerical safety limits applied to every weight change
type GuardParams struct {
	MaxGrad     float32 `def:"1" desc:"maximum magnitude of any raw weight change (gradient clipping)"`
	MaxStep     float32 `def:"0.1" desc:"maximum magnitude of the weight change applied in a single step"`
	LargeFrac   float32 `def:"0.5" desc:"an update is large if its magnitude exceeds LargeFrac * MaxStep"`
	LargeRunThr int     `def:"5" desc:"number of consecutive large updates at which the instability breaker damps the update"`
	Damp        float32 `def:"0.1" desc:"factor applied to the update once the breaker trips"`
	LargeThr    float32 `view:"-" json:"-" xml:"-" inactive:"+" desc:"= LargeFrac * MaxStep"`
}

func (gp *GuardParams) Defaults() {
	gp.MaxGrad = 1
	gp.MaxStep = 0.1
	gp.LargeFrac = 0.5
	gp.LargeRunThr = 5
	gp.Damp = 0.1
	gp.Update()
}

// Update must be called after any changes to parameters
func (gp *GuardParams) Update() {
	if gp.LargeRunThr < 1 {
		gp.LargeRunThr = 1
	}
	gp.LargeThr = gp.LargeFrac * gp.MaxStep
}

// Clip applies the non-finite, gradient and step limits to dw.
// It does not touch the large-update counter -- see Synapse.ApplySafetyGuardrails.
func (gp *GuardParams) Clip(dw float32) float32 {
	if mat32.IsNaN(dw) || mat32.IsInf(dw, 0) {
		return 0
	}
	dw = clampAbs(dw, gp.MaxGrad)
	return clampAbs(dw, gp.MaxStep)
}

// IsLarge returns true if the clipped dw counts as a large update
func (gp *GuardParams) IsLarge(dw float32) bool {
	return mat32.Abs(dw) > gp.LargeThr
}

// EligParams govern the bounded eligibility trace kept by each synapse
type EligParams struct {
	Decay float32 `def:"0.9" desc:"multiplicative decay of the trace on every weight update"`
	Max   float32 `def:"1" desc:"trace is bounded to [-Max, Max]"`
}

func (ep *EligParams) Defaults() {
	ep.Decay = 0.9
	ep.Max = 1
}

// Trace returns the new trace value from the old one and current co-activation.
// A non-finite result leaves the old trace in place.
func (ep *EligParams) Trace(elig, pre, post float32) float32 {
	nw := elig*ep.Decay + pre*post
	if mat32.IsNaN(nw) || mat32.IsInf(nw, 0) {
		return clampAbs(elig, ep.Max)
	}
	return clampAbs(nw, ep.Max)
}

// SynParams are the per-synapse parameters.  A single SynParams can be shared
// by any number of synapses; it must not be modified while they are being processed.
type SynParams struct {
	Type           SynTypes    `desc:"how the weighted input is transformed"`
	Rule           PlastRules  `desc:"learning rule used by UpdateWeight / ApplySTDP"`
	LRate          float32     `def:"0.01" desc:"learning rate"`
	DelayMs        float32     `def:"0" desc:"transmission delay (msec) of propagated signals -- 0 = read-through only"`
	WtInit         float32     `def:"0.5" desc:"initial weight"`
	WtMin          float32     `def:"0" desc:"minimum weight"`
	WtMax          float32     `def:"1" desc:"maximum weight"`
	DeliverDelayed bool        `def:"false" desc:"if true, delayed signals whose delivery time has elapsed are added to the weighted input when they are drained, otherwise they are only removed"`
	Guard          GuardParams `view:"inline" desc:"numerical safety limits for weight changes"`
	Elig           EligParams  `view:"inline" desc:"eligibility trace parameters"`
}

func (sp *SynParams) Defaults() {
	sp.Type = Excitatory
	sp.Rule = NoPlast
	sp.LRate = 0.01
	sp.DelayMs = 0
	sp.WtInit = 0.5
	sp.WtMin = 0
	sp.WtMax = 1
	sp.DeliverDelayed = false
	sp.Guard.Defaults()
	sp.Elig.Defaults()
	sp.Update()
}

// Update must be called after any changes to parameters
func (sp *SynParams) Update() {
	if sp.WtMax < sp.WtMin {
		sp.WtMin, sp.WtMax = sp.WtMax, sp.WtMin
	}
	sp.DelayMs = mat32.Max(sp.DelayMs, 0)
	sp.Guard.Update()
}

// ClampWt clamps the weight into [WtMin, WtMax], mapping NaN to WtMin
func (sp *SynParams) ClampWt(wt float32) float32 {
	if mat32.IsNaN(wt) {
		return sp.WtMin
	}
	return mat32.Min(mat32.Max(wt, sp.WtMin), sp.WtMax)
}

// TypeInput applies the synapse type transform to the weighted input
func (sp *SynParams) TypeInput(wi float32) float32 {
	switch sp.Type {
	case Inhibitory:
		return -mat32.Abs(wi)
	case Modulatory:
		return wi * ModScale
	}
	return wi
}

// RateDWt returns the raw weight change for the rate-based rules
// (Hebbian, BCM, Oja) -- 0 for NoPlast and STDP.
func (sp *SynParams) RateDWt(pre, post, wt, dt float32) float32 {
	switch sp.Rule {
	case Hebbian:
		return sp.LRate * pre * post * dt
	case BCM:
		return sp.LRate * post * (post - BCMTheta) * pre * dt
	case Oja:
		return sp.LRate * post * (pre - post*wt) * dt
	}
	return 0
}

// STDPDWt returns the raw weight change for spike times tPre, tPost (msec):
// potentiation when post follows pre, depression when it precedes it.
func (sp *SynParams) STDPDWt(tPre, tPost float32) float32 {
	dt := tPost - tPre
	switch {
	case dt > 0:
		return sp.LRate * mat32.Exp(-dt/STDPTau)
	case dt < 0:
		return -sp.LRate * mat32.Exp(dt/STDPTau)
	}
	return 0
}

func clampAbs(v, mx float32) float32 {
	if mat32.IsNaN(v) {
		return 0
	}
	if v > mx {
		return mx
	}
	if v < -mx {
		return -mx
	}
	return v
}

// clamp01 clamps v into [0, 1], mapping NaN to 0
func clamp01(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
