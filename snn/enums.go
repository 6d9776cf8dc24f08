// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"github.com/goki/ki/kit"
)

// NeurStates are the discrete states of a Neuron.  A neuron only changes
// state inside its own Process call.
type NeurStates int32

//go:generate stringer -type=NeurStates,SynTypes,PlastRules -output=enumgen.go

var KiT_NeurStates = kit.Enums.AddEnum(NeurStatesN, kit.NotBitFlag, nil)

func (ev NeurStates) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *NeurStates) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

// The neuron states
const (
	// Inactive is the resting state: integrating input, below threshold.
	Inactive NeurStates = iota

	// Active is entered when activation crosses threshold.  In Process it is
	// immediately followed by Refractory, so observers only see it transiently.
	Active

	// Refractory follows a spike: the neuron ignores input until its
	// refractory timer counts down to 0.
	Refractory

	NeurStatesN
)

// SynTypes determine how a synapse transforms the weighted source activation.
type SynTypes int32

var KiT_SynTypes = kit.Enums.AddEnum(SynTypesN, kit.NotBitFlag, nil)

func (ev SynTypes) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *SynTypes) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

// The synapse types
const (
	// Excitatory passes the weighted input unchanged
	Excitatory SynTypes = iota

	// Inhibitory forces the weighted input to be negative, with the same magnitude
	Inhibitory

	// Modulatory scales the weighted input by ModScale (0.1) -- a weaker,
	// neuromodulatory-style contribution
	Modulatory

	SynTypesN
)

// PlastRules are the online learning rules a synapse can use to change its weight.
type PlastRules int32

var KiT_PlastRules = kit.Enums.AddEnum(PlastRulesN, kit.NotBitFlag, nil)

func (ev PlastRules) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *PlastRules) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

// The plasticity rules
const (
	// NoPlast means the weight never changes through learning
	NoPlast PlastRules = iota

	// Hebbian: dw = lrate * pre * post * dt
	Hebbian

	// BCM: dw = lrate * post * (post - theta) * pre * dt, with fixed theta = 0.5
	BCM

	// Oja: dw = lrate * post * (pre - post * w) * dt -- self-normalizing Hebbian
	Oja

	// STDP: spike-timing dependent, driven by ApplySTDP with pre / post spike times
	STDP

	PlastRulesN
)
