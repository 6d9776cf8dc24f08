// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"github.com/emer/etable/v2/etensor"
)

// Population is a named, ordered group of neurons in a Network.
// Units are addressed by their index within the population.
type Population struct {

	// name of the population, unique within its network
	Name string

	// network that owns the neurons
	Net *Network

	// handles of the neurons, in unit index order
	Handles []NeuronHandle

	// shape of the population, used by connectivity patterns -- 1D "Units" by default
	Shape etensor.Shape
}

// Context returns the simulation context of the owning network
func (pl *Population) Context() *Context {
	return pl.Net.Ctx
}

// Len returns the number of units
func (pl *Population) Len() int {
	return len(pl.Handles)
}

// Neuron returns the neuron at unit index i, or nil if it was removed
func (pl *Population) Neuron(i int) *Neuron {
	if i < 0 || i >= len(pl.Handles) {
		return nil
	}
	return pl.Net.Neuron(pl.Handles[i])
}

// UnitID returns the neuron id of unit i, or 0 if it was removed
func (pl *Population) UnitID(i int) uint64 {
	if nrn := pl.Neuron(i); nrn != nil {
		return nrn.ID
	}
	return 0
}

// UnitAct returns the activation of unit i, or 0 if it was removed
func (pl *Population) UnitAct(i int) float32 {
	if nrn := pl.Neuron(i); nrn != nil {
		return nrn.Act()
	}
	return 0
}

// Acts fills dst (resized as needed) with the activations of all units
func (pl *Population) Acts(dst []float32) []float32 {
	if cap(dst) < len(pl.Handles) {
		dst = make([]float32, len(pl.Handles))
	}
	dst = dst[:len(pl.Handles)]
	for i := range pl.Handles {
		dst[i] = pl.UnitAct(i)
	}
	return dst
}

// ActsTensor sets tsr to the population shape and fills it with the unit
// activations (0 for removed units)
func (pl *Population) ActsTensor(tsr *etensor.Float32) {
	tsr.SetShape(pl.Shape.Shp, pl.Shape.Strd, pl.Shape.Nms)
	for i := range pl.Handles {
		tsr.Values[i] = pl.UnitAct(i)
	}
}

// Inject adds amt to the activation of unit i (clamped to [0, 1])
func (pl *Population) Inject(i int, amt float32) {
	if nrn := pl.Neuron(i); nrn != nil {
		nrn.Inject(amt)
	}
}

// SetActs sets the activation of every unit to act
func (pl *Population) SetActs(act float32) {
	for i := range pl.Handles {
		if nrn := pl.Neuron(i); nrn != nil {
			nrn.SetAct(act)
		}
	}
}

// MeanAct returns the mean activation over all units
func (pl *Population) MeanAct() float32 {
	if len(pl.Handles) == 0 {
		return 0
	}
	sum := float32(0)
	for i := range pl.Handles {
		sum += pl.UnitAct(i)
	}
	return sum / float32(len(pl.Handles))
}

// MaxAct returns the maximum activation and its unit index (-1 if empty)
func (pl *Population) MaxAct() (float32, int) {
	mx := float32(0)
	mi := -1
	for i := range pl.Handles {
		if act := pl.UnitAct(i); mi < 0 || act > mx {
			mx = act
			mi = i
		}
	}
	return mx, mi
}

// Process runs one tick on every unit of the population, in unit order
func (pl *Population) Process(dt float32) {
	for i := range pl.Handles {
		if nrn := pl.Neuron(i); nrn != nil {
			nrn.Process(dt)
		}
	}
}
