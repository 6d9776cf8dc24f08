// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"math"
	"sync/atomic"
)

// atomicF32 is a float32 stored as bits in an atomic.Uint32.
// All access is relaxed with respect to any other field.
type atomicF32 struct {
	v atomic.Uint32
}

func (af *atomicF32) Load() float32 {
	return math.Float32frombits(af.v.Load())
}

func (af *atomicF32) Store(val float32) {
	af.v.Store(math.Float32bits(val))
}

// Update applies fn to the current value in a compare-and-swap loop and
// returns the new value.
func (af *atomicF32) Update(fn func(cur float32) float32) float32 {
	for {
		old := af.v.Load()
		nw := fn(math.Float32frombits(old))
		if af.v.CompareAndSwap(old, math.Float32bits(nw)) {
			return nw
		}
	}
}

// atomicF64 is a float64 stored as bits in an atomic.Uint64
type atomicF64 struct {
	v atomic.Uint64
}

func (af *atomicF64) Load() float64 {
	return math.Float64frombits(af.v.Load())
}

func (af *atomicF64) Store(val float64) {
	af.v.Store(math.Float64bits(val))
}

func (af *atomicF64) Add(delta float64) float64 {
	for {
		old := af.v.Load()
		nw := math.Float64frombits(old) + delta
		if af.v.CompareAndSwap(old, math.Float64bits(nw)) {
			return nw
		}
	}
}
