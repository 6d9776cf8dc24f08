// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wm

import (
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/emer/spikewm/snn"
)

// LabelPattern returns the deterministic set of unit indices (sorted, unique)
// representing label in a population of n units.  The pattern has exactly
// min(size, n) units: hash collisions are resolved by rehashing with the
// next salt.
func LabelPattern(label string, n, size int) []int {
	if n <= 0 || size <= 0 {
		return nil
	}
	size = min(size, n)
	idxs := make([]int, 0, size)
	for salt := 0; len(idxs) < size; salt++ {
		h := xxhash.Sum64String(label + "#" + strconv.Itoa(salt))
		idx := int(h % uint64(n))
		if !slices.Contains(idxs, idx) {
			idxs = append(idxs, idx)
		}
	}
	slices.Sort(idxs)
	return idxs
}

// injectPattern adds amt to every unit of the pattern (clamped to 1 by the neuron)
func injectPattern(pl *snn.Population, pat []int, amt float32) {
	for _, i := range pat {
		pl.Inject(i, amt)
	}
}

// patternMean returns the mean activation of the pattern units
func patternMean(pl *snn.Population, pat []int) float32 {
	if len(pat) == 0 {
		return 0
	}
	sum := float32(0)
	for _, i := range pat {
		sum += pl.UnitAct(i)
	}
	return sum / float32(len(pat))
}
