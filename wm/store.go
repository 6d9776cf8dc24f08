// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wm implements capacity-bounded working memory over spiking
// populations: role -> filler bindings and a sequence prediction buffer.
package wm

import (
	"log"
	"sort"
	"sync"

	"github.com/emer/emergent/v2/prjn"
	"github.com/emer/spikewm/snn"
	"github.com/goki/mat32"
)

// Topology is the population management that the store needs from its
// network: creating populations and connecting them.  snn.Network implements it.
type Topology interface {
	AddPopulation(name string, n int, np *snn.NeuronParams) *snn.Population
	ConnectPops(send, recv *snn.Population, pat prjn.Pattern, sp *snn.SynParams) int
}

// Binding is a role -> filler association, realized as coordinated activation
// of the role pattern in the Role population and the filler pattern in the
// Filler population.
type Binding struct {

	// population holding role patterns
	Role *snn.Population

	// population holding filler patterns
	Filler *snn.Population

	// label of the role, e.g. "agent"
	RoleLabel string

	// label of the filler, e.g. "dog"
	FillerLabel string

	// current strength in [0, 1]
	Strength float32

	// unit indices of the role pattern in Role
	RolePat []int

	// unit indices of the filler pattern in Filler
	FillerPat []int
}

// Store is the capacity-bounded working memory.  Every public method holds a
// single coarse lock for its whole duration, so steps never overlap.
type Store struct {

	// parameters -- set before use, call Params.Update after changes
	Params Params

	// population holding role patterns
	RolePop *snn.Population

	// population holding filler patterns
	FillerPop *snn.Population

	// sequence buffer: current token
	CurPop *snn.Population

	// sequence buffer: previous token
	PrevPop *snn.Population

	// sequence buffer: predicted next token
	PredPop *snn.Population

	// synapse params used for role -> filler topology connections
	BindSyn snn.SynParams

	topo     Topology
	mu       sync.Mutex
	bindings []*Binding
	nEdges   int
	seq      sequence
}

// NewStore creates the role, filler and sequence populations (named with
// given prefix) in topo and returns a store using them.  pr may be nil for defaults.
// Returns nil (and logs) if any population could not be created, e.g.,
// because the prefix is already in use on topo.
func NewStore(topo Topology, prefix string, pr *Params) *Store {
	st := &Store{topo: topo}
	if pr != nil {
		st.Params = *pr
		st.Params.Update()
	} else {
		st.Params.Defaults()
	}
	np := &snn.NeuronParams{}
	np.Defaults()
	n := st.Params.PopSize
	st.RolePop = topo.AddPopulation(prefix+"Role", n, np)
	st.FillerPop = topo.AddPopulation(prefix+"Filler", n, np)
	st.CurPop = topo.AddPopulation(prefix+"SeqCur", n, np)
	st.PrevPop = topo.AddPopulation(prefix+"SeqPrev", n, np)
	st.PredPop = topo.AddPopulation(prefix+"SeqPred", n, np)
	for _, pl := range []*snn.Population{st.RolePop, st.FillerPop, st.CurPop, st.PrevPop, st.PredPop} {
		if pl == nil {
			log.Printf("wm.NewStore: could not create populations with prefix: %v\n", prefix)
			return nil
		}
	}
	st.BindSyn.Defaults()
	st.BindSyn.Rule = snn.Hebbian
	st.seq.init()
	return st
}

// CreateBinding binds role to filler with given strength (clamped to [0, 1]).
// If the store is full, the single weakest binding is evicted first.
// The role and filler patterns are injected into their populations and a
// role -> filler topology connection is added.
func (st *Store) CreateBinding(role, filler string, strength float32) Binding {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.bindings) >= st.Params.Capacity {
		st.evictWeakest()
	}
	strength = mat32.Min(mat32.Max(strength, 0), 1)
	if mat32.IsNaN(strength) {
		strength = 0
	}
	bd := &Binding{
		Role:        st.RolePop,
		Filler:      st.FillerPop,
		RoleLabel:   role,
		FillerLabel: filler,
		Strength:    strength,
		RolePat:     LabelPattern(role, st.RolePop.Len(), st.Params.PatSize),
		FillerPat:   LabelPattern(filler, st.FillerPop.Len(), st.Params.PatSize),
	}
	injectPattern(st.RolePop, bd.RolePat, strength)
	injectPattern(st.FillerPop, bd.FillerPat, strength)
	st.nEdges += st.topo.ConnectPops(st.RolePop, st.FillerPop, prjn.NewOneToOne(), &st.BindSyn)
	st.bindings = append(st.bindings, bd)
	return *bd
}

// evictWeakest removes the binding with the lowest strength (first one on ties)
func (st *Store) evictWeakest() {
	if len(st.bindings) == 0 {
		return
	}
	mi := 0
	for i, bd := range st.bindings {
		if bd.Strength < st.bindings[mi].Strength {
			mi = i
		}
	}
	st.bindings = append(st.bindings[:mi], st.bindings[mi+1:]...)
}

// ProcessStep runs one maintenance step of duration dt:
// engaged neurons receive the maintenance current, all strengths decay by
// DecayRate^dt, each strength is refreshed to max(decayed * RefreshMult,
// co-activation) where co-activation is the lesser of the mean Role and
// Filler population activities, and bindings below PruneThr are removed.
func (st *Store) ProcessStep(dt float32) {
	st.mu.Lock()
	defer st.mu.Unlock()
	pr := &st.Params
	for _, pl := range []*snn.Population{st.RolePop, st.FillerPop} {
		for i := 0; i < pl.Len(); i++ {
			if pl.UnitAct(i) > pr.MaintFloor {
				pl.Inject(i, pr.MaintCurrent)
			}
		}
	}
	decay := mat32.Pow(pr.DecayRate, dt)
	coact := mat32.Min(st.RolePop.MeanAct(), st.FillerPop.MeanAct())
	keep := st.bindings[:0]
	for _, bd := range st.bindings {
		bd.Strength = mat32.Max(bd.Strength*decay*pr.RefreshMult, coact)
		if bd.Strength >= pr.PruneThr {
			keep = append(keep, bd)
		}
	}
	for i := len(keep); i < len(st.bindings); i++ {
		st.bindings[i] = nil
	}
	st.bindings = keep
}

// GetCurrentBindings returns a copy of all bindings, strongest first
func (st *Store) GetCurrentBindings() []Binding {
	st.mu.Lock()
	defer st.mu.Unlock()
	bds := make([]Binding, len(st.bindings))
	for i, bd := range st.bindings {
		bds[i] = *bd
	}
	sort.SliceStable(bds, func(i, j int) bool {
		return bds[i].Strength > bds[j].Strength
	})
	return bds
}

// GetBinding returns the strongest binding for given role label
func (st *Store) GetBinding(role string) (Binding, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var best *Binding
	for _, bd := range st.bindings {
		if bd.RoleLabel == role && (best == nil || bd.Strength > best.Strength) {
			best = bd
		}
	}
	if best == nil {
		return Binding{}, false
	}
	return *best, true
}

// Len returns the number of bindings held
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.bindings)
}

// NEdges returns the total number of topology edges added by CreateBinding
func (st *Store) NEdges() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.nEdges
}

// Clear removes all bindings and resets the sequence buffer.
// Population activations are not changed.
func (st *Store) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.bindings = nil
	st.seq.init()
}
