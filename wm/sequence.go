// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wm

import (
	"sort"
)

// Prediction is the sequence buffer readout
type Prediction struct {

	// decoded label of the predicted next token, empty if Confidence < PredThr
	Label string

	// max activation of the predicted population
	Confidence float32
}

// sequence holds the token history and the transition table that drives
// the predicted population
type sequence struct {
	cur   string
	trans map[string]map[string]int
	vocab map[string][]int
	pred  Prediction
}

func (sq *sequence) init() {
	sq.cur = ""
	sq.trans = make(map[string]map[string]int)
	sq.vocab = make(map[string][]int)
	sq.pred = Prediction{}
}

// UpdateSequence presents the next token of a sequence.  The previous and
// current populations are reset to the previous and current token patterns,
// the observed transition is counted, and the predicted population is driven
// by every token seen to follow this one, in proportion to its transition
// probability.  The readout decodes the known token whose pattern is most
// active in the predicted population.
func (st *Store) UpdateSequence(token string) Prediction {
	st.mu.Lock()
	defer st.mu.Unlock()
	sq := &st.seq
	n := st.CurPop.Len()
	pat := LabelPattern(token, n, st.Params.PatSize)
	sq.vocab[token] = pat

	prev := sq.cur
	st.PrevPop.SetActs(0)
	if prev != "" {
		injectPattern(st.PrevPop, sq.vocab[prev], 1)
		nx := sq.trans[prev]
		if nx == nil {
			nx = make(map[string]int)
			sq.trans[prev] = nx
		}
		nx[token]++
	}
	st.CurPop.SetActs(0)
	injectPattern(st.CurPop, pat, 1)
	sq.cur = token

	st.PredPop.SetActs(0)
	nexts := sq.trans[token]
	tot := 0
	for _, c := range nexts {
		tot += c
	}
	for _, nt := range sortedKeys(nexts) {
		injectPattern(st.PredPop, sq.vocab[nt], float32(nexts[nt])/float32(tot))
	}
	sq.pred = st.decodePred()
	return sq.pred
}

// decodePred reads out the predicted population
func (st *Store) decodePred() Prediction {
	sq := &st.seq
	conf, _ := st.PredPop.MaxAct()
	pd := Prediction{Confidence: conf}
	if conf < st.Params.PredThr {
		return pd
	}
	best := float32(0)
	for _, tok := range sortedKeys(sq.vocab) {
		if m := patternMean(st.PredPop, sq.vocab[tok]); m > best {
			best = m
			pd.Label = tok
		}
	}
	return pd
}

// GetSequencePrediction returns the readout of the last UpdateSequence
func (st *Store) GetSequencePrediction() Prediction {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.seq.pred
}

func sortedKeys[V any](m map[string]V) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}
