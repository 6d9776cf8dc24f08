// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package spikewm is the overall repository for a discrete spiking-unit
simulation substrate and the structure-mining layers built on top of it.

This top-level of the repository has no functional code -- everything is organized
into the following sub-packages:

* snn: the core spiking substrate: three-state Neurons integrating weighted input,
plastic Synapses (Hebbian, BCM, Oja, STDP) with delayed signal queues and numerical
guardrails, and a Network arena addressing neurons by generation-checked handles.
Processing never blocks: contended synapse lists cause the tick to be skipped.

* wm: working memory -- a capacity-bounded store of role -> filler bindings realized
as activation patterns over two dedicated populations, plus a sequence buffer with
a transition-table prediction readout.

* assembly: mines a rolling window of activation snapshots for temporally stable,
self-discovered co-activation groups (assemblies), each tagged with a symbol.

* examples: these actually compile into runnable programs.  examples/wmasm drives
all three packages together and reports their statistics.
*/
package spikewm
