//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fanout

import (
	"bytes"
	"math"

	"github.com/markkurossi/techmap/gatelink"
	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/pwl"
	"github.com/markkurossi/techmap/timing"
	"github.com/markkurossi/techmap/utils"
	"github.com/pkg/errors"
)

// maxPasses bounds the number of optimization passes per phase.
const maxPasses = 8

// Stats counts the work of one optimizer run.
type Stats struct {
	Passes  int
	Visited int
	Commits int
	Resized int
}

// Optimizer rebuilds the fanout trees of a mapped network.
type Optimizer struct {
	lib    *library.Library
	params *utils.Params
	log    *utils.Logger
	algs   []Configured
	gates  []*library.Gate
	invs   []*library.Gate

	g     *gatelink.Graph
	a     *timing.Analysis
	stats Stats
}

// New creates a new fanout optimizer for the library.
func New(lib *library.Library, params *utils.Params,
	log *utils.Logger) *Optimizer {

	o := &Optimizer{
		lib:    lib,
		params: params,
		log:    log,
		algs:   Algorithms(params),
		invs:   lib.Inverters(),
	}
	o.gates = append(o.gates, lib.Buffers()...)
	o.gates = append(o.gates, o.invs...)
	return o
}

func (o *Optimizer) loc() utils.Point {
	return utils.Pass("fanout")
}

// Optimize optimizes the fanout trees of the mapped network. On
// success the network is replaced with the optimized network; on
// failure it is left unchanged.
func (o *Optimizer) Optimize(net *network.Network) (Stats, error) {
	o.stats = Stats{}
	fp := &o.params.Fanout
	if fp.Disabled {
		return o.stats, nil
	}
	if len(o.invs) == 0 {
		return o.stats, errors.Wrap(library.ErrIncomplete, "no inverter")
	}
	if len(o.algs) == 0 {
		return o.stats, o.log.Errorf(o.loc(), "no fanout algorithms enabled")
	}
	work := net.Clone()
	gatelink.SpliceWires(work)

	if err := o.converge(work, fp.ForceRequired); err != nil {
		return o.stats, err
	}
	if fp.AreaRecovery {
		if err := o.converge(work, false); err != nil {
			return o.stats, err
		}
		if fp.Resize {
			if err := o.resize(work); err != nil {
				return o.stats, err
			}
		}
	}
	o.g = nil
	o.a = nil
	net.Assign(work)
	o.log.Debugf(1, "fanout: passes=%d visited=%d commits=%d resized=%d\n",
		o.stats.Passes, o.stats.Visited, o.stats.Commits, o.stats.Resized)
	return o.stats, nil
}

// converge runs passes until a pass commits no changes.
func (o *Optimizer) converge(work *network.Network, force bool) error {
	for i := 0; i < maxPasses; i++ {
		commits, err := o.pass(work, force)
		if err != nil {
			return err
		}
		if commits == 0 {
			return nil
		}
	}
	o.log.Warningf(o.loc(), "no fixed point after %d passes", maxPasses)
	return nil
}

// pass runs one output-to-input sweep over the network and returns
// the number of committed trees.
func (o *Optimizer) pass(work *network.Network, force bool) (int, error) {
	g, err := gatelink.New(work, o.lib)
	if err != nil {
		return 0, err
	}
	a, err := timing.Analyze(work, o.lib, o.params)
	if err != nil {
		return 0, err
	}
	o.g = g
	o.a = a
	o.stats.Passes++
	o.seedRequired(work, force)

	var commits int
	for _, n := range work.ReverseTopoOrder() {
		if n.IsOutput() || g.Deleted(n.ID) || o.member(n.ID) {
			continue
		}
		if o.visit(n) {
			commits++
		}
	}
	if commits > 0 {
		g.Materialize()
	}
	o.stats.Commits += commits
	o.log.Debugf(1, "fanout: pass %d: %d commits\n", o.stats.Passes, commits)
	return commits, nil
}

// seedRequired sets the required times of the primary output and
// latch input links. With force, the required times are shifted so
// that the best output slack is -1.
func (o *Optimizer) seedRequired(work *network.Network, force bool) {
	deflt := o.params.DefaultRequired
	if deflt == 0 {
		deflt = o.a.Delay
	}
	var shift float64
	if force && len(work.Outputs()) > 0 {
		best := math.Inf(-1)
		for _, po := range work.Outputs() {
			best = math.Max(best, o.a.NodeSlack(po.ID))
		}
		if best > -1 && !math.IsInf(best, 1) {
			shift = -(best + 1)
		}
	}
	sh := pwl.Both(shift)

	for _, po := range work.Outputs() {
		req := pwl.Both(deflt)
		if po.HasRequired {
			req = po.Required
		}
		o.g.SetRequired(po.Fanins[0], po.ID, gatelink.OutputPin, req.Add(sh))
	}
	for _, n := range work.Nodes() {
		if !n.Sequential() {
			continue
		}
		for pin, f := range n.Fanins {
			o.g.SetRequired(f, n.ID, pin, pwl.Both(deflt).Add(sh))
		}
	}
}

// member tests if the node is a buffer or inverter that belongs to the
// fanout tree of its driver.
func (o *Optimizer) member(id network.NodeID) bool {
	gate := o.g.Gate(id)
	if gate == nil || (!gate.Buffer() && !gate.Inverter()) {
		return false
	}
	_, ok := o.g.Driver(id, 0)
	return ok
}

// extract returns the current fanout tree of the root, its sinks, and
// the buffers and inverters of the tree.
func (o *Optimizer) extract(root network.NodeID) (
	*Node, []Sink, []network.NodeID) {

	var sinks []Sink
	var members []network.NodeID

	var walk func(id network.NodeID, pol int) []*Node
	walk = func(id network.NodeID, pol int) []*Node {
		var children []*Node
		for _, l := range o.g.Links(id) {
			if l.Pin == 0 && o.member(l.To) {
				gate := o.g.Gate(l.To)
				members = append(members, l.To)
				children = append(children,
					Buffer(gate, walk(l.To, pol^inverting(gate))...))
				continue
			}
			sinks = append(sinks, Sink{
				Link:     l,
				Polarity: pol,
			})
			children = append(children, Leaf(len(sinks)-1))
		}
		return children
	}
	children := walk(root, 0)
	return Root(o.g.Gate(root), children...), sinks, members
}

// source returns the fanout source of the node and the arrival times
// at its gate pins.
func (o *Optimizer) source(n *network.Node) (Source, []pwl.Delay) {
	gate := o.g.Gate(n.ID)
	if gate == nil {
		return NewInputSource(n.String(),
			timing.InputArrival(n, o.lib, o.params, 0),
			timing.InputDrive(n, o.lib), timing.InputMaxLoad(n, o.lib),
			o.params.LoadPenalty), nil
	}
	in := make([]pwl.Delay, len(gate.Pins))
	for pin, f := range o.g.Fanins(n.ID) {
		switch {
		case gate.Seq == library.SeqLatch:
			in[pin] = pwl.Both(o.params.DefaultArrival)
		case f == network.None:
		default:
			in[pin] = o.a.Arrival[f]
		}
	}
	return NewGateSource(n.String(), o.lib.Class(gate), in, 0,
		o.params.LoadPenalty), in
}

// candidate is a fanout tree candidate with an optional duplicated
// complementary source.
type candidate struct {
	alg  string
	tree *Node
	dup  *Node
	cost Cost
}

// visit optimizes the fanout tree of the node and reports whether a
// new tree was committed.
func (o *Optimizer) visit(n *network.Node) bool {
	tree, sinks, members := o.extract(n.ID)
	if len(sinks) == 0 {
		return false
	}
	src, in := o.source(n)
	pb := NewProblem(sinks, o.gates, o.lib.WireLoad, o.params.LoadPenalty)

	best := candidate{
		tree: tree,
		cost: pb.Evaluate(src, tree),
	}
	if len(sinks) > 1 {
		o.stats.Visited++
		for _, c := range o.candidates(pb, src, n, in) {
			if c.cost.Better(best.cost) {
				best = c
			}
		}
	}
	changed := best.tree != tree
	dupID := network.None
	if changed {
		if o.log.Verbose() >= 2 {
			var buf bytes.Buffer
			best.tree.Dump(&buf, pb)
			if best.dup != nil {
				best.dup.Dump(&buf, pb)
			}
			o.log.Debugf(2, "fanout: %s: %s: %s => %s (%s)\n%s",
				n, pb, pb.Evaluate(src, tree), best.cost, best.alg,
				buf.String())
		}
		dupID = o.commit(n.ID, pb, best, members)
	}
	o.propagate(n.ID, pb, best.tree, 0)
	if dupID != network.None {
		o.propagate(dupID, pb, best.dup, 1)
	}
	return changed
}

// candidates synthesizes the candidate trees of the problem: the
// source X alone, the inverted source Y alone, both assignments of X
// and Y to the two polarities, and X with a duplicated complementary
// gate when duplication is allowed.
func (o *Optimizer) candidates(pb *Problem, x Source, n *network.Node,
	in []pwl.Delay) []candidate {

	steps := o.params.Fanout.PeepholeSteps
	synth := func(pb *Problem, src Source) (*Node, string) {
		sol, err := Synthesize(pb, src, o.algs, steps)
		if err != nil {
			o.log.Debugf(3, "fanout: %s: %s: %s\n", src, pb, err)
			return nil, ""
		}
		tree, err := Expand(sol.Items)
		if err != nil {
			panic(err)
		}
		return tree, sol.Alg
	}
	var result []candidate
	add := func(tree *Node, alg string) {
		result = append(result, candidate{
			alg:  alg,
			tree: tree,
			cost: pb.Evaluate(x, tree),
		})
	}
	gate := o.g.Gate(n.ID)

	if t, alg := synth(pb, x); t != nil {
		add(t, alg)
	}
	y := NewChainSource(x, gate, o.invs, o.params.LoadPenalty)
	if t, alg := synth(pb, y); t != nil {
		add(Root(gate, Buffer(t.Gate, t.Children...)), "y:"+alg)
	}

	if pb.Lists[0].Len() == 0 || pb.Lists[1].Len() == 0 {
		return result
	}
	for p := 0; p < 2; p++ {
		tx, ax := synth(pb.Only(p), x)
		ty, ay := synth(pb.Only(p^1), y)
		if tx == nil || ty == nil {
			continue
		}
		children := append([]*Node(nil), tx.Children...)
		children = append(children, Buffer(ty.Gate, ty.Children...))
		add(Root(tx.Gate, children...), ax+"+y:"+ay)
	}

	if !o.params.AllowDuplication || gate == nil ||
		gate.Seq != library.Combinational {
		return result
	}
	comps := o.lib.Complements(gate)
	if len(comps) == 0 {
		return result
	}
	d := NewGateSource(n.String()+"'", comps, in, 1, o.params.LoadPenalty)
	tx, ax := synth(pb.Only(0), x)
	td, ad := synth(pb.Only(1), d)
	if tx == nil || td == nil {
		return result
	}
	cx := pb.Evaluate(x, tx)
	cd := pb.Evaluate(d, td)
	result = append(result, candidate{
		alg:  ax + "+dup:" + ad,
		tree: tx,
		dup:  td,
		cost: Cost{
			Slack: math.Min(cx.Slack, cd.Slack),
			Area:  cx.Area + cd.Area,
		},
	})
	return result
}

// commit replaces the fanout tree of the root with the candidate and
// returns the ID of the duplicated source or network.None.
func (o *Optimizer) commit(root network.NodeID, pb *Problem, c candidate,
	members []network.NodeID) network.NodeID {

	o.g.RemoveAll(root)
	for _, m := range members {
		o.g.RemoveAll(m)
	}
	for _, m := range members {
		o.g.Delete(m)
	}
	if c.tree.Gate != nil && c.tree.Gate != o.g.Gate(root) {
		o.g.SetGate(root, c.tree.Gate)
	}
	o.attach(pb, root, c.tree.Children)

	if c.dup == nil {
		return network.None
	}
	id := o.g.NewNode(c.dup.Gate)
	for pin, f := range o.g.Fanins(root) {
		o.g.Add(f, gatelink.Link{
			To:       id,
			Pin:      pin,
			Load:     c.dup.Gate.Pins[pin].Load,
			Required: pwl.Inf(1),
		})
	}
	o.attach(pb, id, c.dup.Children)
	return id
}

// attach links the tree children under the parent, creating virtual
// nodes for the buffers.
func (o *Optimizer) attach(pb *Problem, parent network.NodeID,
	children []*Node) {

	for _, c := range children {
		switch c.Kind {
		case KindSink:
			o.g.Add(parent, pb.Sinks[c.Sink].Link)

		case KindBuffer:
			id := o.g.NewNode(c.Gate)
			o.g.Add(parent, gatelink.Link{
				To:       id,
				Pin:      0,
				Load:     c.Gate.Pins[0].Load,
				Required: pwl.Inf(1),
			})
			o.attach(pb, id, c.Children)

		default:
			panic("attach: unexpected source node")
		}
	}
}

// propagate sets the required times of the links driving the gate
// pins of the node from the required time of its fanout tree.
func (o *Optimizer) propagate(id network.NodeID, pb *Problem, tree *Node,
	pol int) {

	gate := o.g.Gate(id)
	if gate == nil || gate.Seq != library.Combinational {
		return
	}
	req, load, _ := pb.eval(tree, pol)
	for pin, f := range o.g.Fanins(id) {
		if f == network.None {
			continue
		}
		o.g.SetRequired(f, id, pin,
			gate.Pins[pin].Required(req, load, o.params.LoadPenalty))
	}
}

// resize replaces every mapped gate with the smallest functionally
// equivalent gate that does not make its local slack worse than
// min(0, current slack).
func (o *Optimizer) resize(work *network.Network) error {
	a, err := timing.Analyze(work, o.lib, o.params)
	if err != nil {
		return err
	}
	clock := pwl.Both(o.params.DefaultArrival)

	for _, n := range work.ReverseTopoOrder() {
		if !n.Mapped() {
			continue
		}
		gate := o.lib.Gate(n.Gate)
		req := a.Required[n.ID]
		if gate == nil || math.IsInf(req.Min(), 1) {
			continue
		}
		in := make([]pwl.Delay, len(n.Fanins))
		for i, f := range n.Fanins {
			if gate.Seq == library.SeqLatch {
				in[i] = clock
			} else {
				in[i] = a.Arrival[f]
			}
		}
		load := a.Load[n.ID]
		limit := math.Min(0, gate.Slack(in, req, load, o.params.LoadPenalty))

		for _, c := range o.lib.Class(gate) {
			if !pwl.Less(c.Area, gate.Area) {
				break
			}
			if pwl.Less(c.Slack(in, req, load, o.params.LoadPenalty), limit) {
				continue
			}
			o.log.Debugf(2, "fanout: resize %s: %s => %s\n", n, gate, c)
			n.Gate = c.Name
			o.stats.Resized++
			a, err = timing.Analyze(work, o.lib, o.params)
			if err != nil {
				return err
			}
			break
		}
	}
	return nil
}
