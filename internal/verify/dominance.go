// Package verify computes control-flow facts (CFG, dominance) over
// internal/ir functions and checks the structural invariants the driver
// depends on before accepting a module as transformed.
package verify

import "github.com/0bVdnt/LLVM-Passes/internal/ir"

// CFG is a function's control-flow graph, built once and reused by both
// dominance computation and the structural checks in verifier.go.
type CFG struct {
	Entry  ir.BlockID
	order  []ir.BlockID // reverse-postorder, entry first
	index  map[ir.BlockID]int
	preds  map[ir.BlockID][]ir.BlockID
	succs  map[ir.BlockID][]ir.BlockID
}

// BuildCFG walks fn's blocks from the entry via successor edges only;
// blocks no path reaches never enter the graph.
func BuildCFG(fn *ir.Function) *CFG {
	g := &CFG{
		index: make(map[ir.BlockID]int),
		preds: make(map[ir.BlockID][]ir.BlockID),
		succs: make(map[ir.BlockID][]ir.BlockID),
	}
	entry := fn.Entry()
	if entry == nil {
		return g
	}
	g.Entry = entry.ID

	visited := make(map[ir.BlockID]bool)
	var postorder []ir.BlockID
	var visit func(id ir.BlockID)
	visit = func(id ir.BlockID) {
		if visited[id] {
			return
		}
		visited[id] = true
		blk := fn.Block(id)
		if blk == nil {
			return
		}
		for _, s := range blk.Successors() {
			g.succs[id] = append(g.succs[id], s)
			g.preds[s] = append(g.preds[s], id)
			visit(s)
		}
		postorder = append(postorder, id)
	}
	visit(entry.ID)

	g.order = make([]ir.BlockID, len(postorder))
	for i, id := range postorder {
		g.order[len(postorder)-1-i] = id
	}
	for i, id := range g.order {
		g.index[id] = i
	}
	return g
}

// Reachable reports whether id was reachable from the entry when the CFG
// was built.
func (g *CFG) Reachable(id ir.BlockID) bool {
	_, ok := g.index[id]
	return ok
}

// Preds returns id's predecessors in the built CFG.
func (g *CFG) Preds(id ir.BlockID) []ir.BlockID { return g.preds[id] }

// Succs returns id's successors in the built CFG.
func (g *CFG) Succs(id ir.BlockID) []ir.BlockID { return g.succs[id] }

// ReversePostorder returns reachable blocks in reverse-postorder, entry
// first, the iteration order the dominator algorithm requires for fast
// convergence.
func (g *CFG) ReversePostorder() []ir.BlockID { return g.order }

// Dominators computes the immediate-dominator table using the standard
// Cooper/Harvey/Kennedy iterative algorithm ("A Simple, Fast Dominance
// Algorithm"). idom[Entry] = Entry by convention.
type Dominators struct {
	cfg  *CFG
	idom map[ir.BlockID]ir.BlockID
}

// ComputeDominators runs the fixed-point iteration to convergence.
func ComputeDominators(g *CFG) *Dominators {
	d := &Dominators{cfg: g, idom: make(map[ir.BlockID]ir.BlockID)}
	if len(g.order) == 0 {
		return d
	}
	d.idom[g.Entry] = g.Entry

	changed := true
	for changed {
		changed = false
		for _, b := range g.order {
			if b == g.Entry {
				continue
			}
			var newIdom ir.BlockID
			set := false
			for _, p := range g.preds[b] {
				if _, ok := d.idom[p]; !ok {
					continue
				}
				if !set {
					newIdom = p
					set = true
					continue
				}
				newIdom = d.intersect(newIdom, p)
			}
			if !set {
				continue
			}
			if old, ok := d.idom[b]; !ok || old != newIdom {
				d.idom[b] = newIdom
				changed = true
			}
		}
	}
	return d
}

func (d *Dominators) intersect(a, b ir.BlockID) ir.BlockID {
	ia, ib := d.cfg.index[a], d.cfg.index[b]
	for ia != ib {
		for ia > ib {
			a = d.idom[a]
			ia = d.cfg.index[a]
		}
		for ib > ia {
			b = d.idom[b]
			ib = d.cfg.index[b]
		}
	}
	return a
}

// IDom returns b's immediate dominator, or (InvalidBlock, false) if b was
// unreachable when the dominator tree was built.
func (d *Dominators) IDom(b ir.BlockID) (ir.BlockID, bool) {
	id, ok := d.idom[b]
	return id, ok
}

// Dominates reports whether a dominates b (a strictly dominates, or a==b).
func (d *Dominators) Dominates(a, b ir.BlockID) bool {
	if _, ok := d.idom[b]; !ok {
		return false
	}
	for cur := b; ; {
		if cur == a {
			return true
		}
		next, ok := d.idom[cur]
		if !ok || next == cur {
			return cur == a
		}
		cur = next
	}
}
