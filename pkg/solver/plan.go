package solver

import (
	"errors"
	"fmt"

	"github.com/codeGROOVE-dev/dayparts/pkg/model"
)

// errUnsupported reports a model whose constraint graph is not a cyclic chain.
var errUnsupported = errors.New("model structure not supported by chain solver")

// owner locates a variable inside the block structure.
type owner struct {
	block int
	group int // -1 for interval bounds
	slot  int // position inside the group; -1 for bounds and choice vars
}

// group is the set of members sharing one choice variable, or a single
// member when the hour is already resolved.
type group struct {
	choice     model.VarID
	members    []int   // indexes into Block.Members
	memberCons [][]int // constraints per member slot
	cons       []int   // constraints on the choice and the bounds only
}

type blockPlan struct {
	block  *model.Block
	local  []int
	groups []group
}

// plan is a model sorted by which blocks each constraint touches.
type plan struct {
	m      *model.Model
	blocks []blockPlan
	// links[i] ties block i-1 to block i.
	links   [][]int
	closure []int
	global  []int
}

func compile(m *model.Model) (*plan, error) {
	p := &plan{
		m:      m,
		blocks: make([]blockPlan, len(m.Blocks)),
		links:  make([][]int, len(m.Blocks)),
	}
	owners := make([]owner, len(m.Vars))
	for i := range owners {
		owners[i] = owner{block: -1, group: -1, slot: -1}
	}

	for bi := range m.Blocks {
		blk := &m.Blocks[bi]
		bp := &p.blocks[bi]
		bp.block = blk
		owners[blk.Start] = owner{block: bi, group: -1, slot: -1}
		owners[blk.End] = owner{block: bi, group: -1, slot: -1}

		byChoice := make(map[model.VarID]int)
		for mi, mem := range blk.Members {
			gi, ok := byChoice[mem.Choice]
			if !ok || mem.Choice == model.NoVar {
				gi = len(bp.groups)
				bp.groups = append(bp.groups, group{choice: mem.Choice})
				if mem.Choice != model.NoVar {
					byChoice[mem.Choice] = gi
					owners[mem.Choice] = owner{block: bi, group: gi, slot: -1}
				}
			}
			g := &bp.groups[gi]
			slot := len(g.members)
			g.members = append(g.members, mi)
			g.memberCons = append(g.memberCons, nil)
			for _, v := range mem.Indicators {
				owners[v] = owner{block: bi, group: gi, slot: slot}
			}
		}
	}

	for ci := range m.Constraints {
		if err := p.place(ci, owners); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// place files constraint ci under the block, link or group it touches.
func (p *plan) place(ci int, owners []owner) error {
	c := &p.m.Constraints[ci]
	blocks := make(map[int]bool)
	bi, gi, slot := -1, -1, -1
	for _, v := range c.Vars() {
		if v < 0 || int(v) >= len(owners) {
			return fmt.Errorf("constraint %s references unknown variable %d", c.Name, v)
		}
		o := owners[v]
		if o.block < 0 {
			return fmt.Errorf("%w: variable %s belongs to no block", errUnsupported, p.m.Vars[v].Name())
		}
		blocks[o.block] = true
		if o.group < 0 {
			continue
		}
		if gi >= 0 && (bi != o.block || gi != o.group) {
			return fmt.Errorf("%w: constraint %s spans member groups", errUnsupported, c.Name)
		}
		bi, gi = o.block, o.group
		if o.slot < 0 {
			continue
		}
		if slot >= 0 && slot != o.slot {
			return fmt.Errorf("%w: constraint %s spans members", errUnsupported, c.Name)
		}
		slot = o.slot
	}

	if gi >= 0 {
		if len(blocks) != 1 {
			return fmt.Errorf("%w: constraint %s ties a member to another block", errUnsupported, c.Name)
		}
		g := &p.blocks[bi].groups[gi]
		if slot >= 0 {
			g.memberCons[slot] = append(g.memberCons[slot], ci)
		} else {
			g.cons = append(g.cons, ci)
		}
		return nil
	}

	switch len(blocks) {
	case 0:
		p.global = append(p.global, ci)
		return nil
	case 1:
		for b := range blocks {
			p.blocks[b].local = append(p.blocks[b].local, ci)
		}
		return nil
	case 2:
		lo, hi := -1, -1
		for b := range blocks {
			if lo < 0 || b < lo {
				lo = b
			}
			if b > hi {
				hi = b
			}
		}
		n := len(p.blocks)
		switch {
		case hi == lo+1:
			p.links[hi] = append(p.links[hi], ci)
		case lo == 0 && hi == n-1:
			p.closure = append(p.closure, ci)
		default:
			return fmt.Errorf("%w: constraint %s ties non-adjacent blocks", errUnsupported, c.Name)
		}
		return nil
	default:
		return fmt.Errorf("%w: constraint %s ties %d blocks", errUnsupported, c.Name, len(blocks))
	}
}

// structural lists the constraints that involve interval bounds only.
func (p *plan) structural() []int {
	var out []int
	out = append(out, p.global...)
	for _, bp := range p.blocks {
		out = append(out, bp.local...)
	}
	for _, l := range p.links {
		out = append(out, l...)
	}
	return append(out, p.closure...)
}

func (p *plan) holds(a *model.Assignment, cons []int, active []bool) bool {
	for _, ci := range cons {
		if active[ci] && !p.m.Constraints[ci].Satisfied(a) {
			return false
		}
	}
	return true
}

func (p *plan) setBounds(a *model.Assignment, b, st int) {
	s, e := interval(st)
	a.Set(p.blocks[b].block.Start, s)
	a.Set(p.blocks[b].block.End, e)
}
