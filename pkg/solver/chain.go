package solver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/model"
)

const (
	epsilon   = 1e-9
	numStates = daypart.HoursPerDay * daypart.HoursPerDay
)

var (
	resolvedChoices = []int{0}
	binaryChoices   = []int{0, 1}
)

// interval decodes a block state into its start and end hours.
func interval(st int) (start, end int) {
	return st/daypart.HoursPerDay + 1, st%daypart.HoursPerDay + 1
}

// score orders candidate solutions: more weight first, then the narrower
// total interval width.
type score struct {
	weight float64
	width  int
}

func (s score) add(o score) score {
	return score{weight: s.weight + o.weight, width: s.width + o.width}
}

func (s score) better(o score) bool {
	if s.weight > o.weight+epsilon {
		return true
	}
	if s.weight < o.weight-epsilon {
		return false
	}
	return s.width < o.width
}

// Chain is an exact solver for models whose categories form a cycle: each
// block's bounds are tied only to its neighbours, and every indicator and
// choice variable belongs to a single block. It runs a dynamic program over
// the 576 (start, end) states of each block, fixing the first block's
// closure-relevant bounds in an outer loop.
//
// Among optimal solutions Chain returns the one with the smallest total
// interval width, then the first in (start, end) enumeration order. Within
// a block it prefers the AM reading and unset indicators when they tie.
type Chain struct {
	logger *slog.Logger
}

// NewChain returns a Chain solver.
func NewChain(logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{logger: logger}
}

type solution struct {
	states []int
	total  score
}

// Solve implements Solver.
func (c *Chain) Solve(ctx context.Context, m *model.Model) (*model.Assignment, error) {
	started := time.Now()
	c.logger.Debug("solving model",
		"objective", m.Objective,
		"blocks", len(m.Blocks),
		"vars", len(m.Vars),
		"constraints", len(m.Constraints))

	p, err := compile(m)
	if err != nil {
		return nil, err
	}
	sol, err := p.search(ctx, allActive(len(m.Constraints)), true)
	if err != nil {
		return nil, err
	}
	if sol == nil {
		// Infeasibility is already proven here; only the diagnostic can be lost.
		conflict, err := p.conflict(ctx)
		if err != nil {
			c.logger.Warn("model infeasible, conflict diagnostic incomplete",
				"error", err, "elapsed", time.Since(started))
			return nil, &InfeasibleError{}
		}
		c.logger.Info("model infeasible", "conflict", conflict, "elapsed", time.Since(started))
		return nil, &InfeasibleError{Conflict: conflict}
	}

	a := p.assign(sol)
	if err := m.Check(a); err != nil {
		return nil, fmt.Errorf("solver produced an invalid assignment: %w", err)
	}
	c.logger.Debug("model solved",
		"objective_value", m.ObjectiveValue(a),
		"width", sol.total.width,
		"elapsed", time.Since(started))
	return a, nil
}

func allActive(n int) []bool {
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}
	return active
}

// search returns the best solution under the active constraints, or nil
// when none exists. Without scoring, member groups are ignored and only the
// interval bounds are checked.
func (p *plan) search(ctx context.Context, active []bool, scoring bool) (*solution, error) {
	a := model.NewAssignment(len(p.m.Vars))
	if !p.holds(a, p.global, active) {
		return nil, nil
	}
	n := len(p.blocks)
	if n == 0 {
		return &solution{}, nil
	}

	feas := make([][]int, n)
	scores := make([][]score, n)
	for b := range p.blocks {
		if err := contextErr(ctx); err != nil {
			return nil, err
		}
		for st := range numStates {
			sc, ok := p.evalState(a, b, st, active, scoring)
			if !ok {
				continue
			}
			feas[b] = append(feas[b], st)
			scores[b] = append(scores[b], sc)
		}
		if len(feas[b]) == 0 {
			return nil, nil
		}
	}

	links := make([][]bool, n)
	for b := 1; b < n; b++ {
		links[b] = p.linkMatrix(a, b, feas[b-1], feas[b], active)
	}

	var best *solution
	for _, firsts := range p.closureGroups(feas[0], active) {
		if err := contextErr(ctx); err != nil {
			return nil, err
		}
		sol := p.chain(a, firsts, feas, scores, links, active)
		if sol != nil && !scoring {
			return sol, nil
		}
		if sol != nil && (best == nil || sol.total.better(best.total)) {
			best = sol
		}
	}
	return best, nil
}

// evalState checks block b's own constraints at state st and scores its
// members there.
func (p *plan) evalState(a *model.Assignment, b, st int, active []bool, scoring bool) (score, bool) {
	bp := &p.blocks[b]
	p.setBounds(a, b, st)
	if !p.holds(a, bp.local, active) {
		return score{}, false
	}
	if !scoring {
		return score{}, true
	}
	s, e := interval(st)
	sc := score{width: daypart.Duration(s, e, bp.block.Wraps)}
	for gi := range bp.groups {
		w, ok := p.bestGroup(a, bp.block, &bp.groups[gi], active, false)
		if !ok {
			return score{}, false
		}
		sc.weight += w
	}
	return sc, true
}

// bestGroup picks the choice value and indicator settings that maximize the
// group's weight at the bounds currently in a. With commit set, the winning
// values are left in a.
func (p *plan) bestGroup(a *model.Assignment, blk *model.Block, g *group, active []bool, commit bool) (float64, bool) {
	choices := resolvedChoices
	if g.choice != model.NoVar {
		choices = binaryChoices
	}
	bestW, bestC, found := 0.0, 0, false
	for _, c := range choices {
		if g.choice != model.NoVar {
			a.Set(g.choice, c)
		}
		if !p.holds(a, g.cons, active) {
			continue
		}
		total, ok := 0.0, true
		for slot, mi := range g.members {
			w, _, mok := p.bestMember(a, &blk.Members[mi], g.memberCons[slot], active)
			if !mok {
				ok = false
				break
			}
			total += w
		}
		if ok && (!found || total > bestW+epsilon) {
			bestW, bestC, found = total, c, true
		}
	}
	if !found || !commit {
		return bestW, found
	}

	if g.choice != model.NoVar {
		a.Set(g.choice, bestC)
	}
	for slot, mi := range g.members {
		mem := &blk.Members[mi]
		_, mask, _ := p.bestMember(a, mem, g.memberCons[slot], active)
		setMask(a, mem, mask)
	}
	return bestW, true
}

// bestMember tries every indicator combination of one member in ascending
// bit order and returns the weight and mask of the first best one.
func (p *plan) bestMember(a *model.Assignment, mem *model.Member, cons []int, active []bool) (float64, int, bool) {
	bestW, bestMask, found := 0.0, 0, false
	for mask := 0; mask < 1<<len(mem.Indicators); mask++ {
		setMask(a, mem, mask)
		if !p.holds(a, cons, active) {
			continue
		}
		w := 0.0
		if mask&1 == 1 {
			w = mem.Weight
		}
		if !found || w > bestW+epsilon {
			bestW, bestMask, found = w, mask, true
		}
	}
	return bestW, bestMask, found
}

func setMask(a *model.Assignment, mem *model.Member, mask int) {
	for i, v := range mem.Indicators {
		a.Set(v, (mask>>i)&1)
	}
}

// linkMatrix precomputes which (prev, next) state pairs satisfy the
// constraints tying block b-1 to block b. A nil matrix allows every pair.
func (p *plan) linkMatrix(a *model.Assignment, b int, prev, next []int, active []bool) []bool {
	hasActive := false
	for _, ci := range p.links[b] {
		if active[ci] {
			hasActive = true
			break
		}
	}
	if !hasActive {
		return nil
	}
	ok := make([]bool, len(prev)*len(next))
	for i, ps := range prev {
		p.setBounds(a, b-1, ps)
		for j, ns := range next {
			p.setBounds(a, b, ns)
			ok[i*len(next)+j] = p.holds(a, p.links[b], active)
		}
	}
	return ok
}

// closureGroups partitions the first block's feasible states by the bound
// values the closure constraints read, so each partition can be chained
// independently. Partitions keep enumeration order.
func (p *plan) closureGroups(first []int, active []bool) [][]int {
	start, end := p.blocks[0].block.Start, p.blocks[0].block.End
	readStart, readEnd := false, false
	for _, ci := range p.closure {
		if !active[ci] {
			continue
		}
		for _, v := range p.m.Constraints[ci].Vars() {
			readStart = readStart || v == start
			readEnd = readEnd || v == end
		}
	}

	all := make([]int, len(first))
	for i := range first {
		all[i] = i
	}
	if !readStart && !readEnd {
		return [][]int{all}
	}

	type key struct{ s, e int }
	index := make(map[key]int)
	var groups [][]int
	for i, st := range first {
		s, e := interval(st)
		k := key{}
		if readStart {
			k.s = s
		}
		if readEnd {
			k.e = e
		}
		gi, ok := index[k]
		if !ok {
			gi = len(groups)
			index[k] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], i)
	}
	return groups
}

// chain runs the dynamic program with the first block restricted to the
// state indexes in firsts, all of which agree on the closure's inputs.
func (p *plan) chain(a *model.Assignment, firsts []int, feas [][]int, scores [][]score, links [][]bool, active []bool) *solution {
	n := len(p.blocks)
	f := make([][]score, n)
	reach := make([][]bool, n)
	back := make([][]int, n)

	f[0] = make([]score, len(feas[0]))
	reach[0] = make([]bool, len(feas[0]))
	for _, i := range firsts {
		f[0][i] = scores[0][i]
		reach[0][i] = true
	}

	for b := 1; b < n; b++ {
		f[b] = make([]score, len(feas[b]))
		reach[b] = make([]bool, len(feas[b]))
		back[b] = make([]int, len(feas[b]))
		width := len(feas[b])
		for j := range feas[b] {
			for i := range feas[b-1] {
				if !reach[b-1][i] || (links[b] != nil && !links[b][i*width+j]) {
					continue
				}
				cand := f[b-1][i].add(scores[b][j])
				if !reach[b][j] || cand.better(f[b][j]) {
					f[b][j], reach[b][j], back[b][j] = cand, true, i
				}
			}
		}
	}

	last := -1
	for j := range feas[n-1] {
		if !reach[n-1][j] {
			continue
		}
		if n > 1 && len(p.closure) > 0 {
			p.setBounds(a, n-1, feas[n-1][j])
			p.setBounds(a, 0, feas[0][firsts[0]])
			if !p.holds(a, p.closure, active) {
				continue
			}
		}
		if last < 0 || f[n-1][j].better(f[n-1][last]) {
			last = j
		}
	}
	if last < 0 {
		return nil
	}

	sol := &solution{states: make([]int, n), total: f[n-1][last]}
	j := last
	for b := n - 1; b >= 0; b-- {
		sol.states[b] = feas[b][j]
		if b > 0 {
			j = back[b][j]
		}
	}
	return sol
}

// assign expands a solution into a full assignment.
func (p *plan) assign(sol *solution) *model.Assignment {
	a := model.NewAssignment(len(p.m.Vars))
	active := allActive(len(p.m.Constraints))
	for b := range p.blocks {
		p.setBounds(a, b, sol.states[b])
	}
	for b := range p.blocks {
		bp := &p.blocks[b]
		for gi := range bp.groups {
			p.bestGroup(a, bp.block, &bp.groups[gi], active, true)
		}
	}
	return a
}

// conflict shrinks the structural constraints to an irreducible infeasible
// subset by deletion filtering. It returns nil when the structure alone is
// feasible.
func (p *plan) conflict(ctx context.Context) ([]string, error) {
	active := allActive(len(p.m.Constraints))
	sol, err := p.search(ctx, active, false)
	if err != nil {
		return nil, err
	}
	if sol != nil {
		return nil, nil
	}

	cands := p.structural()
	for _, ci := range cands {
		active[ci] = false
		sol, err := p.search(ctx, active, false)
		if err != nil {
			return nil, err
		}
		if sol != nil {
			active[ci] = true
		}
	}

	var out []string
	for _, ci := range cands {
		if active[ci] {
			c := &p.m.Constraints[ci]
			out = append(out, fmt.Sprintf("%s: %s", c.Name, p.m.Describe(c)))
		}
	}
	return out, nil
}
