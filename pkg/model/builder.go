package model

import (
	"fmt"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
)

type builder struct {
	m   *Model
	amb *Ambiguity
}

func newBuilder(cfg daypart.Config) *builder {
	b := &builder{m: &Model{Objective: cfg.Objective, Regime: cfg.Regime}}
	b.amb = newAmbiguity(b, cfg.Regime)
	return b
}

func (b *builder) addVar(v Var) VarID {
	v.ID = VarID(len(b.m.Vars))
	b.m.Vars = append(b.m.Vars, v)
	return v.ID
}

func (b *builder) binary(category string, role Role, hour int) VarID {
	return b.addVar(Var{Category: category, Kind: Binary, Role: role, Hour: hour, Lower: 0, Upper: 1})
}

func (b *builder) add(c Constraint) {
	if c.Name == "" {
		c.Name = fmt.Sprintf("c%d_%s", len(b.m.Constraints), c.Kind)
	}
	b.m.Constraints = append(b.m.Constraints, c)
}

// BuildCoverage builds the model that picks one interval per category and
// resolves AM/PM mentions so as to maximize the observation weight falling
// inside the intervals. dist must already be validated and normalized.
func BuildCoverage(cfg daypart.Config, dist distribution.Distribution) (*Model, error) {
	cats, err := cfg.Ordered()
	if err != nil {
		return nil, err
	}
	b := newBuilder(cfg)
	b.m.Objective = daypart.ObjectiveCoverage

	for _, cat := range cats {
		blk := b.block(cat, cfg.MaxWrapDuration)
		hist := dist[cat.Name]
		for _, raw := range hist.Hours() {
			w := hist[raw]
			if w <= 0 {
				continue
			}
			blk.Members = append(blk.Members, b.coverageMember(cat, blk, raw, w))
		}
		b.m.Blocks = append(b.m.Blocks, *blk)
	}
	b.ordering()
	return b.m, nil
}

// BuildBoundaries builds the model that picks one interval per category so
// as to maximize the start-weight of the chosen start hours plus the
// end-weight of the chosen end hours.
func BuildBoundaries(cfg daypart.Config, bounds distribution.Boundaries) (*Model, error) {
	cats, err := cfg.Ordered()
	if err != nil {
		return nil, err
	}
	b := newBuilder(cfg)
	b.m.Objective = daypart.ObjectiveBoundaries

	for _, cat := range cats {
		blk := b.block(cat, cfg.MaxWrapDuration)
		for _, edge := range []struct {
			hist  distribution.Histogram
			role  Role
			bound VarID
		}{
			{bounds.Start[cat.Name], RoleAtStart, blk.Start},
			{bounds.End[cat.Name], RoleAtEnd, blk.End},
		} {
			for _, raw := range edge.hist.Hours() {
				w := edge.hist[raw]
				if w <= 0 {
					continue
				}
				hour, choice := b.amb.Resolve(cat.Name, edge.role, raw)
				at := b.binary(cat.Name, edge.role, raw)
				b.add(Constraint{
					Name:      fmt.Sprintf("%s_%s_%d", cat.Name, edge.role, raw),
					Kind:      KindEdgeLink,
					Indicator: at,
					LHS:       VarExpr(edge.bound),
					Sense:     Equal,
					RHS:       hour,
				})
				blk.Members = append(blk.Members, Member{
					Hour:       hour,
					Indicators: []VarID{at},
					Weight:     w,
					RawHour:    raw,
					Choice:     choice,
					Edge:       edge.role,
				})
			}
		}
		b.m.Blocks = append(b.m.Blocks, *blk)
	}
	b.ordering()
	return b.m, nil
}

// block creates the interval bounds of one category and its duration constraints.
// maxWrap bounds the wrap category's length when positive.
func (b *builder) block(cat daypart.Category, maxWrap int) *Block {
	start := b.addVar(Var{Category: cat.Name, Kind: Integer, Role: RoleStart, Lower: daypart.FirstHour, Upper: daypart.LastHour})
	end := b.addVar(Var{Category: cat.Name, Kind: Integer, Role: RoleEnd, Lower: daypart.FirstHour, Upper: daypart.LastHour})
	blk := &Block{Category: cat.Name, Start: start, End: end, MinDuration: cat.MinDuration, Wraps: cat.WrapsMidnight}

	if !cat.WrapsMidnight {
		// start + min <= end
		b.add(Constraint{
			Name:      cat.Name + "_min_duration",
			Kind:      KindMinDuration,
			Indicator: NoVar,
			LHS:       VarExpr(start).Offset(cat.MinDuration),
			Sense:     LessEq,
			RHS:       VarExpr(end),
		})
		return blk
	}

	// end + 24 - start >= min
	b.add(Constraint{
		Name:      cat.Name + "_min_duration",
		Kind:      KindMinDuration,
		Indicator: NoVar,
		LHS:       VarExpr(end).Offset(daypart.HoursPerDay).Plus(start, -1),
		Sense:     GreaterEq,
		RHS:       Constant(cat.MinDuration),
	})
	// start >= end + 1: the interval really crosses midnight.
	b.add(Constraint{
		Name:      cat.Name + "_crosses_midnight",
		Kind:      KindMidnight,
		Indicator: NoVar,
		LHS:       VarExpr(start),
		Sense:     GreaterEq,
		RHS:       VarExpr(end).Offset(1),
	})
	if maxWrap > 0 {
		// end + 24 - start <= max
		b.add(Constraint{
			Name:      cat.Name + "_max_duration",
			Kind:      KindMaxDuration,
			Indicator: NoVar,
			LHS:       VarExpr(end).Offset(daypart.HoursPerDay).Plus(start, -1),
			Sense:     LessEq,
			RHS:       Constant(maxWrap),
		})
	}
	return blk
}

// coverageMember adds the counted/after_start/before_end triple for one raw hour.
func (b *builder) coverageMember(cat daypart.Category, blk *Block, raw int, w float64) Member {
	hour, choice := b.amb.Resolve(cat.Name, RoleCounted, raw)
	counted := b.binary(cat.Name, RoleCounted, raw)
	afterStart := b.binary(cat.Name, RoleAfterStart, raw)
	beforeEnd := b.binary(cat.Name, RoleBeforeEnd, raw)

	b.add(Constraint{
		Name:      fmt.Sprintf("%s_%d_after_start", cat.Name, raw),
		Kind:      KindLinkage,
		Indicator: afterStart,
		LHS:       VarExpr(blk.Start),
		Sense:     LessEq,
		RHS:       hour,
	})
	b.add(Constraint{
		Name:      fmt.Sprintf("%s_%d_before_end", cat.Name, raw),
		Kind:      KindLinkage,
		Indicator: beforeEnd,
		LHS:       hour,
		Sense:     LessEq,
		RHS:       VarExpr(blk.End),
	})

	// Inside a day interval both sides hold; inside the wrap interval the
	// hour sits on exactly one side of midnight.
	sides := 2
	if cat.WrapsMidnight {
		sides = 1
	}
	b.add(Constraint{
		Name:      fmt.Sprintf("%s_%d_counted", cat.Name, raw),
		Kind:      KindCountedAnd,
		Indicator: counted,
		LHS:       VarExpr(afterStart).Plus(beforeEnd, 1),
		Sense:     Equal,
		RHS:       Constant(sides),
	})

	return Member{
		Hour:       hour,
		Indicators: []VarID{counted, afterStart, beforeEnd},
		Weight:     w,
		RawHour:    raw,
		Choice:     choice,
		Edge:       RoleCounted,
	}
}

// ordering chains adjacent categories and closes the cycle.
func (b *builder) ordering() {
	blocks := b.m.Blocks
	for i := 0; i+1 < len(blocks); i++ {
		prev, next := blocks[i], blocks[i+1]
		b.add(Constraint{
			Name:      fmt.Sprintf("%s_ends_before_%s_starts", prev.Category, next.Category),
			Kind:      KindOrdering,
			Indicator: NoVar,
			LHS:       VarExpr(next.Start),
			Sense:     GreaterEq,
			RHS:       VarExpr(prev.End),
		})
	}

	if len(blocks) < 2 {
		return
	}
	first, last := blocks[0], blocks[len(blocks)-1]
	b.add(Constraint{
		Name:      fmt.Sprintf("%s_ends_before_%s_starts", last.Category, first.Category),
		Kind:      KindWrapClosure,
		Indicator: NoVar,
		LHS:       VarExpr(first.Start),
		Sense:     GreaterEq,
		RHS:       VarExpr(last.End),
	})
}
