package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
)

func twoPartConfig(regime daypart.Regime) daypart.Config {
	cfg := daypart.New([]string{"morning", "night"}, "night")
	cfg.Regime = regime
	return cfg
}

func countKinds(m *Model) map[ConstraintKind]int {
	kinds := make(map[ConstraintKind]int)
	for _, c := range m.Constraints {
		kinds[c.Kind]++
	}
	return kinds
}

func TestBuildCoverageTwelveHour(t *testing.T) {
	dist := distribution.Distribution{
		"morning": {9: 2, 3: 1, 5: 0},
		"night":   {11: 4},
	}
	m, err := BuildCoverage(twoPartConfig(daypart.RegimeTwelveHour), dist)
	if err != nil {
		t.Fatalf("BuildCoverage() error = %v", err)
	}

	if len(m.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(m.Blocks))
	}
	if got := len(m.Blocks[0].Members); got != 2 {
		t.Errorf("morning has %d members, want 2 (zero weight skipped)", got)
	}
	// 2 bounds per block, 4 variables per twelve-hour member.
	if got, want := len(m.Vars), 2+2*4+2+1*4; got != want {
		t.Errorf("got %d vars, want %d", got, want)
	}

	want := map[ConstraintKind]int{
		KindLinkage:     6,
		KindCountedAnd:  3,
		KindMinDuration: 2,
		KindMidnight:    1,
		KindOrdering:    1,
		KindWrapClosure: 1,
	}
	got := countKinds(m)
	for k, n := range want {
		if got[k] != n {
			t.Errorf("%s constraints = %d, want %d", k, got[k], n)
		}
	}
	if got[KindMaxDuration] != 0 {
		t.Errorf("unexpected max duration constraint")
	}

	night := m.Blocks[1]
	if !night.Wraps || m.Blocks[0].Wraps {
		t.Errorf("wrap flags = %v/%v, want false/true", m.Blocks[0].Wraps, night.Wraps)
	}
	mem := night.Members[0]
	if mem.Choice == NoVar {
		t.Fatal("twelve-hour member has no choice variable")
	}
	v := m.Var(mem.Choice)
	if v.Role != RoleChoice || v.Category != "night" || v.Hour != 11 || v.Kind != Binary {
		t.Errorf("choice var metadata = %+v", v)
	}
	counted := m.Var(mem.Indicators[0])
	if counted.Role != RoleCounted || counted.Hour != 11 {
		t.Errorf("counted var metadata = %+v", counted)
	}
}

func TestBuildCoverageResolvedHasNoChoices(t *testing.T) {
	dist := distribution.Distribution{
		"morning": {6: 1, 9: 3},
		"night":   {22: 2, 1: 1},
	}
	m, err := BuildCoverage(twoPartConfig(daypart.RegimeResolved), dist)
	if err != nil {
		t.Fatalf("BuildCoverage() error = %v", err)
	}
	for _, v := range m.Vars {
		if v.Role == RoleChoice {
			t.Errorf("resolved regime created choice var %s", v.Name())
		}
	}
	for _, b := range m.Blocks {
		for _, mem := range b.Members {
			if mem.Choice != NoVar || len(mem.Hour.Terms) != 0 || mem.Hour.Const != mem.RawHour {
				t.Errorf("%s member %d hour = %+v, want constant", b.Category, mem.RawHour, mem.Hour)
			}
		}
	}
}

func TestBuildCoverageCountedSides(t *testing.T) {
	dist := distribution.Distribution{"morning": {9: 1}, "night": {11: 1}}
	m, err := BuildCoverage(twoPartConfig(daypart.RegimeResolved), dist)
	if err != nil {
		t.Fatal(err)
	}
	sides := map[string]int{}
	for _, c := range m.Constraints {
		if c.Kind == KindCountedAnd {
			sides[m.Var(c.Indicator).Category] = c.RHS.Const
		}
	}
	if sides["morning"] != 2 || sides["night"] != 1 {
		t.Errorf("counted sides = %v, want morning 2, night 1", sides)
	}
}

func TestBuildMaxWrapDuration(t *testing.T) {
	cfg := twoPartConfig(daypart.RegimeResolved)
	cfg.MaxWrapDuration = 8
	m, err := BuildCoverage(cfg, distribution.Distribution{})
	if err != nil {
		t.Fatal(err)
	}
	if got := countKinds(m)[KindMaxDuration]; got != 1 {
		t.Errorf("max duration constraints = %d, want 1", got)
	}
}

func TestBuildSingleCategoryHasNoOrdering(t *testing.T) {
	cfg := daypart.New([]string{"day"}, "")
	m, err := BuildCoverage(cfg, distribution.Distribution{"day": {9: 10, 3: 1}})
	if err != nil {
		t.Fatal(err)
	}
	kinds := countKinds(m)
	if kinds[KindOrdering] != 0 || kinds[KindWrapClosure] != 0 {
		t.Errorf("single category got ordering constraints: %v", kinds)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := daypart.New([]string{"morning", "evening"}, "night")
	if _, err := BuildCoverage(cfg, nil); !errors.Is(err, daypart.ErrInvalidConfiguration) {
		t.Errorf("BuildCoverage() error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestBuildBoundaries(t *testing.T) {
	bounds := distribution.Boundaries{
		Start: distribution.Distribution{"morning": {6: 3, 7: 1}, "night": {9: 2}},
		End:   distribution.Distribution{"morning": {11: 4}, "night": {1: 1}},
	}
	m, err := BuildBoundaries(twoPartConfig(daypart.RegimeTwelveHour), bounds)
	if err != nil {
		t.Fatalf("BuildBoundaries() error = %v", err)
	}
	if got := countKinds(m)[KindEdgeLink]; got != 5 {
		t.Errorf("edge link constraints = %d, want 5", got)
	}

	// Start and end mentions of the same raw hour resolve independently.
	choices := 0
	for _, v := range m.Vars {
		if v.Role == RoleChoice {
			choices++
		}
	}
	if choices != 5 {
		t.Errorf("choice vars = %d, want 5", choices)
	}
	for _, mem := range m.Blocks[0].Members {
		if mem.Edge != RoleAtStart && mem.Edge != RoleAtEnd {
			t.Errorf("member edge = %s", mem.Edge)
		}
	}
}

func TestAmbiguitySharesChoice(t *testing.T) {
	b := newBuilder(twoPartConfig(daypart.RegimeTwelveHour))
	e1, c1 := b.amb.Resolve("morning", RoleCounted, 9)
	e2, c2 := b.amb.Resolve("morning", RoleCounted, 9)
	_, c3 := b.amb.Resolve("night", RoleCounted, 9)
	_, c4 := b.amb.Resolve("morning", RoleAtEnd, 9)

	if c1 != c2 {
		t.Errorf("same (category, hour) got choices %d and %d", c1, c2)
	}
	if c1 == c3 || c1 == c4 {
		t.Errorf("distinct keys share a choice: %d %d %d", c1, c3, c4)
	}
	choices := 0
	for _, v := range b.m.Vars {
		if v.Role == RoleChoice {
			choices++
		}
	}
	if choices != 3 {
		t.Errorf("model has %d choice variables, want 3", choices)
	}

	a := NewAssignment(len(b.m.Vars))
	a.Set(c1, 1)
	if got, ok := e1.Eval(a); !ok || got != 21 {
		t.Errorf("pm expression = %d, %v; want 21", got, ok)
	}
	a.Set(c2, 0)
	if got, _ := e2.Eval(a); got != 9 {
		t.Errorf("am expression = %d, want 9", got)
	}
}

func TestResolvedHour(t *testing.T) {
	if ResolvedHour(3, 1) != 15 || ResolvedHour(12, 1) != 24 || ResolvedHour(7, 0) != 7 {
		t.Error("ResolvedHour mismatch")
	}
}

func TestCheck(t *testing.T) {
	dist := distribution.Distribution{"morning": {9: 1}, "night": {23: 1}}
	m, err := BuildCoverage(twoPartConfig(daypart.RegimeResolved), dist)
	if err != nil {
		t.Fatal(err)
	}

	a := NewAssignment(len(m.Vars))
	morning, night := m.Blocks[0], m.Blocks[1]
	a.Set(morning.Start, 6)
	a.Set(morning.End, 11)
	a.Set(night.Start, 21)
	a.Set(night.End, 2)
	for _, b := range m.Blocks {
		mem := b.Members[0]
		a.Set(mem.Indicators[0], 1)
		if b.Wraps {
			a.Set(mem.Indicators[1], 1)
			a.Set(mem.Indicators[2], 0)
		} else {
			a.Set(mem.Indicators[1], 1)
			a.Set(mem.Indicators[2], 1)
		}
	}
	if err := m.Check(a); err != nil {
		t.Fatalf("Check() on valid assignment = %v", err)
	}
	if got := m.ObjectiveValue(a); got != 2 {
		t.Errorf("ObjectiveValue() = %v, want 2", got)
	}

	// Night may not end after morning starts.
	a.Set(night.End, 7)
	err = m.Check(a)
	if err == nil || !strings.Contains(err.Error(), "night_ends_before_morning_starts") {
		t.Errorf("Check() = %v, want closure violation", err)
	}

	partial := NewAssignment(len(m.Vars))
	for v := range m.Vars {
		if x, ok := a.Value(VarID(v)); ok && VarID(v) != night.End {
			partial.Set(VarID(v), x)
		}
	}
	if err := m.Check(partial); err == nil || !strings.Contains(err.Error(), "unassigned") {
		t.Errorf("Check() = %v, want unassigned error", err)
	}
}

func TestDescribe(t *testing.T) {
	m, err := BuildCoverage(twoPartConfig(daypart.RegimeTwelveHour), distribution.Distribution{"morning": {9: 1}})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for i := range m.Constraints {
		got = append(got, m.Describe(&m.Constraints[i]))
	}
	joined := strings.Join(got, "\n")
	if !strings.Contains(joined, "morning.start + 1 <= morning.end") {
		t.Errorf("Describe() output missing min duration:\n%s", joined)
	}
	if !strings.Contains(joined, "morning.after_start[9] = 1 => morning.start <= 12*morning.pm[9] + 9") {
		t.Errorf("Describe() output missing linkage:\n%s", joined)
	}
	if !strings.Contains(joined, "night.start >= night.end + 1") {
		t.Errorf("Describe() output missing midnight crossing:\n%s", joined)
	}
}
