// Package model describes the constraint model behind the interval resolution
// engine: typed decision variables, linear and indicator constraints, and the
// per-category blocks a solver walks.
//
// Every variable carries its (category, hour, role) metadata from the moment
// it is created. Names exist for diagnostics only and are never parsed.
package model

import (
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
)

// VarID indexes Model.Vars.
type VarID int

// NoVar marks an absent variable reference.
const NoVar VarID = -1

// Kind is the domain class of a variable.
type Kind int

const (
	Integer Kind = iota
	Binary
)

// Role states what decision a variable encodes.
type Role int

const (
	RoleStart Role = iota
	RoleEnd
	RoleChoice
	RoleCounted
	RoleAfterStart
	RoleBeforeEnd
	RoleAtStart
	RoleAtEnd
)

var roleNames = [...]string{"start", "end", "pm", "counted", "after_start", "before_end", "at_start", "at_end"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Var is one decision variable.
type Var struct {
	Category string
	ID       VarID
	Kind     Kind
	Role     Role
	// Hour is the raw hour the variable refers to; zero for interval bounds.
	Hour  int
	Lower int
	Upper int
}

// Name renders the variable for logs and diagnostics.
func (v Var) Name() string {
	if v.Role == RoleStart || v.Role == RoleEnd {
		return fmt.Sprintf("%s.%s", v.Category, v.Role)
	}
	return fmt.Sprintf("%s.%s[%d]", v.Category, v.Role, v.Hour)
}

// Term is coefficient × variable.
type Term struct {
	Var  VarID
	Coef int
}

// Expr is an integer affine expression.
type Expr struct {
	Terms []Term
	Const int
}

// Constant returns the expression c.
func Constant(c int) Expr {
	return Expr{Const: c}
}

// VarExpr returns the expression 1·v.
func VarExpr(v VarID) Expr {
	return Expr{Terms: []Term{{Var: v, Coef: 1}}}
}

// Plus returns e + coef·v.
func (e Expr) Plus(v VarID, coef int) Expr {
	terms := make([]Term, len(e.Terms), len(e.Terms)+1)
	copy(terms, e.Terms)
	return Expr{Terms: append(terms, Term{Var: v, Coef: coef}), Const: e.Const}
}

// Offset returns e + c.
func (e Expr) Offset(c int) Expr {
	return Expr{Terms: e.Terms, Const: e.Const + c}
}

// Eval evaluates e under a; ok is false when a referenced variable is unset.
func (e Expr) Eval(a *Assignment) (value int, ok bool) {
	value = e.Const
	for _, t := range e.Terms {
		x, set := a.Value(t.Var)
		if !set {
			return 0, false
		}
		value += t.Coef * x
	}
	return value, true
}

// Sense is the comparison of a linear constraint.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	default:
		return "=="
	}
}

// ConstraintKind groups constraints by the rule that produced them.
type ConstraintKind int

const (
	KindLinkage ConstraintKind = iota
	KindCountedAnd
	KindMinDuration
	KindMaxDuration
	KindMidnight
	KindOrdering
	KindWrapClosure
	KindEdgeLink
)

var kindNames = [...]string{"linkage", "counted_and", "min_duration", "max_duration", "midnight", "ordering", "wrap_closure", "edge_link"}

func (k ConstraintKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Constraint is LHS sense RHS, optionally guarded by a binary indicator:
// when Indicator is set the relation must hold only if the indicator is 1.
type Constraint struct {
	Name      string
	LHS       Expr
	RHS       Expr
	Kind      ConstraintKind
	Sense     Sense
	Indicator VarID
}

// Satisfied reports whether the constraint holds under a. Unset variables
// make it report false.
func (c *Constraint) Satisfied(a *Assignment) bool {
	if c.Indicator != NoVar {
		on, ok := a.Value(c.Indicator)
		if !ok {
			return false
		}
		if on != 1 {
			return true
		}
	}
	l, ok := c.LHS.Eval(a)
	if !ok {
		return false
	}
	r, ok := c.RHS.Eval(a)
	if !ok {
		return false
	}
	switch c.Sense {
	case LessEq:
		return l <= r
	case GreaterEq:
		return l >= r
	default:
		return l == r
	}
}

// Vars returns every variable the constraint references, indicator first.
func (c *Constraint) Vars() []VarID {
	var out []VarID
	if c.Indicator != NoVar {
		out = append(out, c.Indicator)
	}
	for _, t := range c.LHS.Terms {
		out = append(out, t.Var)
	}
	for _, t := range c.RHS.Terms {
		out = append(out, t.Var)
	}
	return out
}

// Member is one candidate hour of a block together with the indicator
// variables that decide whether it is counted.
type Member struct {
	// Hour is the resolved-hour expression: a constant, or raw + 12·Choice.
	Hour Expr
	// Indicators lists the member's binaries. The first one carries the
	// objective weight (counted, at_start or at_end).
	Indicators []VarID
	Weight     float64
	RawHour    int
	Choice     VarID
	Edge       Role
}

// Block is the sub-model of one category.
type Block struct {
	Category    string
	Members     []Member
	Start       VarID
	End         VarID
	MinDuration int
	Wraps       bool
}

// Model is a complete constraint model ready for a solver.
type Model struct {
	Objective   daypart.Objective
	Regime      daypart.Regime
	Vars        []Var
	Constraints []Constraint
	Blocks      []Block
}

// Var returns the metadata of v.
func (m *Model) Var(v VarID) Var {
	return m.Vars[v]
}

// ObjectiveValue returns Σ weight·indicator under a.
func (m *Model) ObjectiveValue(a *Assignment) float64 {
	total := 0.0
	for _, b := range m.Blocks {
		for _, mem := range b.Members {
			if v, ok := a.Value(mem.Indicators[0]); ok && v == 1 {
				total += mem.Weight
			}
		}
	}
	return total
}

// Check verifies that a assigns every variable within its bounds and
// satisfies every constraint.
func (m *Model) Check(a *Assignment) error {
	for _, v := range m.Vars {
		x, ok := a.Value(v.ID)
		if !ok {
			return fmt.Errorf("variable %s unassigned", v.Name())
		}
		if x < v.Lower || x > v.Upper {
			return fmt.Errorf("variable %s = %d outside [%d, %d]", v.Name(), x, v.Lower, v.Upper)
		}
	}
	for i := range m.Constraints {
		if !m.Constraints[i].Satisfied(a) {
			return fmt.Errorf("constraint %s violated", m.Constraints[i].Name)
		}
	}
	return nil
}

// Describe renders a constraint with variable names, for diagnostics.
func (m *Model) Describe(c *Constraint) string {
	var sb strings.Builder
	if c.Indicator != NoVar {
		fmt.Fprintf(&sb, "%s = 1 => ", m.Vars[c.Indicator].Name())
	}
	sb.WriteString(m.exprString(c.LHS))
	fmt.Fprintf(&sb, " %s ", c.Sense)
	sb.WriteString(m.exprString(c.RHS))
	return sb.String()
}

func (m *Model) exprString(e Expr) string {
	var parts []string
	for _, t := range e.Terms {
		name := m.Vars[t.Var].Name()
		switch t.Coef {
		case 1:
			parts = append(parts, name)
		case -1:
			parts = append(parts, "-"+name)
		default:
			parts = append(parts, fmt.Sprintf("%d*%s", t.Coef, name))
		}
	}
	if e.Const != 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprint(e.Const))
	}
	return strings.Join(parts, " + ")
}

// Assignment holds a value per variable.
type Assignment struct {
	values []int
	set    []bool
}

// NewAssignment returns an empty assignment for n variables.
func NewAssignment(n int) *Assignment {
	return &Assignment{values: make([]int, n), set: make([]bool, n)}
}

// Set assigns x to v.
func (a *Assignment) Set(v VarID, x int) {
	a.values[v] = x
	a.set[v] = true
}

// Value returns the value of v and whether it is assigned.
func (a *Assignment) Value(v VarID) (int, bool) {
	if v < 0 || int(v) >= len(a.values) || !a.set[v] {
		return 0, false
	}
	return a.values[v], true
}

// Len returns the number of variables the assignment covers.
func (a *Assignment) Len() int {
	return len(a.values)
}
