package model

import "github.com/codeGROOVE-dev/dayparts/pkg/daypart"

type choiceKey struct {
	category string
	edge     Role
	hour     int
}

// Ambiguity turns raw hour mentions into resolved-hour expressions.
//
// Under the resolved regime a raw hour is already final. Under the
// twelve-hour regime it becomes raw + 12·pm, where pm is a binary choice
// shared by every mention of the same raw hour in the same category (and
// edge, for start/end evidence), so the optimizer weighs all of that
// evidence together.
type Ambiguity struct {
	b       *builder
	choices map[choiceKey]VarID
	regime  daypart.Regime
}

func newAmbiguity(b *builder, regime daypart.Regime) *Ambiguity {
	return &Ambiguity{b: b, regime: regime, choices: make(map[choiceKey]VarID)}
}

// Resolve returns the resolved-hour expression for raw, and the choice
// variable behind it (NoVar when the hour is already resolved).
func (a *Ambiguity) Resolve(category string, edge Role, raw int) (Expr, VarID) {
	if a.regime != daypart.RegimeTwelveHour {
		return Constant(raw), NoVar
	}
	key := choiceKey{category: category, edge: edge, hour: raw}
	choice, ok := a.choices[key]
	if !ok {
		choice = a.b.addVar(Var{
			Category: category,
			Kind:     Binary,
			Role:     RoleChoice,
			Hour:     raw,
			Lower:    0,
			Upper:    1,
		})
		a.choices[key] = choice
	}
	return Constant(raw).Plus(choice, daypart.HalfDayHours), choice
}

// ResolvedHour returns the hour a raw mention resolves to for a given choice value.
func ResolvedHour(raw, choice int) int {
	return raw + daypart.HalfDayHours*choice
}
