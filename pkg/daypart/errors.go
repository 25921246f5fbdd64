package daypart

import "errors"

// Error taxonomy shared by every stage of a solve. Callers test with errors.Is.
var (
	// ErrInvalidConfiguration reports a malformed category list or wrap declaration.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInputDomain reports an observation outside the domain of the declared regime.
	ErrInputDomain = errors.New("input outside hour domain")

	// ErrInfeasible reports that no assignment satisfies the ordering and duration constraints.
	ErrInfeasible = errors.New("infeasible model")

	// ErrSolverTimeout reports that the time budget ran out before the solver finished.
	// It is never reported as ErrInfeasible.
	ErrSolverTimeout = errors.New("solver timeout")
)
