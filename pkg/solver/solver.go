// Package solver finds optimal assignments for interval resolution models.
package solver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/model"
)

// Solver turns a model into an assignment of every variable, or reports
// daypart.ErrInfeasible or daypart.ErrSolverTimeout.
type Solver interface {
	Solve(ctx context.Context, m *model.Model) (*model.Assignment, error)
}

// InfeasibleError is returned when no assignment satisfies the model.
// Conflict lists an irreducible subset of constraints that cannot hold
// together, when one could be computed.
type InfeasibleError struct {
	Conflict []string
}

func (e *InfeasibleError) Error() string {
	if len(e.Conflict) == 0 {
		return daypart.ErrInfeasible.Error()
	}
	return fmt.Sprintf("%s: conflicting constraints: %s", daypart.ErrInfeasible, strings.Join(e.Conflict, "; "))
}

func (e *InfeasibleError) Unwrap() error {
	return daypart.ErrInfeasible
}

// contextErr maps an expired deadline onto ErrSolverTimeout so it is never
// confused with infeasibility. Cancellation is passed through unchanged.
func contextErr(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", daypart.ErrSolverTimeout, err)
	}
	return err
}
