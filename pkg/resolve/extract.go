package resolve

import (
	"errors"
	"fmt"

	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
	"github.com/codeGROOVE-dev/dayparts/pkg/model"
)

// ErrIncompleteAssignment means a solver returned without assigning a
// variable the extractor needs. It indicates a solver bug, not bad input.
var ErrIncompleteAssignment = errors.New("incomplete assignment")

// Extract reads a solved assignment back into a Solution. Every observation
// is re-aggregated under the hour its choice variable resolved it to,
// whether or not it ended up inside the interval.
func Extract(m *model.Model, a *model.Assignment) (*Solution, error) {
	sol := &Solution{
		Objective: m.Objective,
		Intervals: make([]Interval, 0, len(m.Blocks)),
		Value:     m.ObjectiveValue(a),
	}

	for _, blk := range m.Blocks {
		start, err := value(m, a, blk.Start)
		if err != nil {
			return nil, err
		}
		end, err := value(m, a, blk.End)
		if err != nil {
			return nil, err
		}
		iv := Interval{
			Category:      blk.Category,
			Start:         start,
			End:           end,
			WrapsMidnight: blk.Wraps,
			Hours:         distribution.Histogram{},
			StartHours:    distribution.Histogram{},
			EndHours:      distribution.Histogram{},
		}

		for _, mem := range blk.Members {
			hour := mem.RawHour
			if mem.Choice != model.NoVar {
				choice, err := value(m, a, mem.Choice)
				if err != nil {
					return nil, err
				}
				hour = model.ResolvedHour(mem.RawHour, choice)
			}
			switch mem.Edge {
			case model.RoleAtStart:
				iv.StartHours[hour] += mem.Weight
			case model.RoleAtEnd:
				iv.EndHours[hour] += mem.Weight
			default:
				iv.Hours[hour] += mem.Weight
			}
		}
		sol.Intervals = append(sol.Intervals, iv)
	}
	return sol, nil
}

func value(m *model.Model, a *model.Assignment, v model.VarID) (int, error) {
	x, ok := a.Value(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no value", ErrIncompleteAssignment, m.Var(v).Name())
	}
	return x, nil
}
