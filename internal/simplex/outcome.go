package simplex

import (
	"context"
	"errors"

	"github.com/cwbudde/simplexsearch/internal/objective"
)

// Outcome classifies how a search step ended.
type Outcome int

const (
	Continue Outcome = iota
	BudgetExhausted
	ProtocolFailure
	Cancelled
	Failed
)

// OutcomeOf maps an error returned by the evaluator (or anything built on
// it) to an Outcome. A nil error means Continue.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Continue
	case errors.Is(err, ErrBudgetExhausted):
		return BudgetExhausted
	case errors.Is(err, &objective.ProtocolError{}):
		return ProtocolFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Cancelled
	default:
		return Failed
	}
}

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case BudgetExhausted:
		return "budget-exhausted"
	case ProtocolFailure:
		return "protocol-failure"
	case Cancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Success reports whether the outcome ends a search successfully.
func (o Outcome) Success() bool {
	return o == Continue || o == BudgetExhausted
}
