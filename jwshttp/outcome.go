package jwshttp

import "context"

// Outcome is the result of the verification step for one message.
type Outcome int

const (
	OutcomeNotAttempted Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "not_attempted"
	}
}

type outcomeKey struct{}

// OutcomeFromContext returns the outcome stored by VerifyMiddleware.
// Requests that never passed through the middleware report
// OutcomeNotAttempted.
func OutcomeFromContext(ctx context.Context) Outcome {
	if o, ok := ctx.Value(outcomeKey{}).(Outcome); ok {
		return o
	}

	return OutcomeNotAttempted
}

func withOutcome(ctx context.Context, o Outcome) context.Context {
	return context.WithValue(ctx, outcomeKey{}, o)
}
