package queue

import (
	"context"
	"errors"
)

// OutcomeKind classifies the result of one execution attempt.
type OutcomeKind int

const (
	// OutcomeSuccess means the remote effect was applied.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeRetryable means the attempt failed in a way that may
	// self-resolve: timeouts, rate limits, transient server errors.
	OutcomeRetryable

	// OutcomeTerminal means retrying cannot help: the target is gone, the
	// request is invalid, or no handler exists for the kind.
	OutcomeTerminal
)

// Outcome is the classified result of an execution attempt, the input to
// the retry policy's decision.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// Classify maps an Executor result to an Outcome. nil is success; errors
// wrapping TerminalError are terminal; context deadline expiry is a
// retryable timeout; everything else is retryable with the error text as
// the reason.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: OutcomeSuccess}
	case IsTerminal(err):
		return Outcome{Kind: OutcomeTerminal, Reason: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return Outcome{Kind: OutcomeRetryable, Reason: "timeout: " + err.Error()}
	default:
		return Outcome{Kind: OutcomeRetryable, Reason: err.Error()}
	}
}
