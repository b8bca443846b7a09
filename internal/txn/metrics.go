package txn

import "time"

// Outcome describes how a commit was applied.
type Outcome int

const (
	// OutcomeCommitted means the stored version was unchanged and the
	// transaction's state was written as is.
	OutcomeCommitted Outcome = iota + 1
	// OutcomeMerged means another commit landed first and the transaction's
	// additions were merged on top of it.
	OutcomeMerged
	// OutcomeConflict means the merge was impossible.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeMerged:
		return "merged"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Metrics observes engine activity.
type Metrics interface {
	ObserveCommit(outcome Outcome, elapsed time.Duration)
	ObserveRetry()
	ObserveArchived(layers int)
}

// NoopMetrics discards observations.
type NoopMetrics struct{}

func (NoopMetrics) ObserveCommit(Outcome, time.Duration) {}
func (NoopMetrics) ObserveRetry()                        {}
func (NoopMetrics) ObserveArchived(int)                  {}
