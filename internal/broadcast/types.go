package broadcast

// Outcome classifies one per-recipient delivery attempt.
type Outcome int

const (
	OutcomeDelivered Outcome = iota

	// OutcomeUnreachable: the recipient blocked the bot, deleted their
	// account or the chat is gone. Terminal; never retried.
	OutcomeUnreachable

	// OutcomeFailed: any other send error. Logged, counted, not retried
	// within the job.
	OutcomeFailed
)

// Progress is a snapshot pushed to the progress sink during a job.
type Progress struct {
	Total       int
	Completed   int
	Delivered   int
	Unreachable int
	Failed      int
}

// Report is the final accounting of a job. Delivered + Unreachable + Failed
// always equals the recipient snapshot size for a job that ran to completion.
type Report struct {
	Delivered   int
	Unreachable int
	Failed      int
}

// FailedTotal is what operators see: unreachable and other failures combined.
func (r Report) FailedTotal() int { return r.Unreachable + r.Failed }
