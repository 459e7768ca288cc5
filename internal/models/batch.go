package models

// BatchFailure records one item of a bulk operation that was skipped
type BatchFailure struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// BatchResult summarizes a best-effort bulk operation. Item failures are
// collected, not fatal to the batch.
type BatchResult struct {
	Succeeded int            `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// AddFailure records a skipped item
func (r *BatchResult) AddFailure(item, reason string) {
	r.Failed = append(r.Failed, BatchFailure{Item: item, Reason: reason})
}
