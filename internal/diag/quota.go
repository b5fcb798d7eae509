package diag

// Quota caps the number of diagnostics of one kind.
// Exhausted is sticky: once set it is never cleared for the run.
type Quota struct {
	Count     uint
	Limit     uint
	Exhausted bool
}

// NewQuota returns a quota with the given limit. A zero limit is exhausted from the start.
func NewQuota(limit uint) Quota {
	return Quota{Limit: limit, Exhausted: limit == 0}
}

// Take consumes one slot. It returns false if the quota was already exhausted.
func (q *Quota) Take() bool {
	if q.Exhausted {
		return false
	}
	q.Count++
	if q.Count >= q.Limit {
		q.Exhausted = true
	}
	return true
}

// Remaining returns the number of slots left.
func (q Quota) Remaining() uint {
	if q.Count >= q.Limit {
		return 0
	}
	return q.Limit - q.Count
}

// QuotaState holds the two independent per-kind quotas of a run.
type QuotaState struct {
	Error   Quota
	Warning Quota
}

// NewQuotaState builds fresh quotas for a run.
func NewQuotaState(maxErrors, maxWarnings uint) QuotaState {
	return QuotaState{
		Error:   NewQuota(maxErrors),
		Warning: NewQuota(maxWarnings),
	}
}

// For returns the quota tracking kind k.
func (s *QuotaState) For(k Kind) *Quota {
	if k == KindWarning {
		return &s.Warning
	}
	return &s.Error
}
