package services

import "time"

// RefundPolicy computes how much of an escrowed amount a student gets back on
// cancellation. It does no I/O and reads no clock; callers pass the
// cancellation time.
//
// The policy is all-or-nothing: cancelling at least Cutoff before the
// scheduled start returns the full escrow, anything later forfeits it. The
// forfeited amount stays on the platform ledger; it is not paid to the
// teacher since the session never occurred.
type RefundPolicy struct {
	Cutoff time.Duration
}

const DefaultRefundCutoff = 24 * time.Hour

func NewRefundPolicy(cutoff time.Duration) RefundPolicy {
	if cutoff <= 0 {
		cutoff = DefaultRefundCutoff
	}
	return RefundPolicy{Cutoff: cutoff}
}

func (p RefundPolicy) RefundAmount(scheduledStart, cancelledAt time.Time, escrowed int) int {
	if escrowed <= 0 {
		return 0
	}
	if scheduledStart.Sub(cancelledAt) >= p.Cutoff {
		return escrowed
	}
	return 0
}
