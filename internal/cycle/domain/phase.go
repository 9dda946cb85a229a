package domain

import "time"

// DerivePhase reports the operator-facing phase of c at now.
func DerivePhase(c Cycle, now time.Time) Phase {
	switch c.Status {
	case CycleStatusActive:
		if !now.Before(c.EndDate) {
			return PhaseReadyForShareOut
		}
		return PhaseActive
	case CycleStatusShareOutInProgress:
		return PhaseShareOut
	case CycleStatusCompleted:
		return PhaseCompleted
	default:
		return PhaseArchived
	}
}
