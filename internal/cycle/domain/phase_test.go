package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDerivePhase(t *testing.T) {
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	active := Cycle{Status: CycleStatusActive, EndDate: end}

	assert.Equal(t, PhaseActive, DerivePhase(active, end.Add(-time.Second)))
	assert.Equal(t, PhaseReadyForShareOut, DerivePhase(active, end))
	assert.Equal(t, PhaseReadyForShareOut, DerivePhase(active, end.AddDate(0, 1, 0)))
	assert.Equal(t, PhaseShareOut, DerivePhase(Cycle{Status: CycleStatusShareOutInProgress}, end))
	assert.Equal(t, PhaseCompleted, DerivePhase(Cycle{Status: CycleStatusCompleted}, end))
	assert.Equal(t, PhaseArchived, DerivePhase(Cycle{Status: CycleStatusArchived}, end))
	assert.Equal(t, PhaseArchived, DerivePhase(Cycle{Status: "unknown"}, end))
}

func TestNewTotalsSumsAvailable(t *testing.T) {
	totals := NewTotals(dec("1000"), dec("200.50"), dec("30"), dec("45.255"))
	assert.Equal(t, "45.26", totals.Interest.StringFixed(2))
	assert.Equal(t, "1275.76", totals.Available.StringFixed(2))
}
