package clock

import "time"

// Clock returns the current time. Services read time only through a Clock so
// cycle-phase and interest-window logic can be tested at fixed instants.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
