// Package system provides the wall clock used to timestamp scan passes.
package system

import (
	"time"

	"github.com/JakeFAU/freelance-lead-finder/internal/lead"
)

var _ lead.Clock = Clock{}

// Clock implements lead.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
