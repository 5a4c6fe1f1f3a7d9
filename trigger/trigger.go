// Package trigger is the TriggerService capability: the host's scheduling
// primitive. Real hosts expose a scarce, coarse-grained (hourly) recurring
// trigger plus one-off delayed triggers; this package models both without
// assuming any finer cadence is available.
package trigger

import "time"

// Handle identifies an installed trigger so it can later be deleted.
type Handle string

// Kind distinguishes the dispatcher's own recurring heartbeat from a
// one-off kickoff trigger installed to start the first active chunk.
type Kind string

const (
	KindRecurring Kind = "recurring"
	KindOneOff    Kind = "one-off"
)

// Installed describes one trigger currently known to the service.
type Installed struct {
	Handle Handle
	Kind   Kind
}

// Service is the TriggerService capability the engine is built against.
type Service interface {
	List() ([]Installed, error)
	// CreateRecurring installs a new recurring trigger (the dispatcher's
	// heartbeat), firing handler roughly every everyHours. It does not
	// check for one that is already installed.
	CreateRecurring(everyHours int, handler func()) (Handle, error)
	// CreateOneOff installs a single-fire trigger after afterDelay.
	CreateOneOff(afterDelay time.Duration, handler func()) (Handle, error)
	Delete(h Handle) error
}
