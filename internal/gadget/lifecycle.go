package gadget

import (
	"fmt"
	"time"
)

// Lifecycle rules:
//
//	Available  <-> Deployed          via Update(status)
//	Available|Deployed -> Decommissioned  via Decommission, sets DecommissionedAt
//	Available|Deployed -> Destroyed       via SelfDestruct, sets DestroyedAt
//
// Terminal states accept no status change. Terminal targets are only
// reachable through their dedicated operations so the timestamp is always
// written alongside the status.

// CheckStatusChange validates an Update from one status to another.
func CheckStatusChange(from, to Status) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: gadget is %s", ErrInvalidTransition, from)
	}
	switch to {
	case StatusAvailable, StatusDeployed:
		return nil
	case StatusDecommissioned:
		return fmt.Errorf("%w: use decommission to retire a gadget", ErrInvalidTransition)
	case StatusDestroyed:
		return fmt.Errorf("%w: use self-destruct to destroy a gadget", ErrInvalidTransition)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
}

// decommission moves g to Decommissioned.
func decommission(g *Gadget, now time.Time) error {
	if g.Status.IsTerminal() {
		return fmt.Errorf("%w: gadget is already %s", ErrInvalidTransition, g.Status)
	}
	g.Status = StatusDecommissioned
	g.DecommissionedAt = &now
	g.DestroyedAt = nil
	return nil
}

// destroy moves g to Destroyed.
func destroy(g *Gadget, now time.Time) error {
	if g.Status.IsTerminal() {
		return fmt.Errorf("%w: gadget is already %s", ErrInvalidTransition, g.Status)
	}
	g.Status = StatusDestroyed
	g.DestroyedAt = &now
	g.DecommissionedAt = nil
	return nil
}
