package gadget

import "time"

// Status is a gadget's position in its lifecycle.
type Status string

// Lifecycle states. Destroyed and Decommissioned are terminal.
const (
	StatusAvailable      Status = "Available"
	StatusDeployed       Status = "Deployed"
	StatusDestroyed      Status = "Destroyed"
	StatusDecommissioned Status = "Decommissioned"
)

// AllStatuses returns every lifecycle state in declaration order.
func AllStatuses() []Status {
	return []Status{StatusAvailable, StatusDeployed, StatusDestroyed, StatusDecommissioned}
}

// IsTerminal reports whether no further status change is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusDestroyed || s == StatusDecommissioned
}

// Gadget is a tracked inventory asset. Gadgets are never deleted; they end
// their life Destroyed or Decommissioned.
type Gadget struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`

	// DecommissionedAt is set only when Status is Decommissioned.
	DecommissionedAt *time.Time `json:"decommissionedAt"`

	// DestroyedAt is set only when Status is Destroyed.
	DestroyedAt *time.Time `json:"destroyedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version increments on every write and guards against lost updates.
	Version int64 `json:"-"`
}

// Clone returns a copy that shares no pointers with g.
func (g *Gadget) Clone() *Gadget {
	c := *g
	if g.DecommissionedAt != nil {
		t := *g.DecommissionedAt
		c.DecommissionedAt = &t
	}
	if g.DestroyedAt != nil {
		t := *g.DestroyedAt
		c.DestroyedAt = &t
	}
	return &c
}

// View is a gadget as returned by read operations, annotated with a
// freshly drawn mission success probability. The gadget fields are
// flattened into the same JSON object.
type View struct {
	*Gadget
	MissionSuccessProbability int `json:"missionSuccessProbability"`
}

// Filter narrows List results. A zero Filter matches every gadget.
type Filter struct {
	Status Status
}

// Update is a partial modification. Nil fields are left unchanged.
type Update struct {
	Name   *string
	Status *Status
}

// SelfDestructResult is returned by a successful self-destruct.
type SelfDestructResult struct {
	Gadget           *Gadget
	ConfirmationCode string
}
