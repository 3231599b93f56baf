package pano

// State is the lifecycle state of a single panorama viewer.
type State uint8

const (
	// Idle means no native resources are held and no admission is pending.
	Idle State = iota

	// AwaitingAdmission means the viewer wants a pool slot, or holds a
	// reservation while its surface is being constructed.
	AwaitingAdmission

	// Active means a live surface is registered with the pool and rendering.
	Active

	// PendingTeardown means the viewer left the viewport and its deferred
	// eviction timer is armed. The surface is still alive.
	PendingTeardown

	// Destroyed is terminal and reached only by unmounting.
	Destroyed
)

// States lists every state in lifecycle order.
var States = [...]State{Idle, AwaitingAdmission, Active, PendingTeardown, Destroyed}

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingAdmission:
		return "AwaitingAdmission"
	case Active:
		return "Active"
	case PendingTeardown:
		return "PendingTeardown"
	case Destroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// Live reports whether a native surface exists in this state.
func (s State) Live() bool {
	return s == Active || s == PendingTeardown
}
