package registry

// HealthState is the coarse reachability classification of a server, used to
// gate retries and fast-fail unreachable targets.
type HealthState int

const (
	// Healthy servers are dispatched to normally.
	Healthy HealthState = iota
	// Degraded servers are still dispatched to but one demotion away from
	// being short-circuited.
	Degraded
	// Unreachable servers are never attempted; dispatch goes straight to the
	// fallback policy.
	Unreachable
)

// String returns the string representation of the health state.
func (h HealthState) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// failureThreshold is the number of consecutive failures that triggers one
// demotion step.
const failureThreshold = 3

// Explicit transition tables keep the flap-prevention rule auditable: a
// success promotes exactly one step, so a server can never jump from
// unreachable straight back to healthy.
var (
	demote = map[HealthState]HealthState{
		Healthy:     Degraded,
		Degraded:    Unreachable,
		Unreachable: Unreachable,
	}
	promote = map[HealthState]HealthState{
		Unreachable: Degraded,
		Degraded:    Healthy,
		Healthy:     Healthy,
	}
)
