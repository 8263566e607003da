package registry

import (
	"sort"
	"sync"

	"github.com/hupe1980/toolmesh/logging"
)

// serverState is the mutable registry entry for one server. The per-server
// mutex serializes health updates so concurrent dispatches to the same server
// cannot interleave counter mutations.
type serverState struct {
	mu       sync.Mutex
	desc     ServerDescriptor
	health   HealthState
	failures int
}

// Options configures a Registry.
type Options struct {
	// Logger receives health transition events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry is the authoritative directory of capability servers. All methods
// are safe for concurrent use; reads are lock-free apart from the map RWMutex.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*serverState
	logger  logging.Logger
}

// New constructs an empty Registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Registry{servers: make(map[string]*serverState), logger: opts.Logger}
}

// WithLogger sets the registry logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Register adds a validated descriptor. Registration fails with
// DuplicateServerError if the name is already taken; newly registered
// servers start healthy.
func (r *Registry) Register(desc ServerDescriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.servers[desc.Name]; exists {
		return &DuplicateServerError{Name: desc.Name}
	}

	r.servers[desc.Name] = &serverState{desc: desc.clone(), health: Healthy}
	r.logger.Info("server registered", "server", desc.Name, "capabilities", len(desc.Capabilities))
	return nil
}

// Deregister removes a server. Removing an absent name is not an error; the
// registry is reconciled wholesale on reconfiguration.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.servers, name)
}

// Resolve returns a descriptor copy carrying current health, or fails with
// UnknownServerError / CapabilityUnsupportedError. An empty
// requiredCapability skips the capability check.
func (r *Registry) Resolve(name, requiredCapability string) (ServerDescriptor, error) {
	r.mu.RLock()
	state, ok := r.servers[name]
	r.mu.RUnlock()

	if !ok {
		return ServerDescriptor{}, &UnknownServerError{Name: name}
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if requiredCapability != "" && !state.desc.HasCapability(requiredCapability) {
		return ServerDescriptor{}, &CapabilityUnsupportedError{Server: name, Capability: requiredCapability}
	}

	out := state.desc.clone()
	out.Health = state.health
	out.ConsecutiveFailures = state.failures
	return out, nil
}

// ReportOutcome records the result of one dispatch attempt. Three
// consecutive failures demote the server one health step; any success resets
// the counter and promotes one step. Unknown names are ignored (the server
// may have been deregistered while a dispatch was in flight).
func (r *Registry) ReportOutcome(name string, success bool) {
	r.mu.RLock()
	state, ok := r.servers[name]
	r.mu.RUnlock()
	if !ok {
		return
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	prev := state.health
	if success {
		state.failures = 0
		state.health = promote[state.health]
	} else {
		state.failures++
		if state.failures >= failureThreshold {
			state.health = demote[state.health]
			state.failures = 0
		}
	}

	if state.health != prev {
		r.logger.Warn("server health transition",
			"server", name, "from", prev.String(), "to", state.health.String())
	}
}

// Health returns the current health of a server.
func (r *Registry) Health(name string) (HealthState, error) {
	r.mu.RLock()
	state, ok := r.servers[name]
	r.mu.RUnlock()
	if !ok {
		return Healthy, &UnknownServerError{Name: name}
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.health, nil
}

// Snapshot returns descriptor copies of every registered server, sorted by
// name, for diagnostics.
func (r *Registry) Snapshot() []ServerDescriptor {
	r.mu.RLock()
	states := make([]*serverState, 0, len(r.servers))
	for _, s := range r.servers {
		states = append(states, s)
	}
	r.mu.RUnlock()

	out := make([]ServerDescriptor, 0, len(states))
	for _, s := range states {
		s.mu.Lock()
		d := s.desc.clone()
		d.Health = s.health
		d.ConsecutiveFailures = s.failures
		s.mu.Unlock()
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
