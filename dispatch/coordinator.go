// Package dispatch implements the coordinator that routes tool invocations
// to capability servers, applying per-policy retry with exponential backoff,
// health-gated short-circuiting and single-hop fallback. It is the only
// component permitted to mutate server health, which it does by reporting
// every attempt's outcome to the registry.
package dispatch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/logging"
	"github.com/hupe1980/toolmesh/registry"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Logger receives per-invocation dispatch logs. Defaults to NoOpLogger.
	Logger logging.Logger

	// DefaultTransport serves servers without an explicitly bound transport.
	DefaultTransport core.Transport

	// Sleep overrides the backoff sleep, used by tests to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Coordinator routes invocations to servers resolved through the registry.
// Callers awaiting one dispatch never block unrelated dispatches; the only
// intentional suspension points are the backoff delays between attempts.
type Coordinator struct {
	reg              *registry.Registry
	defaultTransport core.Transport
	logger           logging.Logger
	sleep            func(ctx context.Context, d time.Duration) error

	mu         sync.RWMutex
	transports map[string]core.Transport

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New constructs a Coordinator over the given registry.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Coordinator {
	opts := Options{Logger: logging.NoOpLogger{}, Sleep: sleepCtx}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &Coordinator{
		reg:              reg,
		defaultTransport: opts.DefaultTransport,
		logger:           opts.Logger,
		sleep:            opts.Sleep,
		transports:       make(map[string]core.Transport),
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithDefaultTransport sets the transport used for servers without a binding.
func WithDefaultTransport(t core.Transport) func(o *Options) {
	return func(o *Options) { o.DefaultTransport = t }
}

// WithSleep overrides the backoff sleep function.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) func(o *Options) {
	return func(o *Options) { o.Sleep = fn }
}

// Bind associates a transport with a server name. A nil transport removes
// the binding.
func (c *Coordinator) Bind(serverName string, t core.Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t == nil {
		delete(c.transports, serverName)
		return
	}
	c.transports[serverName] = t
}

func (c *Coordinator) transportFor(serverName string) core.Transport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.transports[serverName]; ok {
		return t
	}
	return c.defaultTransport
}

// Invoke resolves the server, gates on health and performs the call under
// the given policy. Registry errors (unknown server, unsupported capability)
// fail fast without an attempt. All other failures surface as a
// *DispatchFailure carrying the attempt count and last cause. Every attempt,
// success or failure, is reported to the registry.
func (c *Coordinator) Invoke(ctx context.Context, serverName, operation string, payload core.Payload, policy Policy) (any, error) {
	return c.invoke(ctx, serverName, operation, payload, policy.normalized(), true)
}

func (c *Coordinator) invoke(ctx context.Context, serverName, operation string, payload core.Payload, policy Policy, allowFallback bool) (any, error) {
	desc, err := c.reg.Resolve(serverName, operation)
	if err != nil {
		return nil, err
	}

	invocationID := uuid.NewString()
	logger := c.logger
	start := time.Now()

	if desc.Health == registry.Unreachable {
		logger.Warn("server unreachable, short-circuiting",
			"server", serverName, "operation", operation, "invocation_id", invocationID)
		if allowFallback && policy.FallbackServer != "" && policy.FallbackServer != serverName {
			return c.fallback(ctx, operation, payload, policy)
		}
		return nil, &DispatchFailure{Server: serverName, Operation: operation, Attempts: 0, Cause: ErrServerUnreachable}
	}

	transport := c.transportFor(serverName)
	if transport == nil {
		return nil, &DispatchFailure{Server: serverName, Operation: operation, Attempts: 0, Cause: ErrNoTransport}
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			// Cancellation takes effect between attempts, never mid-attempt.
			if err := c.sleep(ctx, c.jittered(policy, attempt)); err != nil {
				return nil, &DispatchFailure{Server: serverName, Operation: operation, Attempts: attempt, Cause: err}
			}
		}

		result, err := c.attempt(ctx, transport, serverName, operation, payload, policy)
		c.reg.ReportOutcome(serverName, err == nil)

		if err == nil {
			c.logOutcome(logger, serverName, operation, attempt+1, time.Since(start), nil)
			return result, nil
		}
		lastErr = err

		if !core.IsTransient(err) {
			c.logOutcome(logger, serverName, operation, attempt+1, time.Since(start), err)
			return nil, &DispatchFailure{Server: serverName, Operation: operation, Attempts: attempt + 1, Cause: err}
		}

		logger.Debug("transient dispatch failure, will retry",
			"server", serverName, "operation", operation,
			"attempt", attempt+1, "invocation_id", invocationID, "error", err.Error())
	}

	c.logOutcome(logger, serverName, operation, policy.MaxAttempts, time.Since(start), lastErr)

	if allowFallback && policy.FallbackServer != "" && policy.FallbackServer != serverName {
		return c.fallback(ctx, operation, payload, policy)
	}

	return nil, &DispatchFailure{Server: serverName, Operation: operation, Attempts: policy.MaxAttempts, Cause: lastErr}
}

// fallback performs the single-hop fallback invocation. The fallback's own
// fallback is never followed.
func (c *Coordinator) fallback(ctx context.Context, operation string, payload core.Payload, policy Policy) (any, error) {
	target := policy.FallbackServer
	policy.FallbackServer = ""
	c.logger.Info("dispatch falling back", "fallback_server", target, "operation", operation)
	return c.invoke(ctx, target, operation, payload, policy, false)
}

func (c *Coordinator) attempt(ctx context.Context, transport core.Transport, serverName, operation string, payload core.Payload, policy Policy) (any, error) {
	if policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
		defer cancel()
	}
	return transport.Call(ctx, serverName, operation, payload)
}

func (c *Coordinator) jittered(policy Policy, attempt int) time.Duration {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return policy.backoff(attempt, c.rng)
}

func (c *Coordinator) logOutcome(logger logging.Logger, server, operation string, attempts int, dur time.Duration, err error) {
	if ml, ok := logger.(*logging.MeshLogger); ok {
		ml.LogDispatch(server, operation, attempts, dur, err)
		return
	}
	if err != nil {
		logger.Error("dispatch failed", "server", server, "operation", operation, "attempts", attempts, "error", err.Error())
		return
	}
	logger.Debug("dispatch completed", "server", server, "operation", operation, "attempts", attempts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
