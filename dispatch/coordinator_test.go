package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/internal/testutil"
	"github.com/hupe1980/toolmesh/registry"
)

// MockTransport is a testify mock of core.Transport.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Call(ctx context.Context, server, operation string, payload core.Payload) (any, error) {
	args := m.Called(ctx, server, operation, payload)
	return args.Get(0), args.Error(1)
}

var _ core.Transport = (*MockTransport)(nil)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestRegistry(t *testing.T, names ...string) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, name := range names {
		err := reg.Register(testutil.NewDescriptorBuilder(name).Capabilities("echo").Build())
		assert.NoError(t, err)
	}
	return reg
}

func TestCoordinator_Success(t *testing.T) {
	reg := newTestRegistry(t, "alpha")
	transport := new(MockTransport)
	transport.On("Call", mock.Anything, "alpha", "echo", mock.Anything).Return("ok", nil).Once()

	c := New(reg, WithSleep(noSleep))
	c.Bind("alpha", transport)

	result, err := c.Invoke(context.Background(), "alpha", "echo", core.Payload{"msg": "hi"}, DefaultPolicy())
	assert.NoError(t, err)
	assert.Equal(t, "ok", result)
	transport.AssertExpectations(t)
}

func TestCoordinator_UnknownServerFailsFast(t *testing.T) {
	c := New(newTestRegistry(t), WithSleep(noSleep))

	_, err := c.Invoke(context.Background(), "nope", "echo", nil, DefaultPolicy())
	var unknown *registry.UnknownServerError
	assert.ErrorAs(t, err, &unknown)
}

func TestCoordinator_CapabilityUnsupported(t *testing.T) {
	c := New(newTestRegistry(t, "alpha"), WithSleep(noSleep))

	_, err := c.Invoke(context.Background(), "alpha", "launch", nil, DefaultPolicy())
	var unsupported *registry.CapabilityUnsupportedError
	assert.ErrorAs(t, err, &unsupported)
}

func TestCoordinator_RetriesTransientThenSucceeds(t *testing.T) {
	reg := newTestRegistry(t, "alpha")
	transport := new(MockTransport)
	transient := &core.TransientError{Err: errors.New("connection reset")}
	transport.On("Call", mock.Anything, "alpha", "echo", mock.Anything).Return(nil, transient).Twice()
	transport.On("Call", mock.Anything, "alpha", "echo", mock.Anything).Return("ok", nil).Once()

	c := New(reg, WithSleep(noSleep))
	c.Bind("alpha", transport)

	result, err := c.Invoke(context.Background(), "alpha", "echo", nil, DefaultPolicy())
	assert.NoError(t, err)
	assert.Equal(t, "ok", result)
	transport.AssertNumberOfCalls(t, "Call", 3)
}

func TestCoordinator_ExhaustsRetries(t *testing.T) {
	reg := newTestRegistry(t, "alpha")
	transport := new(MockTransport)
	cause := &core.TransientError{Err: errors.New("timeout")}
	transport.On("Call", mock.Anything, "alpha", "echo", mock.Anything).Return(nil, cause)

	c := New(reg, WithSleep(noSleep))
	c.Bind("alpha", transport)

	_, err := c.Invoke(context.Background(), "alpha", "echo", nil, DefaultPolicy())
	var failure *DispatchFailure
	assert.ErrorAs(t, err, &failure)
	assert.Equal(t, 3, failure.Attempts)
	assert.Equal(t, "alpha", failure.Server)
	assert.Equal(t, "echo", failure.Operation)
	assert.ErrorIs(t, failure, cause)
	transport.AssertNumberOfCalls(t, "Call", 3)

	// Three failed attempts demote the server to degraded.
	h, err := reg.Health("alpha")
	assert.NoError(t, err)
	assert.Equal(t, registry.Degraded, h)
}

func TestCoordinator_ValidationErrorsAreNotRetried(t *testing.T) {
	reg := newTestRegistry(t, "alpha")
	transport := new(MockTransport)
	bad := &core.ValidationError{Field: "title", Message: "required field is missing"}
	transport.On("Call", mock.Anything, "alpha", "echo", mock.Anything).Return(nil, bad).Once()

	c := New(reg, WithSleep(noSleep))
	c.Bind("alpha", transport)

	_, err := c.Invoke(context.Background(), "alpha", "echo", nil, DefaultPolicy())
	var failure *DispatchFailure
	assert.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.Attempts)
	transport.AssertNumberOfCalls(t, "Call", 1)
}

func driveUnreachable(t *testing.T, reg *registry.Registry, name string) {
	t.Helper()
	for i := 0; i < 6; i++ {
		reg.ReportOutcome(name, false)
	}
	h, err := reg.Health(name)
	assert.NoError(t, err)
	assert.Equal(t, registry.Unreachable, h)
}

func TestCoordinator_UnreachableShortCircuits(t *testing.T) {
	reg := newTestRegistry(t, "alpha")
	driveUnreachable(t, reg, "alpha")

	transport := new(MockTransport)
	c := New(reg, WithSleep(noSleep))
	c.Bind("alpha", transport)

	_, err := c.Invoke(context.Background(), "alpha", "echo", nil, DefaultPolicy())
	var failure *DispatchFailure
	assert.ErrorAs(t, err, &failure)
	assert.Equal(t, 0, failure.Attempts)
	assert.ErrorIs(t, failure, ErrServerUnreachable)
	transport.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_UnreachableFallsBack(t *testing.T) {
	reg := newTestRegistry(t, "alpha", "beta")
	driveUnreachable(t, reg, "alpha")

	fallbackTransport := new(MockTransport)
	fallbackTransport.On("Call", mock.Anything, "beta", "echo", mock.Anything).Return("from-beta", nil).Once()

	c := New(reg, WithSleep(noSleep))
	c.Bind("beta", fallbackTransport)

	policy := DefaultPolicy()
	policy.FallbackServer = "beta"

	result, err := c.Invoke(context.Background(), "alpha", "echo", nil, policy)
	assert.NoError(t, err)
	assert.Equal(t, "from-beta", result)
	fallbackTransport.AssertExpectations(t)
}

func TestCoordinator_FallbackIsSingleHop(t *testing.T) {
	reg := newTestRegistry(t, "alpha", "beta")
	driveUnreachable(t, reg, "alpha")
	driveUnreachable(t, reg, "beta")

	c := New(reg, WithSleep(noSleep))

	// beta is also unreachable; its fallback must not be followed again.
	policy := DefaultPolicy()
	policy.FallbackServer = "beta"

	_, err := c.Invoke(context.Background(), "alpha", "echo", nil, policy)
	var failure *DispatchFailure
	assert.ErrorAs(t, err, &failure)
	assert.Equal(t, "beta", failure.Server)
	assert.ErrorIs(t, failure, ErrServerUnreachable)
}

func TestCoordinator_CancellationBetweenAttempts(t *testing.T) {
	reg := newTestRegistry(t, "alpha")
	transport := new(MockTransport)
	transport.On("Call", mock.Anything, "alpha", "echo", mock.Anything).
		Return(nil, &core.TransientError{Err: errors.New("flaky")})

	ctx, cancel := context.WithCancel(context.Background())
	c := New(reg, WithSleep(func(sleepCtx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	c.Bind("alpha", transport)

	_, err := c.Invoke(ctx, "alpha", "echo", nil, DefaultPolicy())
	var failure *DispatchFailure
	assert.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.Attempts)
	assert.ErrorIs(t, failure, context.Canceled)
	transport.AssertNumberOfCalls(t, "Call", 1)
}

func TestCoordinator_NoTransportBound(t *testing.T) {
	c := New(newTestRegistry(t, "alpha"), WithSleep(noSleep))

	_, err := c.Invoke(context.Background(), "alpha", "echo", nil, DefaultPolicy())
	var failure *DispatchFailure
	assert.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, failure, ErrNoTransport)
}

func TestPolicy_BackoffBounds(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, JitterFraction: 0}.normalized()

	assert.Equal(t, 100*time.Millisecond, p.backoff(1, nil))
	assert.Equal(t, 200*time.Millisecond, p.backoff(2, nil))
	assert.Equal(t, 400*time.Millisecond, p.backoff(3, nil))
	// Capped at MaxDelay regardless of attempt.
	assert.Equal(t, time.Second, p.backoff(10, nil))
	assert.Equal(t, time.Second, p.backoff(60, nil))
}
