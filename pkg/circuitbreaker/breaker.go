// Package circuitbreaker shields the catalog store and transport from
// cascading failures. It wraps sony/gobreaker and reports requests, trips,
// and state changes through OpenTelemetry.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State is the breaker's observable state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// GaugeValue maps a state to a stable numeric encoding for metrics.
func (s State) GaugeValue() float64 {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Config tunes when the breaker trips and how it probes recovery.
type Config struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval resets the closed-state counters.
	Interval time.Duration
	// Timeout before an open breaker probes again.
	Timeout time.Duration
	// FailureThreshold trips on consecutive failures below MinRequests.
	FailureThreshold uint32
	// FailureRatio trips once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig suits catalog store writes: batch applies are infrequent,
// so a handful of consecutive failures already signals real trouble.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		FailureRatio:     0.6,
		MinRequests:      10,
	}
}

// CircuitBreaker wraps gobreaker with tracing, otel counters, and an
// optional state-change hook for external gauges.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *zap.Logger
	tracer trace.Tracer

	requests  metric.Int64Counter
	failures  metric.Int64Counter
	successes metric.Int64Counter
	rejected  metric.Int64Counter

	mu      sync.RWMutex
	state   State
	onState func(name string, s State)
}

// New builds a breaker. The otel counters come from the global meter, so a
// process without a meter provider gets no-op instruments.
func New(cfg Config, logger *zap.Logger) (*CircuitBreaker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &CircuitBreaker{
		name:   cfg.Name,
		logger: logger,
		tracer: otel.Tracer("circuit-breaker"),
		state:  StateClosed,
	}

	meter := otel.Meter("circuit-breaker")
	for _, inst := range []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&c.requests, "circuit_breaker_requests_total", "Requests attempted through the breaker"},
		{&c.failures, "circuit_breaker_failures_total", "Requests that failed"},
		{&c.successes, "circuit_breaker_successes_total", "Requests that succeeded"},
		{&c.rejected, "circuit_breaker_rejected_total", "Requests rejected while open"},
	} {
		counter, err := meter.Int64Counter(inst.name, metric.WithDescription(inst.desc))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", inst.name, err)
		}
		*inst.dst = counter
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.transition(mapState(from), mapState(to))
		},
	})

	return c, nil
}

// OnStateChange registers a hook invoked on every state transition, after
// the breaker's own bookkeeping. Used to feed Prometheus gauges.
func (c *CircuitBreaker) OnStateChange(fn func(name string, s State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Execute runs fn through the breaker. An open circuit returns
// gobreaker.ErrOpenState without invoking fn.
func (c *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	ctx, span := c.tracer.Start(ctx, "circuit_breaker_execute",
		trace.WithAttributes(
			attribute.String("breaker_name", c.name),
			attribute.String("state", string(c.State())),
		))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("name", c.name))
	c.requests.Add(ctx, 1, attrs)

	result, err := c.cb.Execute(fn)
	if err != nil {
		if IsOpenError(err) {
			c.rejected.Add(ctx, 1, attrs)
			span.SetAttributes(attribute.Bool("circuit_open", true))
		} else {
			c.failures.Add(ctx, 1, attrs)
		}
		span.RecordError(err)
		return nil, err
	}

	c.successes.Add(ctx, 1, attrs)
	return result, nil
}

// ExecuteWithFallback runs fn, switching to fallback only when the circuit
// itself rejected the call. Genuine failures from fn pass through.
func (c *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func() (interface{}, error), fallback func(error) (interface{}, error)) (interface{}, error) {
	result, err := c.Execute(ctx, fn)
	if err != nil && IsOpenError(err) {
		c.logger.Warn("circuit open, using fallback",
			zap.String("breaker", c.name),
			zap.Error(err))
		return fallback(err)
	}
	return result, err
}

// IsOpenError reports whether err is the breaker refusing the call rather
// than the wrapped operation failing.
func IsOpenError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// State returns the current breaker state.
func (c *CircuitBreaker) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Counts exposes gobreaker's rolling counters for health endpoints.
func (c *CircuitBreaker) Counts() gobreaker.Counts {
	return c.cb.Counts()
}

func (c *CircuitBreaker) transition(from, to State) {
	c.mu.Lock()
	c.state = to
	hook := c.onState
	c.mu.Unlock()

	c.logger.Warn("circuit breaker state changed",
		zap.String("breaker", c.name),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	if hook != nil {
		hook(c.name, to)
	}
}

func mapState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
