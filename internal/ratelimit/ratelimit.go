// Package ratelimit provides fixed-window rate limiting middleware for the
// dashboard API. Limits are keyed by caller identity and endpoint class,
// independent of the tenant's plan.
package ratelimit

import (
	"context"
	"time"
)

// Class groups endpoints that share a window and ceiling.
type Class string

const (
	// ClassDefault covers general API traffic.
	ClassDefault Class = "default"
	// ClassAnalysis covers the generative-analysis endpoint, which burns
	// paid external compute per request.
	ClassAnalysis Class = "analysis"
	// ClassRepurpose covers content-repurposing endpoints.
	ClassRepurpose Class = "repurpose"
	// ClassHealth covers liveness and readiness probes.
	ClassHealth Class = "health"
	// ClassAuth covers authentication endpoints. Only failed attempts
	// count against the ceiling, so legitimate users are never throttled
	// while credential guessing still is.
	ClassAuth Class = "auth"
)

// Rule is the window and ceiling for one class.
type Rule struct {
	// Limit is the max requests allowed per window.
	Limit int
	// Window is the fixed-window width.
	Window time.Duration
	// CountFailuresOnly restricts counting to responses with status >= 400.
	CountFailuresOnly bool
	// Alert marks breaches of this class as abuse signals worth paging on.
	Alert bool
}

// Rules maps every class to its rule. Unknown classes fall back to
// ClassDefault.
type Rules map[Class]Rule

// DefaultRules returns the production ceilings.
func DefaultRules() Rules {
	return Rules{
		ClassDefault:   {Limit: 120, Window: time.Minute},
		ClassAnalysis:  {Limit: 10, Window: time.Minute, Alert: true},
		ClassRepurpose: {Limit: 30, Window: time.Minute},
		ClassHealth:    {Limit: 600, Window: time.Minute},
		ClassAuth:      {Limit: 10, Window: 15 * time.Minute, CountFailuresOnly: true, Alert: true},
	}
}

// For returns the rule for a class, falling back to the default class.
func (r Rules) For(c Class) Rule {
	if rule, ok := r[c]; ok {
		return rule
	}
	return r[ClassDefault]
}

// CounterStore is the shared counter backing the limiter. A single-process
// deployment can use MemoryStore; multi-instance deployments need a store
// every instance sees (the interface is the seam for that).
type CounterStore interface {
	// Incr adds one to the counter for key within the window containing
	// now and returns the new count. Counters for elapsed windows expire.
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
	// Peek returns the current count without incrementing.
	Peek(ctx context.Context, key string, window time.Duration) (int, error)
}

// AlertSink receives out-of-band signals for breaches on classes that may
// indicate abuse rather than enthusiasm.
type AlertSink interface {
	RateLimitBreached(ctx context.Context, class Class, identity string, count int)
}

// AlertFunc adapts a function to AlertSink.
type AlertFunc func(ctx context.Context, class Class, identity string, count int)

func (f AlertFunc) RateLimitBreached(ctx context.Context, class Class, identity string, count int) {
	f(ctx, class, identity, count)
}

// Limiter applies fixed-window rules per identity and class.
type Limiter struct {
	rules Rules
	store CounterStore
	alert AlertSink
	now   func() time.Time
}

func New(rules Rules, store CounterStore, alert AlertSink) *Limiter {
	return &Limiter{rules: rules, store: store, alert: alert, now: time.Now}
}

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed bool
	// RetryAfter is how long the caller should wait before retrying.
	// Zero when allowed.
	RetryAfter time.Duration
}

// Allow counts one request from identity against class and decides it.
// Counter store errors fail open so a degraded store cannot take the API
// down with it.
func (l *Limiter) Allow(ctx context.Context, identity string, class Class) Decision {
	rule := l.rules.For(class)
	count, err := l.store.Incr(ctx, l.key(identity, class), rule.Window)
	if err != nil {
		return Decision{Allowed: true}
	}
	return l.decide(ctx, identity, class, rule, count)
}

// Check inspects the counter without consuming a unit. Used by the
// failures-only path to reject callers already over the ceiling before
// the handler runs.
func (l *Limiter) Check(ctx context.Context, identity string, class Class) Decision {
	rule := l.rules.For(class)
	count, err := l.store.Peek(ctx, l.key(identity, class), rule.Window)
	if err != nil {
		return Decision{Allowed: true}
	}
	if count >= rule.Limit {
		return Decision{Allowed: false, RetryAfter: l.retryAfter(rule.Window)}
	}
	return Decision{Allowed: true}
}

// RecordFailure counts one failed attempt for a failures-only class.
func (l *Limiter) RecordFailure(ctx context.Context, identity string, class Class) {
	rule := l.rules.For(class)
	count, err := l.store.Incr(ctx, l.key(identity, class), rule.Window)
	if err != nil {
		return
	}
	if count > rule.Limit && rule.Alert && l.alert != nil {
		l.alert.RateLimitBreached(ctx, class, identity, count)
	}
}

func (l *Limiter) decide(ctx context.Context, identity string, class Class, rule Rule, count int) Decision {
	if count <= rule.Limit {
		return Decision{Allowed: true}
	}
	if rule.Alert && l.alert != nil {
		l.alert.RateLimitBreached(ctx, class, identity, count)
	}
	return Decision{Allowed: false, RetryAfter: l.retryAfter(rule.Window)}
}

// retryAfter is the time remaining in the current fixed window.
func (l *Limiter) retryAfter(window time.Duration) time.Duration {
	now := l.now()
	elapsed := time.Duration(now.UnixNano()) % window
	return window - elapsed
}

func (l *Limiter) key(identity string, class Class) string {
	return string(class) + ":" + identity
}
