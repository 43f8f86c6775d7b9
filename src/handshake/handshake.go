// Package handshake makes sure a context is alive before it is asked to do
// anything: probe, inject when the probe fails, then re-probe with backoff.
package handshake

import (
	"context"
	"fmt"
	"log"
	"time"

	"textlens/src/messages"
	"textlens/src/router"
)

// Policy bounds the retries.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultPolicy mirrors the old fixed schedule of three tries 300ms apart,
// growing from there.
var DefaultPolicy = Policy{
	Attempts:     3,
	InitialDelay: 300 * time.Millisecond,
	Multiplier:   1.5,
	MaxDelay:     2 * time.Second,
}

func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds, the attempts run out, or ctx is done.
// The last error is returned.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.delay(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("gave up after %d attempts: %w", attempt, ctx.Err())
			}
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		log.Printf("handshake: attempt %d/%d failed: %v", attempt+1, attempts, lastErr)
	}
	return lastErr
}

// Injector loads a context that did not answer its probe.
type Injector interface {
	Inject(ctx context.Context, target string) error
}

// Ping sends one liveness probe and expects a successful ack.
func Ping(ctx context.Context, req router.Requester, target string) error {
	reply, err := req.Request(ctx, target, messages.Ping{})
	if err != nil {
		return err
	}
	if ack, ok := reply.(messages.Ack); !ok || !ack.Success {
		return fmt.Errorf("unexpected ping reply from %s: %#v", target, reply)
	}
	return nil
}

// EnsureReady probes target once. If that fails it injects the context and
// re-probes under the policy. Injection happens at most once per call.
func EnsureReady(ctx context.Context, req router.Requester, target string, inj Injector, p Policy) error {
	if err := Ping(ctx, req, target); err == nil {
		return nil
	}

	log.Printf("handshake: %s did not answer, injecting", target)
	if err := inj.Inject(ctx, target); err != nil {
		return fmt.Errorf("inject %s: %w", target, err)
	}

	return Retry(ctx, p, func(ctx context.Context) error {
		return Ping(ctx, req, target)
	})
}

// Deliver makes target ready and then sends msg as a request, retrying the
// delivery itself under the same policy.
func Deliver(ctx context.Context, req router.Requester, target string, msg messages.Message, inj Injector, p Policy) (messages.Message, error) {
	if err := EnsureReady(ctx, req, target, inj, p); err != nil {
		return nil, err
	}
	var reply messages.Message
	err := Retry(ctx, p, func(ctx context.Context) error {
		r, err := req.Request(ctx, target, msg)
		if err != nil {
			return err
		}
		reply = r
		return nil
	})
	return reply, err
}
