package probe

import (
	"context"
	"math/rand"
	"time"
)

// Sim fabricates latencies for running without a network, e.g. on a desk with
// the console strip driver.
type Sim struct {
	Base   time.Duration
	Jitter time.Duration
	// Loss is the probability in [0,1] that a reply never arrives.
	Loss float64

	rand func() float64
}

func (s Sim) Ping(ctx context.Context, address string, timeout time.Duration) (Summary, error) {
	rnd := s.rand
	if rnd == nil {
		rnd = rand.Float64
	}
	rtt := s.Base
	if s.Jitter > 0 {
		rtt += time.Duration(rnd() * float64(s.Jitter))
	}
	lost := s.Loss > 0 && rnd() < s.Loss

	wait := rtt
	if lost || wait > timeout {
		wait = timeout
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case <-timer.C:
	}

	if lost || rtt > timeout {
		return Summary{Transmitted: 1}, nil
	}
	return Summary{Transmitted: 1, Received: 1, Total: rtt}, nil
}
