package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pingsantohq/netweather/pkg/types"
)

// ErrSample marks a transport failure below "no response": the route or the
// interface is broken, so the current connection should be abandoned.
var ErrSample = errors.New("probe transport failure")

// Summary is what a transport reports for one ping exchange.
type Summary struct {
	Transmitted int
	Received    int
	Total       time.Duration
}

// Transport sends echo requests. Implementations must return once timeout has
// elapsed even if no reply arrived.
type Transport interface {
	Ping(ctx context.Context, address string, timeout time.Duration) (Summary, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, address string, timeout time.Duration) (Summary, error)

func (f TransportFunc) Ping(ctx context.Context, address string, timeout time.Duration) (Summary, error) {
	return f(ctx, address, timeout)
}

type Sampler struct {
	transport Transport
}

func NewSampler(t Transport) *Sampler {
	return &Sampler{transport: t}
}

// Probe issues exactly one probe. A lost reply yields types.NoResponse with a
// nil error; transport failures are wrapped with ErrSample.
func (s *Sampler) Probe(ctx context.Context, address string, timeout time.Duration) (types.Sample, error) {
	summary, err := s.transport.Ping(ctx, address, timeout)
	if err != nil {
		return types.NoResponse, fmt.Errorf("%w: ping %s: %w", ErrSample, address, err)
	}
	return sampleFromSummary(address, summary)
}

func sampleFromSummary(address string, summary Summary) (types.Sample, error) {
	if summary.Transmitted <= 0 {
		return types.NoResponse, fmt.Errorf("%w: ping %s: nothing transmitted", ErrSample, address)
	}
	if summary.Received != summary.Transmitted {
		return types.NoResponse, nil
	}
	return types.Measured(summary.Total / time.Duration(summary.Transmitted)), nil
}
