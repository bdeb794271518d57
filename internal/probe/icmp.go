package probe

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ICMP sends a single echo request per Ping.
type ICMP struct {
	// Privileged selects raw sockets instead of unprivileged datagram ICMP.
	Privileged bool
	Size       int
}

func (p ICMP) Ping(ctx context.Context, address string, timeout time.Duration) (Summary, error) {
	pinger, err := probing.NewPinger(address)
	if err != nil {
		return Summary{}, fmt.Errorf("resolve %s: %w", address, err)
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.Interval = timeout
	pinger.SetPrivileged(p.Privileged)
	if p.Size > 0 {
		pinger.Size = p.Size
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		return Summary{}, err
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	return summaryFromStatistics(pinger.Statistics()), nil
}

func summaryFromStatistics(stats *probing.Statistics) Summary {
	if stats == nil {
		return Summary{}
	}
	var total time.Duration
	for _, rtt := range stats.Rtts {
		total += rtt
	}
	return Summary{
		Transmitted: stats.PacketsSent,
		Received:    stats.PacketsRecv,
		Total:       total,
	}
}
