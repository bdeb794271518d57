package health

import (
	"fmt"
	"strings"
	"time"

	"github.com/pingsantohq/netweather/internal/metrics"
)

const defaultStaleAfter = time.Minute

const (
	categoryLinkDown       = "LINK_DOWN"
	categorySamplesPending = "SAMPLES_PENDING"
	categorySamplesStale   = "SAMPLES_STALE"
)

const (
	severityInfo     = "info"
	severityWarning  = "warning"
	severityCritical = "critical"
)

// Checker evaluates readiness: the link is up and samples keep arriving.
type Checker struct {
	metrics    *metrics.Store
	staleAfter time.Duration
}

// NewChecker builds a checker that treats the sample stream as stale once the
// newest sample is older than staleAfter.
func NewChecker(store *metrics.Store, staleAfter time.Duration) *Checker {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Checker{metrics: store, staleAfter: staleAfter}
}

// Ready evaluates all readiness conditions and returns the overall status and reasons for failure.
func (c *Checker) Ready(now time.Time) (bool, []string) {
	if c.metrics == nil {
		return true, nil
	}
	snap := c.metrics.Snapshot()

	var (
		reasons    []string
		categories []metrics.ReadinessCategory
	)
	add := func(reason, name, severity string) {
		reasons = append(reasons, reason)
		categories = append(categories, metrics.ReadinessCategory{Name: name, Severity: severity})
	}

	if snap.State != "Connected" {
		state := snap.State
		if state == "" {
			state = "Idle"
		}
		add(fmt.Sprintf("link not connected (%s)", state), categoryLinkDown, severityCritical)
	}
	switch {
	case snap.LastSampleAt.IsZero():
		add("no samples yet", categorySamplesPending, severityInfo)
	case now.Sub(snap.LastSampleAt) > c.staleAfter:
		add(fmt.Sprintf("samples stale (%s)", now.Sub(snap.LastSampleAt).Round(time.Second)), categorySamplesStale, severityWarning)
	}

	if len(reasons) == 0 {
		c.metrics.ObserveReadiness(true, "", nil)
		return true, nil
	}
	c.metrics.ObserveReadiness(false, strings.Join(reasons, "; "), categories)
	return false, reasons
}
