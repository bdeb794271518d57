// Package color maps latency samples onto LED colours.
//
// The healthy range is a logarithmic ramp from green at one millisecond to
// yellow at the threshold: red = log10(ms) * 255 / log10(threshold_ms). A
// logarithmic scale keeps the difference between 2ms and 20ms as visible as
// the difference between 20ms and 200ms.
package color

import (
	"fmt"
	"math"
	"time"

	"github.com/pingsantohq/netweather/pkg/types"
)

// RGB is the output of one LED.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var (
	// Alarm is reserved for probes that got no response.
	Alarm = RGB{R: 255}
	// OutOfRange marks samples slower than the threshold. It is dimmer than Alarm.
	OutOfRange = RGB{R: 127}
	// Best is the colour of an effectively instant response.
	Best = RGB{G: 255}
	// Off is used for strip positions that have no sample yet.
	Off = RGB{}
)

// Epsilon is the latency at or below which a sample counts as instant.
const Epsilon = time.Millisecond

// Hex renders c as RRGGBB.
func (c RGB) Hex() string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

// ValidateThreshold reports whether threshold can drive the ramp.
func ValidateThreshold(threshold time.Duration) error {
	if threshold <= Epsilon {
		return fmt.Errorf("latency threshold %s must exceed %s", threshold, Epsilon)
	}
	return nil
}

// Map converts a sample into a colour. It is total: thresholds at or below
// Epsilon never reach the ramp, so the logarithm is always of a value above one.
func Map(s types.Sample, threshold time.Duration) RGB {
	if !s.Responded {
		return Alarm
	}
	if s.RTT <= Epsilon {
		return Best
	}
	if s.RTT > threshold {
		return OutOfRange
	}
	ms := millis(s.RTT)
	limit := millis(threshold)
	red := 255 * (math.Log10(ms) / math.Log10(limit))
	return RGB{R: clamp(red), G: 255}
}

// MapAll maps samples in order.
func MapAll(samples []types.Sample, threshold time.Duration) []RGB {
	out := make([]RGB, len(samples))
	for i, s := range samples {
		out[i] = Map(s, threshold)
	}
	return out
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func clamp(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
