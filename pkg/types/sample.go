package types

import "time"

// Sample is the outcome of a single probe: a measured round-trip time, or no
// response within the probe timeout.
type Sample struct {
	RTT       time.Duration `json:"rtt"`
	Responded bool          `json:"responded"`
}

// NoResponse is the sample recorded when a probe times out.
var NoResponse = Sample{}

// Measured returns a responded sample. Negative durations are clamped to zero.
func Measured(rtt time.Duration) Sample {
	if rtt < 0 {
		rtt = 0
	}
	return Sample{RTT: rtt, Responded: true}
}

func (s Sample) String() string {
	if !s.Responded {
		return "no response"
	}
	return s.RTT.String()
}
