package types

import (
	"testing"
	"time"
)

func TestMeasuredClampsNegative(t *testing.T) {
	s := Measured(-5 * time.Millisecond)
	if !s.Responded {
		t.Fatalf("expected responded sample")
	}
	if s.RTT != 0 {
		t.Fatalf("expected rtt clamped to zero, got %s", s.RTT)
	}
}

func TestSampleString(t *testing.T) {
	if got := NoResponse.String(); got != "no response" {
		t.Fatalf("unexpected string %q", got)
	}
	if got := Measured(42 * time.Millisecond).String(); got != "42ms" {
		t.Fatalf("unexpected string %q", got)
	}
}
