package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pingsantohq/netweather/pkg/types"
)

// Store keeps in-memory gauges and counters for the gauge. It consumes the
// same events as the rest of the process, so it implements events.Recorder.
type Store struct {
	mu sync.Mutex

	samples       uint64
	noResponse    uint64
	lastRTT       time.Duration
	lastResponded bool
	lastSample    time.Time

	state           string
	runID           string
	connectAttempts uint64
	connectFailures uint64
	restarts        map[string]uint64

	ready               bool
	readyReason         string
	readyCategories     []ReadinessCategory
	readyTransitions    uint64
	notReadyTransitions uint64
}

// ReadinessCategory captures a categorized readiness reason with severity.
type ReadinessCategory struct {
	Name     string
	Severity string
}

func NewStore() *Store {
	return &Store{restarts: make(map[string]uint64)}
}

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	SamplesTotal        uint64
	NoResponseTotal     uint64
	LastRTT             time.Duration
	LastResponded       bool
	LastSampleAt        time.Time
	State               string
	RunID               string
	ConnectAttempts     uint64
	ConnectFailures     uint64
	Restarts            map[string]uint64
	Ready               bool
	ReadyReason         string
	ReadyCategories     []ReadinessCategory
	ReadyTransitions    uint64
	NotReadyTransitions uint64
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	restarts := make(map[string]uint64, len(s.restarts))
	for phase, n := range s.restarts {
		restarts[phase] = n
	}
	return Snapshot{
		SamplesTotal:        s.samples,
		NoResponseTotal:     s.noResponse,
		LastRTT:             s.lastRTT,
		LastResponded:       s.lastResponded,
		LastSampleAt:        s.lastSample,
		State:               s.state,
		RunID:               s.runID,
		ConnectAttempts:     s.connectAttempts,
		ConnectFailures:     s.connectFailures,
		Restarts:            restarts,
		Ready:               s.ready,
		ReadyReason:         s.readyReason,
		ReadyCategories:     append([]ReadinessCategory(nil), s.readyCategories...),
		ReadyTransitions:    s.readyTransitions,
		NotReadyTransitions: s.notReadyTransitions,
	}
}

// Record updates counters from a lifecycle event.
func (s *Store) Record(ev types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.RunID != "" {
		s.runID = ev.RunID
	}
	switch ev.Type {
	case types.EventSample:
		if ev.Sample == nil {
			return
		}
		s.samples++
		s.lastSample = ev.Timestamp
		s.lastResponded = ev.Sample.Responded
		if ev.Sample.Responded {
			s.lastRTT = ev.Sample.RTT
		} else {
			s.noResponse++
		}
	case types.EventStateChange:
		s.state = ev.State
		switch ev.State {
		case "Idle":
			s.connectAttempts++
		case "Failed":
			s.connectFailures++
		}
	case types.EventRestart:
		phase := ev.Phase
		if phase == "" {
			phase = "unknown"
		}
		s.restarts[phase]++
		s.state = "Restarting"
	}
}

// ObserveReadiness records the outcome of a readiness evaluation.
func (s *Store) ObserveReadiness(ready bool, reason string, categories []ReadinessCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ready {
		if !s.ready {
			s.readyTransitions++
		}
		s.ready = true
		s.readyReason = ""
		s.readyCategories = nil
		return
	}
	if s.ready {
		s.notReadyTransitions++
	}
	s.ready = false
	s.readyReason = reason
	s.readyCategories = dedupeCategories(categories)
}

func dedupeCategories(categories []ReadinessCategory) []ReadinessCategory {
	if len(categories) == 0 {
		return nil
	}
	seen := make(map[ReadinessCategory]struct{}, len(categories))
	result := make([]ReadinessCategory, 0, len(categories))
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		key := ReadinessCategory{Name: name, Severity: normalizeSeverity(c.Severity)}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, key)
	}
	return result
}

func normalizeSeverity(severity string) string {
	switch severity = strings.ToLower(strings.TrimSpace(severity)); severity {
	case "":
		return "unknown"
	case "warn", "warning":
		return "warning"
	case "crit", "critical":
		return "critical"
	default:
		return severity
	}
}

// WritePrometheus renders the current metrics using the Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) error {
	snap := s.Snapshot()
	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	state := snap.State
	if state == "" {
		state = "Idle"
	}
	lines := []string{
		"# HELP netweather_samples_total Probes completed, including those without a response.",
		"# TYPE netweather_samples_total counter",
		fmt.Sprintf("netweather_samples_total %d", snap.SamplesTotal),
		"# HELP netweather_no_response_total Probes that got no reply within the timeout.",
		"# TYPE netweather_no_response_total counter",
		fmt.Sprintf("netweather_no_response_total %d", snap.NoResponseTotal),
		"# HELP netweather_last_rtt_seconds Round-trip time of the most recent answered probe.",
		"# TYPE netweather_last_rtt_seconds gauge",
		fmt.Sprintf("netweather_last_rtt_seconds %g", snap.LastRTT.Seconds()),
		"# HELP netweather_last_sample_responded Whether the most recent probe was answered (1=yes).",
		"# TYPE netweather_last_sample_responded gauge",
		fmt.Sprintf("netweather_last_sample_responded %d", b2i(snap.LastResponded)),
		"# HELP netweather_connect_attempts_total Wireless connection attempts started.",
		"# TYPE netweather_connect_attempts_total counter",
		fmt.Sprintf("netweather_connect_attempts_total %d", snap.ConnectAttempts),
		"# HELP netweather_connect_failures_total Wireless connection attempts that failed.",
		"# TYPE netweather_connect_failures_total counter",
		fmt.Sprintf("netweather_connect_failures_total %d", snap.ConnectFailures),
		"# HELP netweather_connection_state_info Current connection state.",
		"# TYPE netweather_connection_state_info gauge",
		fmt.Sprintf("netweather_connection_state_info{state=%q} 1", state),
		"# HELP netweather_restarts_total Supervisor restarts by failing phase.",
		"# TYPE netweather_restarts_total counter",
	}
	phases := make([]string, 0, len(snap.Restarts))
	for phase := range snap.Restarts {
		phases = append(phases, phase)
	}
	sort.Strings(phases)
	if len(phases) == 0 {
		lines = append(lines, fmt.Sprintf("netweather_restarts_total{phase=%q} 0", "none"))
	}
	for _, phase := range phases {
		lines = append(lines, fmt.Sprintf("netweather_restarts_total{phase=%q} %d", phase, snap.Restarts[phase]))
	}

	reason := snap.ReadyReason
	if reason == "" {
		reason = "ready"
		if !snap.Ready {
			reason = "unknown"
		}
	}
	lines = append(lines,
		"# HELP netweather_ready Whether the gauge considers itself ready (1=ready).",
		"# TYPE netweather_ready gauge",
		fmt.Sprintf("netweather_ready %d", b2i(snap.Ready)),
		"# HELP netweather_ready_info Reason associated with the most recent readiness evaluation.",
		"# TYPE netweather_ready_info gauge",
		fmt.Sprintf("netweather_ready_info{reason=%q} 1", reason),
		"# HELP netweather_ready_transitions_total Count of readiness state transitions by resulting state.",
		"# TYPE netweather_ready_transitions_total counter",
		fmt.Sprintf("netweather_ready_transitions_total{state=%q} %d", "ready", snap.ReadyTransitions),
		fmt.Sprintf("netweather_ready_transitions_total{state=%q} %d", "not_ready", snap.NotReadyTransitions),
		"# HELP netweather_ready_categories_info Categories associated with the most recent readiness evaluation.",
		"# TYPE netweather_ready_categories_info gauge",
	)
	if len(snap.ReadyCategories) == 0 {
		lines = append(lines, fmt.Sprintf("netweather_ready_categories_info{category=%q,severity=%q} 1", "none", "none"))
	}
	for _, cat := range snap.ReadyCategories {
		lines = append(lines, fmt.Sprintf("netweather_ready_categories_info{category=%q,severity=%q} 1", cat.Name, cat.Severity))
	}
	lines = append(lines, "")
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

// NewHTTPHandler returns an http.Handler that serves Prometheus formatted metrics.
func NewHTTPHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if r.Method == http.MethodHead {
			return
		}
		if err := store.WritePrometheus(w); err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		}
	})
}
