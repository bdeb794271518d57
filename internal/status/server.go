package status

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pingsantohq/netweather/internal/health"
	"github.com/pingsantohq/netweather/internal/metrics"
	"github.com/pingsantohq/netweather/internal/supervisor"
	"github.com/pingsantohq/netweather/internal/wifi"
)

// Config controls HTTP server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ViewSource exposes what the strip shows. *supervisor.Loop implements it.
type ViewSource interface {
	View() supervisor.View
}

// StateSource exposes the link state. *wifi.Manager implements it.
type StateSource interface {
	State() wifi.State
}

type Dependencies struct {
	Logger  *log.Logger
	Metrics *metrics.Store
	Health  *health.Checker
	View    ViewSource
	State   StateSource
	Now     func() time.Time
}

// Server wraps http.Server for convenience.
type Server struct {
	*http.Server
	deps Dependencies
}

func New(cfg Config, deps Dependencies) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9320"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewStore()
	}
	if deps.Health == nil {
		deps.Health = health.NewChecker(deps.Metrics, 0)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.HandleFunc("/readyz", readyHandler(deps)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.NewHTTPHandler(deps.Metrics)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/window", windowHandler(deps)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/state", stateHandler(deps)).Methods(http.MethodGet)

	s := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return &Server{Server: s, deps: deps}
}

func readyHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ready, reasons := deps.Health.Ready(deps.Now())
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, deps.Logger, status, map[string]any{"ready": ready, "reasons": reasons})
	}
}

type pixel struct {
	Sample string `json:"sample"`
	RTTMS  *int64 `json:"rtt_ms,omitempty"`
	Color  string `json:"color"`
}

type windowResponse struct {
	Target string    `json:"target"`
	At     time.Time `json:"at"`
	Pixels []pixel   `json:"pixels"`
}

func windowHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if deps.View == nil {
			http.Error(w, "sampler not running", http.StatusServiceUnavailable)
			return
		}
		view := deps.View.View()
		resp := windowResponse{Target: view.Target, At: view.At, Pixels: make([]pixel, 0, len(view.Frame))}
		for i, c := range view.Frame {
			p := pixel{Color: "#" + c.Hex()}
			if i < len(view.Samples) {
				s := view.Samples[i]
				p.Sample = s.String()
				if s.Responded {
					ms := s.RTT.Milliseconds()
					p.RTTMS = &ms
				}
			}
			resp.Pixels = append(resp.Pixels, p)
		}
		writeJSON(w, deps.Logger, http.StatusOK, resp)
	}
}

func stateHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := deps.Metrics.Snapshot()
		state := snap.State
		if deps.State != nil {
			state = string(deps.State.State())
		}
		resp := map[string]any{
			"state":            state,
			"run_id":           snap.RunID,
			"connect_attempts": snap.ConnectAttempts,
			"connect_failures": snap.ConnectFailures,
			"restarts":         snap.Restarts,
			"samples_total":    snap.SamplesTotal,
		}
		if !snap.LastSampleAt.IsZero() {
			resp["last_sample_at"] = snap.LastSampleAt
		}
		writeJSON(w, deps.Logger, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, logger *log.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf("encode response failed: %v", err)
	}
}
