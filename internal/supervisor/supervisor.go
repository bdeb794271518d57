// Package supervisor owns the top-level retry loop: connect, then sample and
// render until something fails, then wait a fixed delay and start over.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/pingsantohq/netweather/internal/events"
	"github.com/pingsantohq/netweather/internal/probe"
	"github.com/pingsantohq/netweather/internal/restart"
	"github.com/pingsantohq/netweather/internal/strip"
	"github.com/pingsantohq/netweather/pkg/types"
)

// TargetGateway selects the gateway of the acquired address as probe target.
const TargetGateway = "gateway"

const defaultRestartDelay = 10 * time.Second

const (
	PhaseConnect = "connect"
	PhaseSample  = "sample"
	PhaseRender  = "render"
	PhaseLoop    = "loop"
)

// Connector establishes the link. *wifi.Manager implements it.
type Connector interface {
	Connect(ctx context.Context, creds types.Credentials) (types.AddressInfo, error)
}

// Runner is the sample/render loop. It returns only with an error.
type Runner interface {
	Run(ctx context.Context, target string) error
}

type Config struct {
	Credentials  types.Credentials
	Target       string
	RestartDelay time.Duration
}

type Dependencies struct {
	Logger    *log.Logger
	Events    events.Recorder
	Restarter restart.Restarter
	Sleep     func(ctx context.Context, d time.Duration) error
	NewRunID  func() string
	Now       func() time.Time
}

type runTagger interface {
	SetRunID(id string)
}

type Supervisor struct {
	conn      Connector
	loop      Runner
	cfg       Config
	logger    *log.Logger
	events    events.Recorder
	restarter restart.Restarter
	sleep     func(context.Context, time.Duration) error
	newRunID  func() string
	now       func() time.Time
}

func New(conn Connector, loop Runner, cfg Config, deps Dependencies) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Events == nil {
		deps.Events = events.NoopRecorder{}
	}
	if deps.Restarter == nil {
		deps.Restarter = restart.Soft{}
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Supervisor{
		conn:      conn,
		loop:      loop,
		cfg:       cfg,
		logger:    deps.Logger,
		events:    deps.Events,
		restarter: deps.Restarter,
		sleep:     deps.Sleep,
		newRunID:  deps.NewRunID,
		now:       deps.Now,
	}
}

// Run never returns while ctx is live, unless the restarter hands the restart
// to an outside process manager. Every failure is followed by exactly one
// restart delay before the next connection attempt.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		runID := s.newRunID()
		if tagger, ok := s.events.(runTagger); ok {
			tagger.SetRunID(runID)
		}

		s.logger.Printf("run %s: connecting to %q", runID, s.cfg.Credentials.SSID)
		phase := PhaseConnect
		info, err := s.conn.Connect(ctx, s.cfg.Credentials)
		if err == nil {
			if target := s.target(info); target == "" {
				err = fmt.Errorf("no gateway reported for %s", info.IP)
			} else {
				s.logger.Printf("run %s: connected as %s, sampling %s", runID, info.IP, target)
				err = s.loop.Run(ctx, target)
				if err == nil {
					err = errors.New("sample loop exited")
				}
				phase = loopPhase(err)
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err := s.backOff(ctx, runID, phase, err); err != nil {
			return err
		}
	}
}

func (s *Supervisor) backOff(ctx context.Context, runID, phase string, cause error) error {
	s.logger.Printf("run %s: %s failed: %v", runID, phase, cause)
	s.logger.Printf("run %s: restarting in %s", runID, s.cfg.RestartDelay)
	s.events.Record(types.Event{
		Type:      types.EventRestart,
		Timestamp: s.now().UTC(),
		RunID:     runID,
		Phase:     phase,
		Error:     cause.Error(),
	})
	if err := s.sleep(ctx, s.cfg.RestartDelay); err != nil {
		return err
	}
	if err := s.restarter.Restart(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, restart.ErrRestartDeferred) {
			s.logger.Printf("run %s: restart handed off: %v", runID, err)
			return err
		}
		s.logger.Printf("run %s: restart failed, retrying in-process: %v", runID, err)
	}
	return nil
}

func (s *Supervisor) target(info types.AddressInfo) string {
	if s.cfg.Target == "" || s.cfg.Target == TargetGateway {
		return info.Gateway
	}
	return s.cfg.Target
}

func loopPhase(err error) string {
	switch {
	case errors.Is(err, probe.ErrSample):
		return PhaseSample
	case errors.Is(err, strip.ErrRender):
		return PhaseRender
	default:
		return PhaseLoop
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
