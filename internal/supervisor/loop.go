package supervisor

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pingsantohq/netweather/internal/color"
	"github.com/pingsantohq/netweather/internal/events"
	"github.com/pingsantohq/netweather/internal/window"
	"github.com/pingsantohq/netweather/pkg/types"
)

// Prober takes one latency sample. *probe.Sampler implements it.
type Prober interface {
	Probe(ctx context.Context, address string, timeout time.Duration) (types.Sample, error)
}

// Renderer pushes a window snapshot to the strip. *strip.Renderer implements it.
type Renderer interface {
	Render(snapshot []types.Sample) ([]color.RGB, error)
	LEDs() int
}

// Pacer blocks until the next cycle may start. *rate.Limiter implements it.
type Pacer interface {
	Wait(ctx context.Context) error
}

type LoopConfig struct {
	// Timeout bounds each probe.
	Timeout time.Duration
	// Cadence is the period of one probe/render cycle: sweep / LED count.
	Cadence time.Duration
}

type LoopDependencies struct {
	Logger *log.Logger
	Events events.Recorder
	Now    func() time.Time
	// NewPacer overrides the rate limiter used to hold the cadence.
	NewPacer func(cadence time.Duration) Pacer
}

// View is what the strip currently shows.
type View struct {
	Target  string
	Samples []types.Sample
	Frame   []color.RGB
	At      time.Time
}

// Loop samples the target and renders the rolling window on a fixed cadence.
type Loop struct {
	prober   Prober
	renderer Renderer
	cfg      LoopConfig
	logger   *log.Logger
	events   events.Recorder
	now      func() time.Time
	newPacer func(time.Duration) Pacer

	mu   sync.RWMutex
	view View
}

func NewLoop(prober Prober, renderer Renderer, cfg LoopConfig, deps LoopDependencies) *Loop {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Events == nil {
		deps.Events = events.NoopRecorder{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewPacer == nil {
		deps.NewPacer = func(cadence time.Duration) Pacer {
			return rate.NewLimiter(rate.Every(cadence), 1)
		}
	}
	return &Loop{
		prober:   prober,
		renderer: renderer,
		cfg:      cfg,
		logger:   deps.Logger,
		events:   deps.Events,
		now:      deps.Now,
		newPacer: deps.NewPacer,
	}
}

// Run probes target once per cadence, pushes each sample into a fresh window
// and renders the whole window after every insertion. It returns only with
// the first probe, render or context error.
func (l *Loop) Run(ctx context.Context, target string) error {
	win := window.New(l.renderer.LEDs())
	pacer := l.newPacer(l.cfg.Cadence)
	for {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		sample, err := l.prober.Probe(ctx, target, l.cfg.Timeout)
		if err != nil {
			return err
		}
		win.PushFront(sample)
		snapshot := win.Snapshot()
		frame, err := l.renderer.Render(snapshot)
		if err != nil {
			return err
		}

		at := l.now().UTC()
		l.logger.Printf("sample %s -> #%s (%d/%d)", sample, frame[0].Hex(), win.Len(), win.Cap())
		l.events.Record(types.Event{Type: types.EventSample, Timestamp: at, Sample: &sample})

		l.mu.Lock()
		l.view = View{Target: target, Samples: snapshot, Frame: frame, At: at}
		l.mu.Unlock()
	}
}

func (l *Loop) View() View {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return View{
		Target:  l.view.Target,
		Samples: append([]types.Sample(nil), l.view.Samples...),
		Frame:   append([]color.RGB(nil), l.view.Frame...),
		At:      l.view.At,
	}
}
