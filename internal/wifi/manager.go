package wifi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/pingsantohq/netweather/internal/events"
	"github.com/pingsantohq/netweather/pkg/types"
)

// ErrConnection marks a failed configure, start, connect or address wait.
var ErrConnection = errors.New("wifi connection failed")

// Stack is the wireless driver the manager steers. WaitForAddress must fail
// rather than block forever.
type Stack interface {
	Scan(ctx context.Context) ([]types.Network, error)
	Configure(ctx context.Context, ssid, password string, auth types.AuthMode) error
	Start(ctx context.Context) error
	Connect(ctx context.Context) error
	WaitForAddress(ctx context.Context) (types.AddressInfo, error)
}

type Dependencies struct {
	Logger *log.Logger
	Events events.Recorder
	Now    func() time.Time
}

// Manager runs the scan, configure, connect and address-wait sequence.
type Manager struct {
	stack  Stack
	logger *log.Logger
	events events.Recorder
	now    func() time.Time

	mu    sync.Mutex
	state State
}

func NewManager(stack Stack, deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.Events == nil {
		deps.Events = events.NoopRecorder{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Manager{
		stack:  stack,
		logger: deps.Logger,
		events: deps.Events,
		now:    deps.Now,
		state:  StateIdle,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect joins the network named by creds and blocks until an address is
// assigned. Scan failures are logged and never fatal.
func (m *Manager) Connect(ctx context.Context, creds types.Credentials) (types.AddressInfo, error) {
	m.transition(StateIdle, nil)

	m.transition(StateScanning, nil)
	m.logger.Printf("wifi: scanning for %q", creds.SSID)
	networks, err := m.stack.Scan(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return m.fail("scan", ctxErr)
		}
		m.logger.Printf("wifi: scan failed, inferring auth mode: %v", err)
		networks = nil
	} else {
		m.logger.Printf("wifi: scan found %d networks", len(networks))
	}
	auth := InferAuth(networks, creds.SSID, creds.Password)
	m.logger.Printf("wifi: using auth mode %s", auth)

	m.transition(StateConfiguring, nil)
	if err := m.stack.Configure(ctx, creds.SSID, creds.Password, auth); err != nil {
		return m.fail("configure", err)
	}
	if err := m.stack.Start(ctx); err != nil {
		return m.fail("start", err)
	}
	m.logger.Printf("wifi: started")

	m.transition(StateConnecting, nil)
	if err := m.stack.Connect(ctx); err != nil {
		return m.fail("connect", err)
	}
	m.logger.Printf("wifi: associated with %q", creds.SSID)

	m.transition(StateWaitingForAddress, nil)
	info, err := m.stack.WaitForAddress(ctx)
	if err != nil {
		return m.fail("wait for address", err)
	}

	m.transition(StateConnected, nil)
	m.logger.Printf("wifi: address %s gateway %s", info.IP, info.Gateway)
	return info, nil
}

func (m *Manager) fail(step string, err error) (types.AddressInfo, error) {
	m.transition(StateFailed, err)
	return types.AddressInfo{}, fmt.Errorf("%w: %s: %w", ErrConnection, step, err)
}

func (m *Manager) transition(next State, err error) {
	m.mu.Lock()
	m.state = next
	m.mu.Unlock()

	ev := types.Event{
		Type:      types.EventStateChange,
		Timestamp: m.now().UTC(),
		State:     string(next),
		Details:   map[string]any{types.DetailStage: next.Stage()},
	}
	if err != nil {
		ev.Error = err.Error()
	}
	m.events.Record(ev)
}
