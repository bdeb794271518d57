package wifi

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/pingsantohq/netweather/internal/events"
	"github.com/pingsantohq/netweather/pkg/types"
)

type fakeStack struct {
	calls []string

	networks []types.Network
	scanErr  error
	failAt   string
	failErr  error
	auth     types.AuthMode
	address  types.AddressInfo
}

func (f *fakeStack) step(name string) error {
	f.calls = append(f.calls, name)
	if f.failAt == name {
		return f.failErr
	}
	return nil
}

func (f *fakeStack) Scan(context.Context) ([]types.Network, error) {
	f.calls = append(f.calls, "scan")
	return f.networks, f.scanErr
}

func (f *fakeStack) Configure(_ context.Context, ssid, password string, auth types.AuthMode) error {
	f.auth = auth
	return f.step("configure")
}

func (f *fakeStack) Start(context.Context) error   { return f.step("start") }
func (f *fakeStack) Connect(context.Context) error { return f.step("connect") }

func (f *fakeStack) WaitForAddress(context.Context) (types.AddressInfo, error) {
	if err := f.step("address"); err != nil {
		return types.AddressInfo{}, err
	}
	return f.address, nil
}

func stateRecorder(states *[]string) events.Recorder {
	return events.Func(func(ev types.Event) {
		if ev.Type == types.EventStateChange {
			*states = append(*states, ev.State)
		}
	})
}

func TestConnectHappyPath(t *testing.T) {
	stack := &fakeStack{
		networks: []types.Network{{SSID: "home", Auth: types.AuthWPA3Personal}},
		address:  types.AddressInfo{IP: "192.0.2.10", Gateway: "192.0.2.1"},
	}
	var states []string
	m := NewManager(stack, Dependencies{Events: stateRecorder(&states)})

	info, err := m.Connect(context.Background(), types.Credentials{SSID: "home", Password: "pw"})
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if info.Gateway != "192.0.2.1" {
		t.Fatalf("unexpected address info %+v", info)
	}
	if stack.auth != types.AuthWPA3Personal {
		t.Fatalf("expected scanned auth mode, got %q", stack.auth)
	}
	wantCalls := []string{"scan", "configure", "start", "connect", "address"}
	if !reflect.DeepEqual(stack.calls, wantCalls) {
		t.Fatalf("calls = %v want %v", stack.calls, wantCalls)
	}
	wantStates := []string{"Idle", "Scanning", "Configuring", "Connecting", "WaitingForAddress", "Connected"}
	if !reflect.DeepEqual(states, wantStates) {
		t.Fatalf("states = %v want %v", states, wantStates)
	}
	if m.State() != StateConnected {
		t.Fatalf("expected Connected, got %s", m.State())
	}
}

func TestConnectScanFailureDegrades(t *testing.T) {
	for _, tc := range []struct {
		password string
		want     types.AuthMode
	}{
		{"", types.AuthNone},
		{"secret", types.AuthWPA2Personal},
	} {
		stack := &fakeStack{scanErr: errors.New("radio busy")}
		m := NewManager(stack, Dependencies{})
		if _, err := m.Connect(context.Background(), types.Credentials{SSID: "home", Password: tc.password}); err != nil {
			t.Fatalf("scan failure must not be fatal: %v", err)
		}
		if stack.auth != tc.want {
			t.Fatalf("password %q: auth = %q want %q", tc.password, stack.auth, tc.want)
		}
	}
}

func TestConnectFailuresAreConnectionErrors(t *testing.T) {
	for _, step := range []string{"configure", "start", "connect", "address"} {
		t.Run(step, func(t *testing.T) {
			boom := errors.New(step + " broke")
			stack := &fakeStack{failAt: step, failErr: boom}
			var states []string
			m := NewManager(stack, Dependencies{Events: stateRecorder(&states)})

			_, err := m.Connect(context.Background(), types.Credentials{SSID: "home"})
			if !errors.Is(err, ErrConnection) || !errors.Is(err, boom) {
				t.Fatalf("expected ErrConnection wrapping %v, got %v", boom, err)
			}
			if m.State() != StateFailed {
				t.Fatalf("expected Failed, got %s", m.State())
			}
			if states[len(states)-1] != "Failed" {
				t.Fatalf("expected final Failed event, got %v", states)
			}
			if stack.calls[len(stack.calls)-1] != step {
				t.Fatalf("expected no calls after %s, got %v", step, stack.calls)
			}
		})
	}
}

func TestConnectStopsWhenCancelledDuringScan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stack := &fakeStack{scanErr: context.Canceled}
	m := NewManager(stack, Dependencies{})
	_, err := m.Connect(ctx, types.Credentials{SSID: "home"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(stack.calls) != 1 {
		t.Fatalf("expected only the scan call, got %v", stack.calls)
	}
}

func TestStateEventsCarryStage(t *testing.T) {
	var stages []int
	rec := events.Func(func(ev types.Event) {
		stages = append(stages, ev.Details[types.DetailStage].(int))
	})
	m := NewManager(&fakeStack{}, Dependencies{Events: rec})
	if _, err := m.Connect(context.Background(), types.Credentials{SSID: "x"}); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	want := []int{0, 1, 2, 3, 4, 5}
	if !reflect.DeepEqual(stages, want) {
		t.Fatalf("stages = %v want %v", stages, want)
	}
}

func TestSimStack(t *testing.T) {
	sim := NewSim()
	m := NewManager(sim, Dependencies{})
	info, err := m.Connect(context.Background(), types.Credentials{SSID: "lab", Password: "pw"})
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if info.IP != "127.0.0.1" || sim.Auth != types.AuthWPA2Personal {
		t.Fatalf("unexpected sim state %+v %q", info, sim.Auth)
	}

	sim.Down = true
	if _, err := m.Connect(context.Background(), types.Credentials{SSID: "lab"}); !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}
