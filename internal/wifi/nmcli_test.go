package wifi

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pingsantohq/netweather/pkg/types"
)

type scriptedRunner struct {
	calls   []string
	outputs map[string][]string
	errs    map[string]error
}

func (r *scriptedRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := name + " " + strings.Join(args, " ")
	r.calls = append(r.calls, line)
	for prefix, err := range r.errs {
		if strings.HasPrefix(line, prefix) {
			return nil, err
		}
	}
	for prefix, outs := range r.outputs {
		if strings.HasPrefix(line, prefix) && len(outs) > 0 {
			out := outs[0]
			if len(outs) > 1 {
				r.outputs[prefix] = outs[1:]
			}
			return []byte(out), nil
		}
	}
	return nil, nil
}

func newTestNMCLI(r *scriptedRunner) *NMCLI {
	n := NewNMCLI("wlan1", 2*time.Second)
	n.run = r.run
	n.sleep = func(context.Context, time.Duration) error { return nil }
	return n
}

func TestNMCLIScan(t *testing.T) {
	r := &scriptedRunner{outputs: map[string][]string{
		"nmcli -t -f SSID,BSSID,SECURITY,SIGNAL": {
			"home:AA\\:BB\\:CC\\:DD\\:EE\\:FF:WPA1 WPA2:80\n" +
				"cafe:11\\:22\\:33\\:44\\:55\\:66::40\n" +
				"corp:22\\:22\\:33\\:44\\:55\\:66:WPA2 802.1X:60\n" +
				"new:33\\:22\\:33\\:44\\:55\\:66:WPA3:20\n" +
				":44\\:22\\:33\\:44\\:55\\:66:WPA2:10\n" +
				"odd\\:name:55\\:22\\:33\\:44\\:55\\:66:WEP:5\n",
		},
	}}
	networks, err := newTestNMCLI(r).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	want := []types.Network{
		{SSID: "home", BSSID: "AA:BB:CC:DD:EE:FF", Auth: types.AuthWPA2Personal, Signal: 80},
		{SSID: "cafe", BSSID: "11:22:33:44:55:66", Auth: types.AuthNone, Signal: 40},
		{SSID: "corp", BSSID: "22:22:33:44:55:66", Auth: types.AuthWPA2Enterprise, Signal: 60},
		{SSID: "new", BSSID: "33:22:33:44:55:66", Auth: types.AuthWPA3Personal, Signal: 20},
		{SSID: "odd:name", BSSID: "55:22:33:44:55:66", Auth: types.AuthWEP, Signal: 5},
	}
	if len(networks) != len(want) {
		t.Fatalf("expected %d networks got %d: %+v", len(want), len(networks), networks)
	}
	for i := range want {
		if networks[i] != want[i] {
			t.Fatalf("network %d: got %+v want %+v", i, networks[i], want[i])
		}
	}
	if !strings.Contains(r.calls[0], "ifname wlan1") {
		t.Fatalf("scan did not target the interface: %s", r.calls[0])
	}
}

func TestNMCLIConfigure(t *testing.T) {
	r := &scriptedRunner{errs: map[string]error{"nmcli connection delete": errors.New("no such profile")}}
	n := newTestNMCLI(r)

	if err := n.Configure(context.Background(), "home", "hunter2-secret", types.AuthWPA2Personal); err != nil {
		t.Fatalf("Configure returned error: %v", err)
	}
	add := r.calls[len(r.calls)-1]
	if !strings.Contains(add, "ssid home") || !strings.Contains(add, "wifi-sec.key-mgmt wpa-psk wifi-sec.psk-flags 2") {
		t.Fatalf("unexpected add command: %s", add)
	}
	if strings.Contains(add, "hunter2-secret") {
		t.Fatalf("password must not be passed on the command line: %s", add)
	}

	if err := n.Configure(context.Background(), "cafe", "", types.AuthNone); err != nil {
		t.Fatalf("Configure returned error: %v", err)
	}
	if add := r.calls[len(r.calls)-1]; strings.Contains(add, "wifi-sec") {
		t.Fatalf("open network must not carry security settings: %s", add)
	}

	if err := n.Configure(context.Background(), "corp", "pw", types.AuthWPA2Enterprise); err == nil {
		t.Fatalf("expected enterprise auth to be rejected")
	}
}

func TestNMCLIWaitForAddress(t *testing.T) {
	r := &scriptedRunner{outputs: map[string][]string{
		"nmcli -t -f IP4.ADDRESS,IP4.GATEWAY,IP4.DNS": {
			"IP4.GATEWAY:--\n",
			"IP4.ADDRESS[1]:192.168.4.20/24\nIP4.GATEWAY:192.168.4.1\nIP4.DNS[1]:192.168.4.1\nIP4.DNS[2]:1.1.1.1\n",
		},
	}}
	info, err := newTestNMCLI(r).WaitForAddress(context.Background())
	if err != nil {
		t.Fatalf("WaitForAddress returned error: %v", err)
	}
	if info.IP != "192.168.4.20" || info.Gateway != "192.168.4.1" || info.Interface != "wlan1" {
		t.Fatalf("unexpected info %+v", info)
	}
	if len(info.DNS) != 2 {
		t.Fatalf("expected 2 dns servers got %v", info.DNS)
	}
	if len(r.calls) != 2 {
		t.Fatalf("expected two polls, got %d", len(r.calls))
	}
}

func TestNMCLIWaitForAddressTimesOut(t *testing.T) {
	r := &scriptedRunner{outputs: map[string][]string{"nmcli -t -f IP4": {"IP4.GATEWAY:--\n"}}}
	n := newTestNMCLI(r)
	current := time.Unix(0, 0)
	n.now = func() time.Time { return current }
	n.sleep = func(context.Context, time.Duration) error {
		current = current.Add(time.Second)
		return nil
	}
	if _, err := n.WaitForAddress(context.Background()); err == nil {
		t.Fatalf("expected timeout error")
	}
	if len(r.calls) != 3 {
		t.Fatalf("expected 3 polls within the 2s bound, got %d", len(r.calls))
	}
}

func TestNMCLIConnectAndStart(t *testing.T) {
	r := &scriptedRunner{}
	n := newTestNMCLI(r)
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := n.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if r.calls[1] != "nmcli --wait 2 connection up netweather" {
		t.Fatalf("unexpected connect command %q", r.calls[1])
	}

	r.errs = map[string]error{"nmcli --wait": errors.New("secrets were required")}
	if err := n.Connect(context.Background()); err == nil {
		t.Fatalf("expected association failure")
	}
}

func TestNMCLIConnectSuppliesSecretThroughFile(t *testing.T) {
	var (
		secretPath string
		contents   string
	)
	r := &scriptedRunner{}
	n := newTestNMCLI(r)
	n.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		for i, arg := range args {
			if arg == "passwd-file" && i+1 < len(args) {
				secretPath = args[i+1]
				data, err := os.ReadFile(secretPath)
				if err != nil {
					t.Fatalf("read passwd-file: %v", err)
				}
				info, err := os.Stat(secretPath)
				if err != nil {
					t.Fatalf("stat passwd-file: %v", err)
				}
				if perm := info.Mode().Perm(); perm != 0o600 {
					t.Fatalf("passwd-file mode %o, want 600", perm)
				}
				contents = string(data)
			}
		}
		return r.run(ctx, name, args...)
	}

	if err := n.Configure(context.Background(), "home", "hunter2-secret", types.AuthWPA2Personal); err != nil {
		t.Fatalf("Configure returned error: %v", err)
	}
	if err := n.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	if contents != "802-11-wireless-security.psk:hunter2-secret\n" {
		t.Fatalf("unexpected passwd-file contents %q", contents)
	}
	if _, err := os.Stat(secretPath); !os.IsNotExist(err) {
		t.Fatalf("passwd-file %s should be removed after activation", secretPath)
	}
	for _, call := range r.calls {
		if strings.Contains(call, "hunter2-secret") {
			t.Fatalf("password leaked into command line: %s", call)
		}
	}
}

func TestConnectionErrorsDoNotExposePassword(t *testing.T) {
	n := NewNMCLI("wlan1", time.Second)
	n.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if len(args) > 1 && args[0] == "connection" && args[1] == "add" {
			return ExecRunner(ctx, "false", args...)
		}
		return nil, nil
	}
	m := NewManager(n, Dependencies{})

	_, err := m.Connect(context.Background(), types.Credentials{SSID: "home", Password: "hunter2-secret"})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if strings.Contains(err.Error(), "hunter2-secret") {
		t.Fatalf("connection error exposes the password: %v", err)
	}
}

func TestExecRunnerRedactsSecrets(t *testing.T) {
	_, err := ExecRunner(context.Background(), "false", "connection", "modify", "netweather", "wifi-sec.psk", "hunter2-secret")
	if err == nil {
		t.Fatalf("expected error from false")
	}
	if strings.Contains(err.Error(), "hunter2-secret") || !strings.Contains(err.Error(), "wifi-sec.psk <redacted>") {
		t.Fatalf("secret not redacted: %v", err)
	}
}

func TestWaitSecondsRoundsUp(t *testing.T) {
	cases := map[time.Duration]string{
		0:                       "1",
		300 * time.Millisecond:  "1",
		time.Second:             "1",
		1500 * time.Millisecond: "2",
		30 * time.Second:        "30",
	}
	for in, want := range cases {
		if got := waitSeconds(in); got != want {
			t.Fatalf("waitSeconds(%s) = %s, want %s", in, got, want)
		}
	}

	r := &scriptedRunner{}
	n := newTestNMCLI(r)
	n.AddressTimeout = 400 * time.Millisecond
	if err := n.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if r.calls[0] != "nmcli --wait 1 connection up netweather" {
		t.Fatalf("unexpected connect command %q", r.calls[0])
	}
}
