package wifi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pingsantohq/netweather/pkg/types"
)

const (
	defaultProfile        = "netweather"
	defaultAddressTimeout = 30 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
)

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec, folding stderr into the error.
// Values of secret nmcli properties are redacted from the error text.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		line := strings.Join(redactArgs(args), " ")
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s %s: %w: %s", name, line, err, msg)
		}
		return out, fmt.Errorf("%s %s: %w", name, line, err)
	}
	return out, nil
}

var secretProperties = map[string]bool{
	"wifi-sec.psk":                      true,
	"wifi-sec.wep-key0":                 true,
	"802-11-wireless-security.psk":      true,
	"802-11-wireless-security.wep-key0": true,
}

func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if i > 0 && secretProperties[args[i-1]] {
			out[i] = "<redacted>"
			continue
		}
		out[i] = arg
	}
	return out
}

// NMCLI drives NetworkManager through its command line client. It keeps one
// connection profile that is rewritten on every Configure.
type NMCLI struct {
	Interface      string
	Profile        string
	AddressTimeout time.Duration
	PollInterval   time.Duration

	run   Runner
	sleep func(context.Context, time.Duration) error
	now   func() time.Time

	// secretKey and secret are handed to nmcli through a passwd-file on
	// activation; they never appear on a command line.
	secretKey string
	secret    string
}

func NewNMCLI(iface string, addressTimeout time.Duration) *NMCLI {
	if iface == "" {
		iface = "wlan0"
	}
	if addressTimeout <= 0 {
		addressTimeout = defaultAddressTimeout
	}
	return &NMCLI{
		Interface:      iface,
		Profile:        defaultProfile,
		AddressTimeout: addressTimeout,
		PollInterval:   defaultPollInterval,
		run:            ExecRunner,
		sleep:          sleepContext,
		now:            time.Now,
	}
}

func (n *NMCLI) Scan(ctx context.Context) ([]types.Network, error) {
	out, err := n.run(ctx, "nmcli", "-t", "-f", "SSID,BSSID,SECURITY,SIGNAL",
		"device", "wifi", "list", "ifname", n.Interface, "--rescan", "yes")
	if err != nil {
		return nil, err
	}
	return parseScan(out), nil
}

func (n *NMCLI) Configure(ctx context.Context, ssid, password string, auth types.AuthMode) error {
	sec, secretKey, err := securityArgs(auth)
	if err != nil {
		return err
	}
	// A missing profile is fine; anything else surfaces from the add below.
	_, _ = n.run(ctx, "nmcli", "connection", "delete", n.Profile)

	args := []string{"connection", "add", "type", "wifi",
		"ifname", n.Interface, "con-name", n.Profile, "ssid", ssid, "autoconnect", "no"}
	args = append(args, sec...)
	if _, err := n.run(ctx, "nmcli", args...); err != nil {
		return fmt.Errorf("add profile %s: %w", n.Profile, err)
	}
	n.secretKey, n.secret = secretKey, password
	if secretKey == "" {
		n.secret = ""
	}
	return nil
}

func (n *NMCLI) Start(ctx context.Context) error {
	if _, err := n.run(ctx, "nmcli", "radio", "wifi", "on"); err != nil {
		return fmt.Errorf("enable radio: %w", err)
	}
	return nil
}

func (n *NMCLI) Connect(ctx context.Context) error {
	args := []string{"--wait", waitSeconds(n.AddressTimeout), "connection", "up", n.Profile}
	if n.secretKey != "" {
		path, cleanup, err := writePasswdFile(n.secretKey, n.secret)
		if err != nil {
			return fmt.Errorf("activate %s: %w", n.Profile, err)
		}
		defer cleanup()
		args = append(args, "passwd-file", path)
	}
	if _, err := n.run(ctx, "nmcli", args...); err != nil {
		return fmt.Errorf("activate %s: %w", n.Profile, err)
	}
	return nil
}

// waitSeconds rounds d up to whole seconds, never below one: nmcli treats
// --wait 0 as "do not wait".
func waitSeconds(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// writePasswdFile stores one secret in nmcli's passwd-file format in a
// private temp file.
func writePasswdFile(key, secret string) (string, func(), error) {
	f, err := os.CreateTemp("", "netweather-secret-*")
	if err != nil {
		return "", nil, fmt.Errorf("create passwd-file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("chmod passwd-file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s:%s\n", key, secret); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write passwd-file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close passwd-file: %w", err)
	}
	return f.Name(), cleanup, nil
}

// WaitForAddress polls the interface until it has an IPv4 address or
// AddressTimeout passes.
func (n *NMCLI) WaitForAddress(ctx context.Context) (types.AddressInfo, error) {
	deadline := n.now().Add(n.AddressTimeout)
	for {
		out, err := n.run(ctx, "nmcli", "-t", "-f", "IP4.ADDRESS,IP4.GATEWAY,IP4.DNS",
			"device", "show", n.Interface)
		if err != nil {
			return types.AddressInfo{}, fmt.Errorf("read address of %s: %w", n.Interface, err)
		}
		if info := parseDeviceShow(out); info.IP != "" {
			info.Interface = n.Interface
			return info, nil
		}
		if !n.now().Before(deadline) {
			return types.AddressInfo{}, fmt.Errorf("no address on %s after %s", n.Interface, n.AddressTimeout)
		}
		if err := n.sleep(ctx, n.PollInterval); err != nil {
			return types.AddressInfo{}, err
		}
	}
}

// securityArgs returns the profile settings for auth and the property whose
// secret is supplied at activation. Secrets are marked not-saved so
// NetworkManager asks for them instead of storing them.
func securityArgs(auth types.AuthMode) ([]string, string, error) {
	switch auth {
	case types.AuthNone:
		return nil, "", nil
	case types.AuthWPAPersonal, types.AuthWPA2Personal:
		return []string{"wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk-flags", "2"}, "802-11-wireless-security.psk", nil
	case types.AuthWPA3Personal:
		return []string{"wifi-sec.key-mgmt", "sae", "wifi-sec.psk-flags", "2"}, "802-11-wireless-security.psk", nil
	case types.AuthWEP:
		return []string{"wifi-sec.key-mgmt", "none", "wifi-sec.wep-key-flags", "2"}, "802-11-wireless-security.wep-key0", nil
	default:
		return nil, "", fmt.Errorf("unsupported auth mode %q", auth)
	}
}

func parseScan(out []byte) []types.Network {
	var networks []types.Network
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := splitTerse(sc.Text())
		if len(fields) < 4 || fields[0] == "" {
			continue
		}
		signal, _ := strconv.Atoi(fields[3])
		networks = append(networks, types.Network{
			SSID:   fields[0],
			BSSID:  fields[1],
			Auth:   authFromSecurity(fields[2]),
			Signal: signal,
		})
	}
	return networks
}

// authFromSecurity maps the nmcli SECURITY column, e.g. "WPA1 WPA2" or "--".
func authFromSecurity(sec string) types.AuthMode {
	sec = strings.TrimSpace(sec)
	switch {
	case sec == "" || sec == "--":
		return types.AuthNone
	case strings.Contains(sec, "802.1X"):
		return types.AuthWPA2Enterprise
	case strings.Contains(sec, "WPA2"):
		return types.AuthWPA2Personal
	case strings.Contains(sec, "WPA3"):
		return types.AuthWPA3Personal
	case strings.Contains(sec, "WPA"):
		return types.AuthWPAPersonal
	case strings.Contains(sec, "WEP"):
		return types.AuthWEP
	default:
		return types.AuthUnknown
	}
}

func parseDeviceShow(out []byte) types.AddressInfo {
	var info types.AddressInfo
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" || value == "--" {
			continue
		}
		switch {
		case strings.HasPrefix(key, "IP4.ADDRESS") && info.IP == "":
			ip, _, _ := strings.Cut(value, "/")
			info.IP = ip
		case key == "IP4.GATEWAY":
			info.Gateway = value
		case strings.HasPrefix(key, "IP4.DNS"):
			info.DNS = append(info.DNS, value)
		}
	}
	return info
}

// splitTerse splits a line of nmcli terse output, honouring \: and \\ escapes.
func splitTerse(line string) []string {
	var (
		fields []string
		cur    strings.Builder
	)
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
