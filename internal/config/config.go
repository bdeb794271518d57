package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pingsantohq/netweather/internal/color"
	"github.com/pingsantohq/netweather/internal/restart"
	"github.com/pingsantohq/netweather/pkg/types"
)

const (
	envConfigPath     = "NETWEATHER_CONFIG"
	DefaultConfigPath = "/etc/netweather/netweather.yaml"
)

const (
	StackNMCLI = "nmcli"
	StackSim   = "sim"

	TransportICMP = "icmp"
	TransportSim  = "sim"

	DriverSPI     = "spi"
	DriverMQTT    = "mqtt"
	DriverConsole = "console"
)

type Config struct {
	WiFi       WiFiConfig       `yaml:"wifi"`
	Probe      ProbeConfig      `yaml:"probe"`
	Strip      StripConfig      `yaml:"strip"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Status     StatusConfig     `yaml:"status"`
}

type WiFiConfig struct {
	SSID           string        `yaml:"ssid"`
	Password       string        `yaml:"password"`
	Interface      string        `yaml:"interface"`
	Stack          string        `yaml:"stack"`
	AddressTimeout time.Duration `yaml:"address_timeout"`
}

func (w WiFiConfig) Credentials() types.Credentials {
	return types.Credentials{SSID: w.SSID, Password: w.Password}
}

type ProbeConfig struct {
	Host       string        `yaml:"host"`
	Timeout    time.Duration `yaml:"timeout"`
	Transport  string        `yaml:"transport"`
	Privileged bool          `yaml:"privileged"`
}

type StripConfig struct {
	LEDs        int           `yaml:"leds"`
	Sweep       time.Duration `yaml:"sweep"`
	Threshold   time.Duration `yaml:"threshold"`
	Driver      string        `yaml:"driver"`
	SPIPort     string        `yaml:"spi_port"`
	MQTT        MQTTConfig    `yaml:"mqtt"`
	StageLights *bool         `yaml:"stage_lights"`
}

// Cadence is the time between two samples: one full sweep per strip length.
func (s StripConfig) Cadence() time.Duration {
	if s.LEDs <= 0 {
		return s.Sweep
	}
	return s.Sweep / time.Duration(s.LEDs)
}

func (s StripConfig) StageLightsEnabled() bool {
	return s.StageLights == nil || *s.StageLights
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type SupervisorConfig struct {
	RestartDelay  time.Duration `yaml:"restart_delay"`
	RestartPolicy string        `yaml:"restart_policy"`
}

type StatusConfig struct {
	Addr *string `yaml:"addr"`
}

// ListenAddr returns the status listen address; empty means disabled.
func (s StatusConfig) ListenAddr() string {
	if s.Addr == nil {
		return "127.0.0.1:9320"
	}
	return *s.Addr
}

func Load(ctx context.Context, path string) (Config, error) {
	data, err := read(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data, path)
}

func LoadFromEnv(ctx context.Context) (Config, error) {
	return Load(ctx, PathFromEnv())
}

// PathFromEnv resolves the config path from NETWEATHER_CONFIG.
func PathFromEnv() string {
	if path := os.Getenv(envConfigPath); path != "" {
		return path
	}
	return DefaultConfigPath
}

// Parse decodes data and fills every unset field with its default.
func Parse(data []byte, path string) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func read(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	return data, nil
}

func (c *Config) applyDefaults() {
	if c.WiFi.Interface == "" {
		c.WiFi.Interface = "wlan0"
	}
	if c.WiFi.Stack == "" {
		c.WiFi.Stack = StackNMCLI
	}
	if c.WiFi.AddressTimeout <= 0 {
		c.WiFi.AddressTimeout = 30 * time.Second
	}

	if c.Strip.LEDs == 0 {
		c.Strip.LEDs = 16
	}
	if c.Strip.Sweep == 0 {
		c.Strip.Sweep = 60 * time.Second
	}
	if c.Strip.Threshold == 0 {
		c.Strip.Threshold = 200 * time.Millisecond
	}
	if c.Strip.Driver == "" {
		c.Strip.Driver = DriverSPI
	}
	if c.Strip.MQTT.Topic == "" {
		c.Strip.MQTT.Topic = "wled/netweather/api"
	}

	if c.Probe.Host == "" {
		c.Probe.Host = "8.8.8.8"
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = 5 * c.Strip.Threshold
	}
	if c.Probe.Transport == "" {
		c.Probe.Transport = TransportICMP
	}

	if c.Supervisor.RestartDelay == 0 {
		c.Supervisor.RestartDelay = 10 * time.Second
	}
	if c.Supervisor.RestartPolicy == "" {
		c.Supervisor.RestartPolicy = restart.PolicySoft
	}
}

// Validate checks the startup contracts every component relies on.
func (c Config) Validate() error {
	var errs []error
	if c.WiFi.SSID == "" {
		errs = append(errs, errors.New("wifi.ssid is required"))
	}
	switch c.WiFi.Stack {
	case StackNMCLI, StackSim:
	default:
		errs = append(errs, fmt.Errorf("wifi.stack %q is not one of nmcli, sim", c.WiFi.Stack))
	}
	if c.Strip.LEDs <= 0 {
		errs = append(errs, fmt.Errorf("strip.leds must be positive, got %d", c.Strip.LEDs))
	}
	if err := color.ValidateThreshold(c.Strip.Threshold); err != nil {
		errs = append(errs, fmt.Errorf("strip.threshold: %w", err))
	}
	if c.Strip.LEDs > 0 && c.Strip.Sweep < time.Duration(c.Strip.LEDs)*time.Millisecond {
		errs = append(errs, fmt.Errorf("strip.sweep %s is shorter than 1ms per LED", c.Strip.Sweep))
	}
	switch c.Strip.Driver {
	case DriverSPI, DriverConsole:
	case DriverMQTT:
		if c.Strip.MQTT.Broker == "" {
			errs = append(errs, errors.New("strip.mqtt.broker is required for the mqtt driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("strip.driver %q is not one of spi, mqtt, console", c.Strip.Driver))
	}
	if c.Probe.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout))
	} else if c.Probe.Timeout <= c.Strip.Threshold {
		// Otherwise every reply slower than the threshold times out and the
		// out-of-range colour can never be shown.
		errs = append(errs, fmt.Errorf("probe.timeout %s must exceed strip.threshold %s", c.Probe.Timeout, c.Strip.Threshold))
	}
	switch c.Probe.Transport {
	case TransportICMP, TransportSim:
	default:
		errs = append(errs, fmt.Errorf("probe.transport %q is not one of icmp, sim", c.Probe.Transport))
	}
	if c.Supervisor.RestartDelay <= 0 {
		errs = append(errs, fmt.Errorf("supervisor.restart_delay must be positive, got %s", c.Supervisor.RestartDelay))
	}
	switch c.Supervisor.RestartPolicy {
	case restart.PolicySoft, restart.PolicyExec:
	default:
		errs = append(errs, fmt.Errorf("supervisor.restart_policy %q is not one of soft, exec", c.Supervisor.RestartPolicy))
	}
	return errors.Join(errs...)
}
