package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pingsantohq/netweather/internal/color"
	"github.com/pingsantohq/netweather/internal/config"
	"github.com/pingsantohq/netweather/internal/events"
	"github.com/pingsantohq/netweather/internal/health"
	"github.com/pingsantohq/netweather/internal/logging"
	"github.com/pingsantohq/netweather/internal/metrics"
	"github.com/pingsantohq/netweather/internal/probe"
	"github.com/pingsantohq/netweather/internal/restart"
	"github.com/pingsantohq/netweather/internal/status"
	"github.com/pingsantohq/netweather/internal/strip"
	"github.com/pingsantohq/netweather/internal/supervisor"
	"github.com/pingsantohq/netweather/internal/wifi"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = run(ctx, os.Args[2:], os.Stdout)
	case "scan":
		err = scan(ctx, os.Args[2:], os.Stdout)
	case "probe":
		err = probeOnce(ctx, os.Args[2:], os.Stdout)
	case "validate":
		err = validate(ctx, os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "command %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "netweather: network weather gauge")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  netweather run [--config /etc/netweather/netweather.yaml] [--pubkey key.pub]")
	fmt.Fprintln(w, "  netweather scan [--config path]")
	fmt.Fprintln(w, "  netweather probe [--config path] [--host addr]")
	fmt.Fprintln(w, "  netweather validate [--config path] [--pubkey key.pub]")
}

type commonFlags struct {
	configPath *string
	pubKeyPath *string
}

func newFlagSet(name string) (*flag.FlagSet, commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return fs, commonFlags{
		configPath: fs.String("config", config.PathFromEnv(), "Path to netweather configuration file"),
		pubKeyPath: fs.String("pubkey", "", "Minisign public key; when set the config must carry a valid .minisig"),
	}
}

// loadConfig reads, optionally verifies, and validates the configuration.
func loadConfig(ctx context.Context, flags commonFlags) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if *flags.pubKeyPath != "" {
		key, readErr := os.ReadFile(*flags.pubKeyPath)
		if readErr != nil {
			return cfg, fmt.Errorf("read public key: %w", readErr)
		}
		verifier, vErr := config.NewVerifier(string(key))
		if vErr != nil {
			return cfg, vErr
		}
		cfg, err = config.LoadVerified(ctx, *flags.configPath, verifier)
	} else {
		cfg, err = config.Load(ctx, *flags.configPath)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs, flags := newFlagSet("run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(ctx, flags)
	if err != nil {
		return err
	}

	logger := logging.New()
	if cfg.Strip.Driver == config.DriverConsole {
		logger = logging.NewWithWriter(os.Stderr)
	}
	cadence := cfg.Strip.Cadence()
	logger.Printf("gauge starting (ssid=%q, target=%s, leds=%d, cadence=%s, threshold=%s)",
		cfg.WiFi.SSID, cfg.Probe.Host, cfg.Strip.LEDs, cadence, cfg.Strip.Threshold)

	driver, closeDriver, err := openDriver(cfg, out)
	if err != nil {
		return fmt.Errorf("open strip: %w", err)
	}
	defer closeDriver()

	metricsStore := metrics.NewStore()
	recorders := []events.Recorder{metricsStore}
	if cfg.Strip.StageLightsEnabled() {
		recorders = append(recorders, strip.NewStageLights(driver, cfg.Strip.LEDs, logger))
	}
	recorder := events.NewStamped(events.NewMulti(recorders...))

	stack, err := openStack(cfg)
	if err != nil {
		return err
	}
	manager := wifi.NewManager(stack, wifi.Dependencies{Logger: logger, Events: recorder})

	sampler := probe.NewSampler(openTransport(cfg))
	renderer := strip.NewRenderer(driver, cfg.Strip.LEDs, cfg.Strip.Threshold)
	loop := supervisor.NewLoop(sampler, renderer,
		supervisor.LoopConfig{Timeout: cfg.Probe.Timeout, Cadence: cadence},
		supervisor.LoopDependencies{Logger: logger, Events: recorder},
	)

	restarter, err := restart.New(cfg.Supervisor.RestartPolicy, logger)
	if err != nil {
		return err
	}
	sup := supervisor.New(manager, loop,
		supervisor.Config{
			Credentials:  cfg.WiFi.Credentials(),
			Target:       cfg.Probe.Host,
			RestartDelay: cfg.Supervisor.RestartDelay,
		},
		supervisor.Dependencies{Logger: logger, Events: recorder, Restarter: restarter},
	)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	grp, groupCtx := errgroup.WithContext(runCtx)
	grp.Go(func() error {
		if err := sup.Run(groupCtx); err != nil && !isShutdown(err) {
			return err
		}
		return nil
	})

	if addr := cfg.Status.ListenAddr(); addr != "" {
		srv := status.New(status.Config{Addr: addr}, status.Dependencies{
			Logger:  logger,
			Metrics: metricsStore,
			Health:  health.NewChecker(metricsStore, 3*cadence),
			View:    loop,
			State:   manager,
		})
		grp.Go(func() error {
			return serveStatus(groupCtx, srv, logger)
		})
	}

	if err := grp.Wait(); err != nil && !isShutdown(err) {
		stop()
		return err
	}

	logger.Printf("gauge stopped")
	return nil
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func openDriver(cfg config.Config, out io.Writer) (strip.Driver, func(), error) {
	leds := cfg.Strip.LEDs
	switch cfg.Strip.Driver {
	case config.DriverConsole:
		return strip.NewConsole(out, leds), func() {}, nil
	case config.DriverMQTT:
		m, err := strip.DialMQTT(strip.MQTTConfig{
			Broker:   cfg.Strip.MQTT.Broker,
			Topic:    cfg.Strip.MQTT.Topic,
			ClientID: cfg.Strip.MQTT.ClientID,
		}, leds)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close() }, nil
	default:
		s, err := strip.OpenSPI(cfg.Strip.SPIPort, leds)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
}

func openStack(cfg config.Config) (wifi.Stack, error) {
	switch cfg.WiFi.Stack {
	case config.StackSim:
		return wifi.NewSim(), nil
	case config.StackNMCLI:
		return wifi.NewNMCLI(cfg.WiFi.Interface, cfg.WiFi.AddressTimeout), nil
	default:
		return nil, fmt.Errorf("unknown wifi stack %q", cfg.WiFi.Stack)
	}
}

func openTransport(cfg config.Config) probe.Transport {
	if cfg.Probe.Transport == config.TransportSim {
		return probe.Sim{
			Base:   cfg.Strip.Threshold / 10,
			Jitter: cfg.Strip.Threshold,
			Loss:   0.05,
		}
	}
	return probe.ICMP{Privileged: cfg.Probe.Privileged}
}

func serveStatus(ctx context.Context, srv *status.Server, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("status listening on http://%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func scan(ctx context.Context, args []string, out io.Writer) error {
	fs, flags := newFlagSet("scan")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(ctx, *flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	stack, err := openStack(cfg)
	if err != nil {
		return err
	}
	networks, err := stack.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SSID\tBSSID\tAUTH\tSIGNAL")
	for _, n := range networks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", n.SSID, n.BSSID, n.Auth, n.Signal)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if cfg.WiFi.SSID != "" {
		fmt.Fprintf(out, "\n%q would connect with %s\n", cfg.WiFi.SSID, wifi.InferAuth(networks, cfg.WiFi.SSID, cfg.WiFi.Password))
	}
	return nil
}

func probeOnce(ctx context.Context, args []string, out io.Writer) error {
	fs, flags := newFlagSet("probe")
	host := fs.String("host", "", "Address to probe (defaults to probe.host)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(ctx, *flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	target := *host
	if target == "" {
		target = cfg.Probe.Host
	}
	if target == supervisor.TargetGateway {
		return errors.New("probe.host is gateway; pass --host with an address")
	}
	if err := color.ValidateThreshold(cfg.Strip.Threshold); err != nil {
		return err
	}

	sample, err := probe.NewSampler(openTransport(cfg)).Probe(ctx, target, cfg.Probe.Timeout)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s #%s\n", target, sample, color.Map(sample, cfg.Strip.Threshold).Hex())
	return nil
}

func validate(ctx context.Context, args []string, out io.Writer) error {
	fs, flags := newFlagSet("validate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(ctx, flags)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "config %s ok: %d leds, one sample every %s, restart after %s (%s)\n",
		*flags.configPath, cfg.Strip.LEDs, cfg.Strip.Cadence(), cfg.Supervisor.RestartDelay, cfg.Supervisor.RestartPolicy)
	return nil
}
