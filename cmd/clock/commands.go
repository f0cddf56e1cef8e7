package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/alexwitherspoon/clock/internal/clock"
	"github.com/alexwitherspoon/clock/internal/config"
	"github.com/alexwitherspoon/clock/internal/logger"
	"github.com/alexwitherspoon/clock/internal/ntp"
	"github.com/alexwitherspoon/clock/internal/timehealth"
	"github.com/alexwitherspoon/clock/internal/ui"
	"github.com/alexwitherspoon/clock/internal/web"
)

// options are the parsed command line
type options struct {
	action     string
	args       []string
	configPath string
	standard   clock.Standard
	servers    string
	port       int
	localPort  int
	timeout    time.Duration
	parallel   int
	apply      bool
	listen     string
	logLevel   string
}

func (a *app) newFlagSet(o *options, std *string) *flag.FlagSet {
	fs := flag.NewFlagSet("clock", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&o.configPath, "config", os.Getenv("CLOCK_CONFIG"), "Path to a JSON or TOML config file.")
	fs.StringVar(std, "use-standard", string(clock.RFC3339), "Time standard: rfc3339, rfc2822 or timestamp.")
	fs.StringVar(std, "s", string(clock.RFC3339), "Shorthand for -use-standard.")
	fs.StringVar(&o.servers, "servers", "", "Comma-separated NTP servers, overrides the config.")
	fs.IntVar(&o.port, "port", 0, "Remote NTP port.")
	fs.IntVar(&o.localPort, "local-port", -1, "Local UDP source port, 0 for any.")
	fs.DurationVar(&o.timeout, "timeout", 0, "Per-server read timeout.")
	fs.IntVar(&o.parallel, "concurrency", 0, "Servers queried in parallel (requires -local-port 0 above 1).")
	fs.BoolVar(&o.apply, "apply", false, "check-ntp: set the clock using the consensus offset.")
	fs.StringVar(&o.listen, "listen", "", "watch: serve status over HTTP on this address, e.g. :8080.")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error.")
	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "usage: clock [flags] get | set <datetime> | check-ntp | watch [-listen addr] | init-config <path>")
		fs.PrintDefaults()
	}
	return fs
}

// parse accepts flags before and after the action and its arguments
func (a *app) parse(args []string) (*options, error) {
	o := &options{}
	var std string
	fs := a.newFlagSet(o, &std)

	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}

	standard, err := clock.ParseStandard(std)
	if err != nil {
		return nil, err
	}
	o.standard = standard

	o.action = "get"
	if len(positional) > 0 {
		o.action = strings.ToLower(positional[0])
		o.args = positional[1:]
	}
	return o, nil
}

// loadConfig reads the config file, if any, and applies flag overrides
func (a *app) loadConfig(o *options) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if o.servers != "" {
		cfg.Servers = nil
		for _, s := range strings.Split(o.servers, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Servers = append(cfg.Servers, s)
			}
		}
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.localPort >= 0 {
		port := o.localPort
		cfg.LocalPort = &port
	}
	if o.timeout != 0 {
		cfg.TimeoutMs = int(o.timeout / time.Millisecond)
	}
	if o.parallel != 0 {
		cfg.Concurrency = o.parallel
	}
	if o.listen != "" {
		cfg.Monitor.Listen = o.listen
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) run(ctx context.Context, args []string) int {
	o, err := a.parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return a.errorf("%v", err)
	}

	switch o.action {
	case "get":
		return a.get(o)
	case "set":
		return a.set(o)
	case "init-config":
		return a.initConfig(o)
	case "check-ntp", "watch":
	default:
		return a.errorf("unknown action %q", o.action)
	}

	cfg, err := a.loadConfig(o)
	if err != nil {
		return a.errorf("%v", err)
	}
	if a.log == nil {
		a.log = logger.New(logger.ConfigFromEnv(logger.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Output:     a.stderr,
			BufferSize: 200,
		}))
	}

	if o.action == "watch" {
		return a.watch(ctx, cfg)
	}
	return a.checkNTP(ctx, cfg, o.apply)
}

func (a *app) get(o *options) int {
	fmt.Fprintln(a.stdout, clock.Format(a.now(), o.standard))
	return 0
}

func (a *app) set(o *options) int {
	if len(o.args) != 1 {
		return a.errorf("set needs exactly one datetime argument")
	}

	t, err := clock.Parse(o.args[0], o.standard)
	if err != nil {
		return a.errorf("unable to parse %s as %s", o.args[0], o.standard)
	}

	if err := a.setter.SetTime(t); err != nil {
		return a.errorf("unable to set the time: %v", err)
	}
	fmt.Fprintln(a.stdout, clock.Format(t, o.standard))
	return 0
}

func (a *app) initConfig(o *options) int {
	if len(o.args) != 1 {
		return a.errorf("init-config needs a file path")
	}
	if _, err := os.Stat(o.args[0]); err == nil {
		return a.errorf("%s already exists", o.args[0])
	}
	if err := config.Save(o.args[0], config.Default()); err != nil {
		return a.errorf("%v", err)
	}
	fmt.Fprintf(a.stdout, "wrote %s\n", o.args[0])
	return 0
}

func (a *app) checkNTP(ctx context.Context, cfg *config.Config, apply bool) int {
	aggregator := ntp.NewAggregator(cfg.Aggregator(), a.log)

	report, err := aggregator.CheckTime(ctx)
	for _, s := range report.Samples {
		if s.Err != nil {
			fmt.Fprintf(a.stdout, "%s => %s\n", s.Server, ui.BadStyle("? [no usable response]"))
			continue
		}
		fmt.Fprintf(a.stdout, "%s => %.3fms away from local system time %s\n",
			s.Server, s.Result.OffsetMillis(),
			ui.HelpStyle(fmt.Sprintf("(delay %.3fms)", s.Result.DelayMillis())))
	}
	if err != nil {
		if errors.Is(err, ntp.ErrNoData) {
			return a.errorf("no server returned a usable time sample")
		}
		return a.errorf("%v", err)
	}

	ms := report.OffsetMillis()
	fmt.Fprintf(a.stdout, "%s %.3fms\n", ui.TitleStyle("consensus offset:"), ms)
	fmt.Fprintf(a.stdout, "%s  (%s)\n",
		clock.Format(a.now().Add(report.Offset), clock.RFC3339),
		clock.FormatOffset(ms))

	if apply {
		set, err := clock.Apply(a.setter, a.now, report.Offset)
		if err != nil {
			return a.errorf("unable to set the time: %v", err)
		}
		fmt.Fprintf(a.stdout, "clock set to %s\n", clock.Format(set, clock.RFC3339))
	}
	return 0
}

func (a *app) watch(ctx context.Context, cfg *config.Config) int {
	aggregator := ntp.NewAggregator(cfg.Aggregator(), a.log)
	th := timehealth.New(cfg.TimeHealth(), aggregator, a.log)

	th.OnUpdate(func(s timehealth.Status) {
		line := fmt.Sprintf("%s %s offset=%s responding=%d/%d",
			clock.Format(s.LastCheck, clock.RFC3339),
			ui.Health(s.Healthy),
			clock.FormatOffset(ntp.Millis(s.Offset)),
			s.Responding, s.Servers)
		if s.ReferenceServer != "" {
			line += fmt.Sprintf(" reference=%s@%s", clock.FormatOffset(ntp.Millis(s.ReferenceOffset)), s.ReferenceServer)
		}
		if s.LastError != nil {
			line += " error=" + s.LastError.Error()
		}
		fmt.Fprintln(a.stdout, line)
	})

	a.log.Info("Watching clock",
		"servers", aggregator.Servers(),
		"interval", cfg.TimeHealth().CheckInterval)

	var srv *web.Server
	if cfg.Monitor.Listen != "" {
		srv = web.NewServer(web.ServerConfig{
			Version: Version,
			Commit:  GitCommit,
			Health:  th,
			Logs:    a.log,
			Now:     a.now,
		})
		ln, err := net.Listen("tcp", cfg.Monitor.Listen)
		if err != nil {
			return a.errorf("%v", err)
		}
		if a.onListen != nil {
			a.onListen(ln.Addr())
		}
		go func() {
			if err := srv.Serve(ln); err != nil {
				a.log.Error("Status server failed", "error", err)
			}
		}()
		a.log.Info("Serving status", "addr", ln.Addr().String())
	}

	<-th.Start(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			a.log.Warn("Status server shutdown failed", "error", err)
		}
	}
	return 0
}
