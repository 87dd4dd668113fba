package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/ini.v1"
)

type options struct {
	config          string
	server          string
	port            int
	auth            string
	rate            int
	timeRate        int
	limit           int
	duration        int
	randomMin       int
	maxSessions     int
	originateString string
	dtmfSeq         string
	dtmfDelay       int
	sleepTime       int
	reportInterval  int
	debug           bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "callgen",
		Short:        "Originate synthetic calls through a FreeSWITCH event socket at a controlled rate",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	// Options mirror sipp where possible (-r, -l, -d, -m).
	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", "", "optional ini profile, overridden by flags")
	f.StringVarP(&opts.server, "server", "s", "127.0.0.1", "FreeSWITCH server IP address")
	f.IntVarP(&opts.port, "port", "p", 8021, "FreeSWITCH event socket port")
	f.StringVarP(&opts.auth, "auth", "a", "ClueCon", "event socket password")
	f.StringVarP(&opts.originateString, "originate-string", "o", "", "FreeSWITCH originate string")
	f.IntVarP(&opts.rate, "rate", "r", 1, "sessions to originate per unit of time (see --time-rate)")
	f.IntVarP(&opts.timeRate, "time-rate", "t", 1, "time rate in seconds")
	f.IntVarP(&opts.limit, "limit", "l", 1, "max number of concurrent sessions")
	f.IntVarP(&opts.duration, "duration", "d", 60, "max duration in seconds of sessions before being hung up")
	f.IntVar(&opts.randomMin, "random", 0, "randomize duration with this minimum number of seconds")
	f.IntVarP(&opts.maxSessions, "max-sessions", "m", 0, "max number of sessions to originate before stopping")
	f.StringVar(&opts.dtmfSeq, "dtmf-seq", "", "play the given DTMF sequence after answer")
	f.IntVar(&opts.dtmfDelay, "dtmf-delay", 1, "how long to wait after answer to play DTMF")
	f.IntVar(&opts.sleepTime, "sleep", 0, "number of seconds to sleep before starting")
	f.IntVar(&opts.reportInterval, "report", 0, "number of originates between cumulative reports")
	f.BoolVar(&opts.debug, "debug", false, "enable debugging")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	var profile *ini.File
	settings := defaultSettings()
	if opts.config != "" {
		var err error
		profile, err = ini.Load(opts.config)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		settings, err = LoadSettings(profile)
		if err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	applyFlags(settings, cmd, opts)
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := initLogging(profile, settings.Debug()); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closeLogging()

	if d := settings.SleepTime(); d > 0 {
		fmt.Fprintf(os.Stderr, "sleeping for %v...\n", d)
		time.Sleep(d)
	}

	conn, err := DialESL(settings.Addr(), settings.Password(), settings.Debug())
	if err != nil {
		return err
	}
	defer conn.Close()

	gen := NewGenerator(settings, conn)

	// SIGTSTP toggles pausing of new originations; dispatch keeps running.
	pause := make(chan os.Signal, 1)
	signal.Notify(pause, syscall.SIGTSTP)
	defer signal.Stop(pause)
	go func() {
		for range pause {
			gen.TogglePause()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)
	go func() {
		<-stop
		gen.RequestStop()
	}()

	runErr := gen.Run()
	gen.Report()
	if runErr != nil {
		return runErr
	}
	if failed := gen.Stats().Failed; failed > 0 {
		return fmt.Errorf("%d sessions failed", failed)
	}
	return nil
}

// applyFlags overrides profile values with any flag the user actually set.
func applyFlags(s *Settings, cmd *cobra.Command, opts *options) {
	set := map[string]func(){
		"server":           func() { s.server = opts.server },
		"port":             func() { s.port = opts.port },
		"auth":             func() { s.password = opts.auth },
		"originate-string": func() { s.originateString = opts.originateString },
		"rate":             func() { s.rate = opts.rate },
		"time-rate":        func() { s.timeRate = opts.timeRate },
		"limit":            func() { s.limit = opts.limit },
		"duration":         func() { s.duration = opts.duration },
		"random":           func() { s.randomMin = opts.randomMin },
		"max-sessions":     func() { s.maxSessions = opts.maxSessions },
		"dtmf-seq":         func() { s.dtmfSeq = opts.dtmfSeq },
		"dtmf-delay":       func() { s.dtmfDelay = opts.dtmfDelay },
		"sleep":            func() { s.sleepTime = opts.sleepTime },
		"report":           func() { s.reportInterval = opts.reportInterval },
		"debug":            func() { s.debug = opts.debug },
	}
	for name, apply := range set {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
