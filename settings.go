package main

import (
	"fmt"
	"time"

	ini "gopkg.in/ini.v1"
)

// Settings holds the run configuration. Immutable once handed to the
// generator.
type Settings struct {
	server   string
	port     int
	password string

	rate            int
	timeRate        int
	limit           int
	duration        int
	randomMin       int
	maxSessions     int
	originateString string
	dtmfSeq         string
	dtmfDelay       int

	reportInterval int
	sleepTime      int
	debug          bool
}

// defaultSettings returns the sipp-like defaults used when neither a config
// file nor a flag provides a value.
func defaultSettings() *Settings {
	return &Settings{
		server:    "127.0.0.1",
		port:      8021,
		password:  "ClueCon",
		rate:      1,
		timeRate:  1,
		limit:     1,
		duration:  60,
		dtmfDelay: 1,
	}
}

// LoadSettings reads configuration from an ini profile on top of the
// defaults. Flags may still override individual values afterwards.
func LoadSettings(cfg *ini.File) (*Settings, error) {
	s := defaultSettings()

	sec := cfg.Section("server")
	s.server = sec.Key("address").MustString(s.server)
	s.port = sec.Key("port").MustInt(s.port)
	s.password = sec.Key("password").MustString(s.password)

	sec = cfg.Section("call")
	s.rate = sec.Key("rate").MustInt(s.rate)
	s.timeRate = sec.Key("time_rate").MustInt(s.timeRate)
	s.limit = sec.Key("limit").MustInt(s.limit)
	s.duration = sec.Key("duration").MustInt(s.duration)
	s.randomMin = sec.Key("random_min").MustInt(0)
	s.maxSessions = sec.Key("max_sessions").MustInt(0)
	s.originateString = sec.Key("originate_string").String()
	s.dtmfSeq = sec.Key("dtmf_seq").String()
	s.dtmfDelay = sec.Key("dtmf_delay").MustInt(s.dtmfDelay)

	sec = cfg.Section("report")
	s.reportInterval = sec.Key("interval").MustInt(0)

	return s, nil
}

// Validate checks the constraints the generator relies on.
func (s *Settings) Validate() error {
	if s.originateString == "" {
		return fmt.Errorf("an originate string must be set")
	}
	if s.randomMin > s.duration {
		return fmt.Errorf("random minimum cannot be more than duration")
	}
	if s.rate < 1 {
		return fmt.Errorf("rate must be at least 1")
	}
	if s.limit < 1 {
		return fmt.Errorf("limit must be at least 1")
	}
	return nil
}

func (s *Settings) Addr() string { return fmt.Sprintf("%s:%d", s.server, s.port) }

func (s *Settings) Server() string          { return s.server }
func (s *Settings) Port() int               { return s.port }
func (s *Settings) Password() string        { return s.password }
func (s *Settings) Rate() int               { return s.rate }
func (s *Settings) Limit() int              { return s.limit }
func (s *Settings) Duration() int           { return s.duration }
func (s *Settings) RandomMin() int          { return s.randomMin }
func (s *Settings) MaxSessions() int        { return s.maxSessions }
func (s *Settings) OriginateString() string { return s.originateString }
func (s *Settings) DTMFSeq() string         { return s.dtmfSeq }
func (s *Settings) DTMFDelay() int          { return s.dtmfDelay }
func (s *Settings) ReportInterval() int     { return s.reportInterval }
func (s *Settings) Debug() bool             { return s.debug }

func (s *Settings) TimeRate() time.Duration {
	return time.Duration(s.timeRate) * time.Second
}

func (s *Settings) SleepTime() time.Duration {
	return time.Duration(s.sleepTime) * time.Second
}
