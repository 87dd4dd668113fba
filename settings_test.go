package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ini "gopkg.in/ini.v1"
)

func TestLoadSettingsDefaults(t *testing.T) {
	cfg, err := ini.Load([]byte(""))
	require.NoError(t, err)

	s, err := LoadSettings(cfg)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8021", s.Addr())
	assert.Equal(t, "ClueCon", s.Password())
	assert.Equal(t, 1, s.Rate())
	assert.Equal(t, time.Second, s.TimeRate())
	assert.Equal(t, 1, s.Limit())
	assert.Equal(t, 60, s.Duration())
	assert.Equal(t, 0, s.MaxSessions())
	assert.Equal(t, 1, s.DTMFDelay())
}

func TestLoadSettingsFromProfile(t *testing.T) {
	cfg, err := ini.Load([]byte(`
[server]
address = 10.0.0.5
port = 8022
password = secret

[call]
rate = 10
time_rate = 2
limit = 50
duration = 30
random_min = 5
max_sessions = 1000
originate_string = {ignore_early_media=true}sofia/gateway/test/1000
dtmf_seq = 1234
dtmf_delay = 3

[report]
interval = 100
`))
	require.NoError(t, err)

	s, err := LoadSettings(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	assert.Equal(t, "10.0.0.5:8022", s.Addr())
	assert.Equal(t, "secret", s.Password())
	assert.Equal(t, 10, s.Rate())
	assert.Equal(t, 2*time.Second, s.TimeRate())
	assert.Equal(t, 50, s.Limit())
	assert.Equal(t, 30, s.Duration())
	assert.Equal(t, 5, s.RandomMin())
	assert.Equal(t, 1000, s.MaxSessions())
	assert.Equal(t, "{ignore_early_media=true}sofia/gateway/test/1000", s.OriginateString())
	assert.Equal(t, "1234", s.DTMFSeq())
	assert.Equal(t, 3, s.DTMFDelay())
	assert.Equal(t, 100, s.ReportInterval())
}

func TestValidateRequiresOriginateString(t *testing.T) {
	s := defaultSettings()
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "originate string")
}

func TestValidateRandomMinBoundedByDuration(t *testing.T) {
	s := defaultSettings()
	s.originateString = "sofia/gateway/test/1000"
	s.duration = 10
	s.randomMin = 20
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "random minimum")

	s.randomMin = 10
	assert.NoError(t, s.Validate())
}
