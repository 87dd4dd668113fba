package main

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	coreLog *logrus.Entry
	eslLog  *logrus.Entry
	logFile *lumberjack.Logger
)

// eventDumps controls whether full inbound event dumps are logged.
var eventDumps bool

// initLogging configures the per-component loggers. cfg may be nil, in which
// case an optional [logging] profile section simply does not apply. The
// debug flag lowers the core logger to debug regardless of the profile.
func initLogging(cfg *ini.File, debug bool) error {
	var sec *ini.Section
	if cfg != nil {
		sec = cfg.Section("logging")
	} else {
		empty := ini.Empty()
		sec = empty.Section("logging")
	}

	consoleMin := toLogrusLevel(sec.Key("console_min_level").MustInt(0))
	fileMin := toLogrusLevel(sec.Key("file_min_level").MustInt(0))

	logFile = &lumberjack.Logger{
		Filename:   "callgen.log",
		MaxSize:    100, // megabytes
		MaxBackups: 1,
	}

	coreLevel := toLogrusLevel(sec.Key("core").MustInt(2))
	if debug {
		coreLevel = logrus.DebugLevel
	}
	coreLog = newLogger("core", coreLevel, consoleMin, fileMin, logFile)
	eslLog = newLogger("esl", toLogrusLevel(sec.Key("esl").MustInt(2)), consoleMin, fileMin, logFile)

	eventDumps = sec.Key("event_dumps").MustBool(true)
	if !eventDumps {
		// filter out verbose per-event dumps
		eslLog.Logger.AddHook(&eventDumpFilterHook{})
	}
	return nil
}

// closeLogging flushes and closes log files.
func closeLogging() {
	if logFile != nil {
		_ = logFile.Close()
	}
}

// writerHook writes logs to the specified writer for provided levels.
type writerHook struct {
	Writer    io.Writer
	LogLevels []logrus.Level
}

func (h *writerHook) Fire(e *logrus.Entry) error {
	line, err := e.String()
	if err != nil {
		return err
	}
	_, err = h.Writer.Write([]byte(line))
	return err
}

func (h *writerHook) Levels() []logrus.Level {
	return h.LogLevels
}

func newLogger(name string, level, consoleMin, fileMin logrus.Level, file io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.AddHook(&writerHook{Writer: os.Stdout, LogLevels: availableLevels(consoleMin)})
	logger.AddHook(&writerHook{Writer: file, LogLevels: availableLevels(fileMin)})
	return logger.WithField("name", name)
}

func availableLevels(min logrus.Level) []logrus.Level {
	levels := []logrus.Level{}
	for _, l := range logrus.AllLevels {
		if l <= min {
			levels = append(levels, l)
		}
	}
	return levels
}

func toLogrusLevel(v int) logrus.Level {
	switch {
	case v <= 0:
		return logrus.TraceLevel
	case v == 1:
		return logrus.DebugLevel
	case v == 2:
		return logrus.InfoLevel
	case v == 3:
		return logrus.WarnLevel
	case v == 4:
		return logrus.ErrorLevel
	case v == 5:
		return logrus.FatalLevel
	default:
		return logrus.PanicLevel // off
	}
}

// eventDumpFilterHook suppresses logging of full event dumps when disabled
// via configuration.
type eventDumpFilterHook struct{}

func (h *eventDumpFilterHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *eventDumpFilterHook) Fire(e *logrus.Entry) error {
	if strings.HasPrefix(e.Message, "received event:") {
		// elevate level so writer hooks ignore the entry
		e.Level = logrus.PanicLevel + 1
	}
	return nil
}
