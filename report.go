package main

import "github.com/sirupsen/logrus"

// Stats accumulates run-wide counters. Mutated only from the run loop.
type Stats struct {
	Originated   int
	Answered     int
	Failed       int
	HangupCauses map[string]int
}

// NewStats creates zeroed Stats.
func NewStats() *Stats {
	return &Stats{HangupCauses: make(map[string]int)}
}

// RecordHangup counts one hangup with the given cause.
func (s *Stats) RecordHangup(cause string) {
	s.HangupCauses[cause]++
}

// Report logs the cumulative summary. It reads a snapshot only and may be
// called any number of times, both for periodic progress and the final
// report.
func (s *Stats) Report(log *logrus.Entry) {
	log.Infof("total originated sessions: %d", s.Originated)
	log.Infof("total answered sessions: %d", s.Answered)
	log.Infof("total failed sessions: %d", s.Failed)
	log.Info("-- call hangup stats --")
	for cause, count := range s.HangupCauses {
		log.Infof("%s: %d", cause, count)
	}
	log.Info("-----------------------")
}
