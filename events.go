package main

import "strings"

// Event is one inbound switch event, reduced to its headers. Header names
// are matched case-insensitively: the event socket library rewrites name
// casing while decoding (Unique-ID arrives as Unique-Id, variable_ headers
// as Variable_), so keys are folded to lower case on construction and every
// lookup folds the same way.
type Event struct {
	headers map[string]string
}

func newEvent(headers map[string]string) *Event {
	folded := make(map[string]string, len(headers))
	for name, value := range headers {
		folded[strings.ToLower(name)] = value
	}
	return &Event{headers: folded}
}

// Get returns the value of a header or an empty string.
func (e *Event) Get(name string) string {
	return e.headers[strings.ToLower(name)]
}

// Name returns the Event-Name header.
func (e *Event) Name() string {
	return e.Get("Event-Name")
}

// Subclass returns the Event-Subclass header carried by CUSTOM events.
func (e *Event) Subclass() string {
	return e.Get("Event-Subclass")
}

// eventKind enumerates the event types the generator reacts to.
type eventKind int

const (
	evUnknown eventKind = iota
	evChannelCreate
	evChannelOriginate
	evChannelAnswer
	evChannelBridge
	evChannelHangup
	evBertTimeout
	evBertLostSync
	evDisconnect
)

// primaryEvents are subscribed by name; customEvents are CUSTOM subclasses.
var (
	primaryEvents = []string{
		"CHANNEL_CREATE",
		"CHANNEL_ORIGINATE",
		"CHANNEL_ANSWER",
		"CHANNEL_BRIDGE",
		"CHANNEL_HANGUP",
	}
	customEvents = []string{
		"mod_bert::timeout",
		"mod_bert::lost_sync",
	}
)

// kindOf classifies an event, descending into the subclass for CUSTOM.
func kindOf(e *Event) eventKind {
	switch e.Name() {
	case "CHANNEL_CREATE":
		return evChannelCreate
	case "CHANNEL_ORIGINATE":
		return evChannelOriginate
	case "CHANNEL_ANSWER":
		return evChannelAnswer
	case "CHANNEL_BRIDGE":
		return evChannelBridge
	case "CHANNEL_HANGUP":
		return evChannelHangup
	case "SERVER_DISCONNECTED":
		return evDisconnect
	case "CUSTOM":
		switch e.Subclass() {
		case "mod_bert::timeout":
			return evBertTimeout
		case "mod_bert::lost_sync":
			return evBertLostSync
		}
	}
	return evUnknown
}
