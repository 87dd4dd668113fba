package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()

	s := &Session{ID: "a"}
	r.Add(s)
	require.Equal(t, 1, r.Len())

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.Get("b")
	assert.False(t, ok)

	r.Remove("a")
	assert.Equal(t, 0, r.Len())

	// removing an unknown id is a no-op
	r.Remove("a")
}

func TestRegistryPeerResolution(t *testing.T) {
	r := NewRegistry()

	s := &Session{ID: "a"}
	r.Add(s)
	r.LinkPeer(s, "b")

	assert.Equal(t, "b", s.PeerID)

	got, ok := r.ResolvePeer("b")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.ResolvePeer("a")
	assert.False(t, ok)
}

func TestRegistryRemovePrunesPeerEntries(t *testing.T) {
	r := NewRegistry()

	s := &Session{ID: "a"}
	r.Add(s)
	r.LinkPeer(s, "b")

	r.Remove("a")
	assert.Equal(t, 0, r.Len())
	_, ok := r.ResolvePeer("b")
	assert.False(t, ok, "peer entries must not outlive the session they resolve to")
}

func TestStatsRecordHangup(t *testing.T) {
	s := NewStats()

	s.RecordHangup("NORMAL_CLEARING")
	s.RecordHangup("NORMAL_CLEARING")
	s.RecordHangup("NO_ANSWER")

	assert.Equal(t, 2, s.HangupCauses["NORMAL_CLEARING"])
	assert.Equal(t, 1, s.HangupCauses["NO_ANSWER"])

	total := 0
	for _, n := range s.HangupCauses {
		total += n
	}
	assert.Equal(t, 3, total)
}
