package main

// Session tracks one originated call leg from the originate request until its
// hangup event.
type Session struct {
	ID           string
	PeerID       string
	Created      bool
	Answered     bool
	BertSyncLost int
	BertTimedOut bool
}

// Registry owns all live sessions. The primary map is keyed by the
// origination uuid; the peer map resolves the bridged B leg's uuid back to
// the originating session and never owns an entry on its own. Both maps are
// mutated only from the run loop goroutine.
type Registry struct {
	sessions map[string]*Session
	peers    map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		peers:    make(map[string]*Session),
	}
}

// Add inserts a session under its own uuid.
func (r *Registry) Add(s *Session) {
	r.sessions[s.ID] = s
}

// Get returns the session originated with the given uuid.
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// LinkPeer records that peerID is the bridged leg of s, so later events
// addressed to either uuid resolve to the same session.
func (r *Registry) LinkPeer(s *Session, peerID string) {
	s.PeerID = peerID
	r.peers[peerID] = s
}

// ResolvePeer returns the session whose bridged leg has the given uuid.
func (r *Registry) ResolvePeer(id string) (*Session, bool) {
	s, ok := r.peers[id]
	return s, ok
}

// Remove deletes the session with the given uuid along with any peer entry
// resolving to it, keeping the two maps consistent.
func (r *Registry) Remove(id string) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	if s.PeerID != "" {
		delete(r.peers, s.PeerID)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int { return len(r.sessions) }
