package main

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"
)

const (
	// testTagVar is set on every leg of the run so a single hupall can
	// clean up anything left behind, including legs we lost track of.
	testTagVar = "callgen_test"
	// peerUUIDVar propagates the origination uuid to the bridged B leg.
	peerUUIDVar = "sip_h_X-callgen_uuid"
	// bertSyncLostVar marks both legs of a pair that lost BERT sync.
	bertSyncLostVar = "bert_stats_sync_lost"

	// receiveTimeout bounds the blocking receive so idle periods still
	// re-poll the scheduler.
	receiveTimeout = 100 * time.Millisecond
)

// Generator originates sessions at the configured rate and tracks them
// through the switch's event stream. All state is owned by the goroutine
// running Run; the pause flag is the only value written from outside.
type Generator struct {
	cfg   *Settings
	conn  Conn
	sched *Scheduler
	reg   *Registry
	stats *Stats
	rng   *rand.Rand
	log   *logrus.Entry

	paused      *abool.AtomicBool
	stop        *abool.AtomicBool
	pauseLogged bool
	terminating bool

	testTag         string
	originateString string
}

// NewGenerator creates a Generator driving the given connection.
func NewGenerator(cfg *Settings, conn Conn) *Generator {
	tag := uuid.NewString()
	return &Generator{
		cfg:             cfg,
		conn:            conn,
		sched:           NewScheduler(time.Now),
		reg:             NewRegistry(),
		stats:           NewStats(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		log:             coreLog,
		paused:          abool.New(),
		stop:            abool.New(),
		testTag:         tag,
		originateString: taggedOriginateString(cfg.OriginateString(), tag),
	}
}

// Stats exposes the aggregate counters, e.g. for the process exit code.
func (g *Generator) Stats() *Stats { return g.stats }

// TogglePause flips the pause flag. Safe to call from a signal handler
// goroutine; the flag is read once per origination tick.
func (g *Generator) TogglePause() {
	if g.paused.IsSet() {
		g.paused.UnSet()
	} else {
		g.paused.Set()
	}
}

// RequestStop asks the run loop to terminate. Safe to call from a signal
// handler goroutine.
func (g *Generator) RequestStop() {
	g.stop.Set()
}

// Report logs the cumulative counters.
func (g *Generator) Report() {
	g.stats.Report(g.log)
}

// Run drives the generator until the run terminates: the scheduler is
// drained, then one bounded receive feeds the dispatcher. A panic anywhere in
// the loop is surfaced as the run's error; the shutdown pass runs either way
// and bulk-hangs-up every leg still carrying the run tag.
func (g *Generator) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run loop failure: %v", r)
		}
		g.shutdown()
	}()

	g.log.Infof("starting run %s", g.testTag)
	g.sched.Schedule(0, 1, g.originate)
	for !g.terminating && !g.stop.IsSet() {
		g.sched.RunReady()
		if g.terminating {
			break
		}
		if e := g.conn.Receive(receiveTimeout); e != nil {
			g.dispatch(e)
		}
	}
	return nil
}

// shutdown attempts one reconnect so the cleanup command can still reach the
// switch, then hangs up every leg tagged by this run.
func (g *Generator) shutdown() {
	g.reconnect()
	g.conn.Issue(fmt.Sprintf("bgapi hupall NORMAL_CLEARING %s %s", testTagVar, g.testTag))
}

// reconnect performs a single connect attempt when the connection is down.
// Failure terminates the run rather than retrying indefinitely.
func (g *Generator) reconnect() {
	if g.conn.Connected() {
		return
	}
	if err := g.conn.Reconnect(); err != nil {
		g.log.Errorf("failed to reconnect: %v", err)
		g.terminating = true
	}
}

// originate is the recurring origination tick. It re-arms itself unless the
// session cap was reached or the run is terminating.
func (g *Generator) originate() {
	if g.paused.IsSet() {
		if !g.pauseLogged {
			g.log.Info("... paused ...")
			g.pauseLogged = true
		}
		g.sched.Schedule(time.Second, 1, g.originate)
		return
	}
	g.pauseLogged = false

	if !g.conn.Connected() {
		g.reconnect()
		if g.terminating {
			return
		}
	}

	if g.cfg.MaxSessions() > 0 && g.stats.Originated >= g.cfg.MaxSessions() {
		g.log.Info("done originating sessions")
		return
	}

	g.log.Debug("originating sessions")
	originated := 0
	for i := 0; i < g.cfg.Rate() && g.reg.Len() < g.cfg.Limit(); i++ {
		id := uuid.NewString()
		cmd := g.originateCommand(id)
		if err := g.conn.Issue("bgapi originate " + cmd); err != nil {
			// The request never reached the switch, so no session may
			// linger in the registry waiting for events that cannot come.
			// The next tick reconnects.
			g.log.Errorf("originate failed: %v", err)
			break
		}
		g.reg.Add(&Session{ID: id})
		originated++
		g.log.Debugf("requested session %s (%s)", id, cmd)
	}
	if originated > 0 {
		g.log.Infof("originated %d new sessions", originated)
	}
	g.sched.Schedule(g.cfg.TimeRate(), 1, g.originate)
}

// originateCommand embeds the correlation uuid into the originate string,
// both as the channel's own uuid and as a header the B leg echoes back.
func (g *Generator) originateCommand(id string) string {
	return fmt.Sprintf("{origination_uuid=%s,%s=%s,%s", id, peerUUIDVar, id, g.originateString[1:])
}

// taggedOriginateString merges the run tag into the originate string's
// variable block, adding one when the string has none.
func taggedOriginateString(raw, tag string) string {
	if strings.HasPrefix(raw, "{") {
		return fmt.Sprintf("{%s=%s,%s", testTagVar, tag, raw[1:])
	}
	return fmt.Sprintf("{%s=%s}%s", testTagVar, tag, raw)
}

// dispatch routes one inbound event to its handler. Handler errors are
// logged here and never abort the run; unknown events are logged and
// skipped.
func (g *Generator) dispatch(e *Event) {
	var err error
	switch kindOf(e) {
	case evChannelCreate:
		err = g.onCreate(e)
	case evChannelOriginate:
		err = g.onOriginate(e)
	case evChannelAnswer, evChannelBridge:
		err = g.onAnswer(e)
	case evChannelHangup:
		err = g.onHangup(e)
	case evBertLostSync:
		err = g.onBertLostSync(e)
	case evBertTimeout:
		err = g.onBertTimeout(e)
	case evDisconnect:
		err = g.onDisconnect(e)
	case evUnknown:
		g.log.Errorf("unknown event %s/%s", e.Name(), e.Subclass())
		return
	}
	if err != nil {
		g.log.Errorf("failed to process event %s: %v", e.Name(), err)
	}
}

// eventUUID extracts the channel uuid an event refers to.
func eventUUID(e *Event) (string, error) {
	id := e.Get("Unique-ID")
	if id == "" {
		return "", fmt.Errorf("missing Unique-ID header")
	}
	return id, nil
}

// onCreate links a freshly created B leg back to the session that originated
// it. Legs without a matching correlation header are not ours.
func (g *Generator) onCreate(e *Event) error {
	id, err := eventUUID(e)
	if err != nil {
		return err
	}
	g.log.Debugf("created session %s", id)
	if _, ok := g.reg.Get(id); ok {
		return nil
	}
	partner := e.Get("variable_" + peerUUIDVar)
	if partner == "" {
		return nil
	}
	sess, ok := g.reg.Get(partner)
	if !ok {
		return nil
	}
	g.log.Debugf("uuid %s is bridged to uuid %s", id, partner)
	g.reg.LinkPeer(sess, id)
	// The B leg never ran through our originate string, so tag it here for
	// the bulk cleanup.
	g.conn.Issue(fmt.Sprintf("uuid_set_var %s %s %s", id, testTagVar, g.testTag))
	return nil
}

// onOriginate confirms an origination, schedules the call's hangup on the
// switch and, when configured, the DTMF playback and the periodic report.
func (g *Generator) onOriginate(e *Event) error {
	id, err := eventUUID(e)
	if err != nil {
		return err
	}
	sess, ok := g.reg.Get(id)
	if !ok {
		// Not a call we originated.
		return nil
	}
	g.log.Debugf("originated session %s", id)
	sess.Created = true
	g.stats.Originated++

	duration := g.cfg.Duration()
	if min := g.cfg.RandomMin(); min > 0 {
		duration = min + g.rng.Intn(duration-min+1)
	}
	g.log.Debugf("calculated duration %d for uuid %s", duration, id)
	g.conn.Issue(fmt.Sprintf("sched_hangup +%d %s NORMAL_CLEARING", duration, id))

	if seq := g.cfg.DTMFSeq(); seq != "" {
		g.log.Debugf("scheduling dtmf %s with delay %d at uuid %s", seq, g.cfg.DTMFDelay(), id)
		g.conn.Issue(fmt.Sprintf("sched_api +%d none uuid_send_dtmf %s %s", g.cfg.DTMFDelay(), id, seq))
	}

	if n := g.cfg.ReportInterval(); n > 0 && g.stats.Originated%n == 0 {
		g.Report()
	}
	return nil
}

// onAnswer marks a session answered. CHANNEL_ANSWER and CHANNEL_BRIDGE both
// land here, so the counter only moves on the first of the two.
func (g *Generator) onAnswer(e *Event) error {
	id, err := eventUUID(e)
	if err != nil {
		return err
	}
	sess, ok := g.reg.Get(id)
	if !ok {
		return nil
	}
	if sess.Answered {
		return nil
	}
	g.log.Debugf("answered session %s", id)
	sess.Answered = true
	g.stats.Answered++
	return nil
}

// onHangup retires a session: the cause is counted, unanswered sessions count
// as failed, and once the cap is reached and the registry drains the run
// terminates.
func (g *Generator) onHangup(e *Event) error {
	id, err := eventUUID(e)
	if err != nil {
		return err
	}
	sess, ok := g.reg.Get(id)
	if !ok {
		return nil
	}
	g.stats.RecordHangup(e.Get("Hangup-Cause"))
	if !sess.Answered {
		g.stats.Failed++
	}
	g.reg.Remove(id)
	g.log.Debugf("hung up session %s", id)
	if g.cfg.MaxSessions() > 0 && g.stats.Originated >= g.cfg.MaxSessions() && g.reg.Len() == 0 {
		g.terminating = true
	}
	return nil
}

// onBertLostSync counts a BERT sync loss against the logical pair, whichever
// leg reported it. Only the first loss flags both legs on the switch;
// mod_bert does not know about the peer leg, so both variables are set here.
func (g *Generator) onBertLostSync(e *Event) error {
	id, err := eventUUID(e)
	if err != nil {
		return err
	}
	sess, partner, ok := g.resolvePair(id)
	if !ok {
		return nil
	}
	g.log.Errorf("BERT lost sync on session %s", id)
	sess.BertSyncLost++
	if sess.BertSyncLost > 1 {
		return nil
	}
	g.conn.Issue(fmt.Sprintf("uuid_set_var %s %s true", id, bertSyncLostVar))
	if partner != "" {
		g.conn.Issue(fmt.Sprintf("uuid_set_var %s %s true", partner, bertSyncLostVar))
	}
	return nil
}

// onBertTimeout flags the logical pair as timed out.
func (g *Generator) onBertTimeout(e *Event) error {
	id, err := eventUUID(e)
	if err != nil {
		return err
	}
	sess, _, ok := g.resolvePair(id)
	if !ok {
		return nil
	}
	g.log.Errorf("BERT timeout on session %s", id)
	sess.BertTimedOut = true
	return nil
}

// resolvePair finds the session a leg uuid belongs to, directly or through
// the peer map, and returns the uuid of the other leg.
func (g *Generator) resolvePair(id string) (sess *Session, partner string, ok bool) {
	if sess, ok = g.reg.Get(id); ok {
		return sess, sess.PeerID, true
	}
	if sess, ok = g.reg.ResolvePeer(id); ok {
		return sess, sess.ID, true
	}
	return nil, "", false
}

// onDisconnect terminates the run; cleanup happens in the shutdown pass.
func (g *Generator) onDisconnect(*Event) error {
	g.log.Error("disconnected from server")
	g.terminating = true
	return nil
}
