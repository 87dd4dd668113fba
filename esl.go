package main

import (
	"fmt"
	"time"

	"github.com/fiorix/go-eventsocket/eventsocket"
	"github.com/tevino/abool"
)

// Conn is the control-plane connection the generator drives. The production
// implementation wraps a FreeSWITCH event socket; tests substitute a fake.
type Conn interface {
	// Connected reports whether the socket is currently usable.
	Connected() bool
	// Reconnect is a no-op when connected, otherwise performs exactly one
	// fresh connect attempt.
	Reconnect() error
	// Issue sends an api command without waiting for its result. The
	// returned error reports a send that never reached the switch.
	Issue(cmd string) error
	// Receive returns the next inbound event, or nil once the timeout
	// elapses with nothing to deliver.
	Receive(timeout time.Duration) *Event
	// Close tears the socket down.
	Close()
}

// ESLConn is the event-socket backed Conn. A reader goroutine pumps inbound
// events into a channel; everything else happens on the caller's goroutine.
type ESLConn struct {
	addr     string
	password string
	debug    bool

	conn      *eventsocket.Connection
	events    chan *Event
	connected *abool.AtomicBool
}

// DialESL connects to the switch, raises its session ceilings, sets log
// levels, reloads the XML configuration and subscribes to the handled events.
func DialESL(addr, password string, debug bool) (*ESLConn, error) {
	c := &ESLConn{
		addr:      addr,
		password:  password,
		debug:     debug,
		events:    make(chan *Event, 1024),
		connected: abool.New(),
	}
	if err := c.dial(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ESLConn) dial() error {
	conn, err := eventsocket.Dial(c.addr, c.password)
	if err != nil {
		return fmt.Errorf("esl connect %s: %w", c.addr, err)
	}
	c.conn = conn
	c.connected.Set()
	c.setup()
	go c.pump(conn)
	return nil
}

// setup prepares the switch for the run. The sps and max_sessions ceilings
// are raised so they do not throttle the test itself.
func (c *ESLConn) setup() {
	c.Issue("fsctl sps 100000")
	c.Issue("fsctl max_sessions 100000")
	c.Issue("fsctl verbose_events true")
	if c.debug {
		c.Issue("fsctl loglevel debug")
		c.Issue("console loglevel debug")
	} else {
		c.Issue("fsctl loglevel warning")
		c.Issue("console loglevel warning")
	}
	c.Issue("reloadxml")

	for _, name := range primaryEvents {
		c.send("events plain " + name)
	}
	for _, subclass := range customEvents {
		c.send("events plain CUSTOM " + subclass)
	}
}

// Connected reports whether the socket is usable.
func (c *ESLConn) Connected() bool {
	return c.connected.IsSet()
}

// Reconnect performs a single fresh connect when the socket is down.
func (c *ESLConn) Reconnect() error {
	if c.connected.IsSet() {
		return nil
	}
	return c.dial()
}

// Issue sends an api command, ignoring its reply. A send error drops the
// connection so the next origination tick triggers a reconnect.
func (c *ESLConn) Issue(cmd string) error {
	return c.send("api " + cmd)
}

func (c *ESLConn) send(cmd string) error {
	if !c.connected.IsSet() {
		return fmt.Errorf("not connected")
	}
	eslLog.Debugf("sending command: %s", cmd)
	if _, err := c.conn.Send(cmd); err != nil {
		eslLog.Errorf("command %q failed: %v", cmd, err)
		c.connected.UnSet()
		return err
	}
	return nil
}

// Receive returns the next event or nil after the timeout. This is the run
// loop's only blocking call, so it also bounds how long the scheduler goes
// unpolled.
func (c *ESLConn) Receive(timeout time.Duration) *Event {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case e := <-c.events:
		return e
	case <-t.C:
		return nil
	}
}

// Close shuts the socket down.
func (c *ESLConn) Close() {
	c.connected.UnSet()
	if c.conn != nil {
		c.conn.Close()
	}
}

// pump reads events off the wire into the channel. A read error marks the
// connection down and delivers a synthetic SERVER_DISCONNECTED event so the
// dispatcher observes the loss in-band.
func (c *ESLConn) pump(conn *eventsocket.Connection) {
	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			eslLog.Errorf("read failed: %v", err)
			c.connected.UnSet()
			c.events <- newEvent(map[string]string{"Event-Name": "SERVER_DISCONNECTED"})
			return
		}
		e := convertEvent(ev)
		eslLog.Debugf("received event: %s", e.Name())
		c.events <- e
	}
}

// convertEvent flattens the library event into a plain header map. newEvent
// folds the library's rewritten header names, so handlers keep looking
// headers up by their wire spelling.
func convertEvent(ev *eventsocket.Event) *Event {
	headers := make(map[string]string, len(ev.Header))
	for name, value := range ev.Header {
		if s, ok := value.(string); ok {
			headers[name] = s
		}
	}
	return newEvent(headers)
}
