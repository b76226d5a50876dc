// Package sink implements the outbound transport used to forward scan and
// rootcheck events to an external collector: a Unix domain socket on POSIX,
// a named pipe on Windows.
package sink

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Topic selects which of the two logical message queues a line is written
// to, mirroring syscheckd's separate syscheck/rootcheck queues.
type Topic uint8

const (
	// Syscheck carries file integrity addition/modification/deletion lines.
	Syscheck Topic = iota
	// Rootcheck carries rootkit-task diagnostic lines.
	Rootcheck
)

// conn is a single newline-terminated-line connection, either a dialed
// Unix socket or a dialed named pipe.
type conn struct {
	io.WriteCloser
}

func (c *conn) writeLine(line string) error {
	if _, err := io.WriteString(c, line+"\n"); err != nil {
		return errors.Wrap(err, "unable to write line")
	}
	return nil
}

// Client is a connected sink, holding one connection per topic. It is safe
// for concurrent use, though in practice it is only ever driven by
// the scheduler's single control task.
type Client struct {
	mutex     sync.Mutex
	addresses Addresses
	syscheck  *conn
	rootcheck *conn
}

// Addresses bundles the two addresses (socket paths or pipe names) a
// Client connects to.
type Addresses struct {
	Syscheck  string
	Rootcheck string
}

// Dial connects to both topic endpoints described by addresses.
func Dial(addresses Addresses) (*Client, error) {
	syscheckConn, err := dial(addresses.Syscheck)
	if err != nil {
		return nil, errors.Wrap(err, "unable to dial syscheck sink")
	}
	rootcheckConn, err := dial(addresses.Rootcheck)
	if err != nil {
		syscheckConn.Close()
		return nil, errors.Wrap(err, "unable to dial rootcheck sink")
	}
	return &Client{
		addresses: addresses,
		syscheck:  &conn{syscheckConn},
		rootcheck: &conn{rootcheckConn},
	}, nil
}

// Reconnect closes both existing connections (ignoring any error, since a
// write failure often means one side is already gone) and re-dials both
// endpoints at the addresses originally passed to Dial. It implements the
// queue reconnect policy: a write failure gets exactly one chance to
// re-establish the connection before being treated as fatal.
func (c *Client) Reconnect() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.syscheck.Close()
	c.rootcheck.Close()

	syscheckConn, err := dial(c.addresses.Syscheck)
	if err != nil {
		return errors.Wrap(err, "unable to redial syscheck sink")
	}
	rootcheckConn, err := dial(c.addresses.Rootcheck)
	if err != nil {
		syscheckConn.Close()
		return errors.Wrap(err, "unable to redial rootcheck sink")
	}

	c.syscheck = &conn{syscheckConn}
	c.rootcheck = &conn{rootcheckConn}
	return nil
}

// Write sends line, terminated with a single newline, to the connection
// for the given topic.
func (c *Client) Write(topic Topic, line string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch topic {
	case Syscheck:
		return c.syscheck.writeLine(line)
	case Rootcheck:
		return c.rootcheck.writeLine(line)
	default:
		return errors.Errorf("unknown sink topic: %d", topic)
	}
}

// Close closes both underlying connections, returning the first error
// encountered, if any.
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	syscheckErr := c.syscheck.Close()
	rootcheckErr := c.rootcheck.Close()
	if syscheckErr != nil {
		return syscheckErr
	}
	return rootcheckErr
}
