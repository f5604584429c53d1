// Package connstate reduces a peer transport's connection status and
// network-path status to one presented status.
package connstate

import (
	"fmt"
	"sync"
)

// Status is the presented state of a peer connection. Larger values are
// worse; when the two signals disagree the worse one wins.
type Status int

const (
	Connected Status = iota
	Connecting
	Disconnected
	Failed
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case Connecting:
		return "connecting"
	case Disconnected:
		return "disconnected"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ConnectionStatus is the transport's overall connection status.
type ConnectionStatus int

const (
	ConnectionNew ConnectionStatus = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnected
	ConnectionFailed
	ConnectionClosed
)

var connectionNames = map[ConnectionStatus]string{
	ConnectionNew:          "new",
	ConnectionConnecting:   "connecting",
	ConnectionConnected:    "connected",
	ConnectionDisconnected: "disconnected",
	ConnectionFailed:       "failed",
	ConnectionClosed:       "closed",
}

func (c ConnectionStatus) String() string {
	if n, ok := connectionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ConnectionStatus(%d)", int(c))
}

// ParseConnectionStatus parses the lower-case status names used by WebRTC
// implementations.
func ParseConnectionStatus(s string) (ConnectionStatus, error) {
	for c, n := range connectionNames {
		if n == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown connection status %q", s)
}

// PathStatus is the network-path (ICE) reachability status.
type PathStatus int

const (
	PathNew PathStatus = iota
	PathChecking
	PathConnected
	PathCompleted
	PathDisconnected
	PathFailed
	PathClosed
)

var pathNames = map[PathStatus]string{
	PathNew:          "new",
	PathChecking:     "checking",
	PathConnected:    "connected",
	PathCompleted:    "completed",
	PathDisconnected: "disconnected",
	PathFailed:       "failed",
	PathClosed:       "closed",
}

func (p PathStatus) String() string {
	if n, ok := pathNames[p]; ok {
		return n
	}
	return fmt.Sprintf("PathStatus(%d)", int(p))
}

// ParsePathStatus parses ICE connection state names.
func ParsePathStatus(s string) (PathStatus, error) {
	for p, n := range pathNames {
		if n == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown path status %q", s)
}

func (c ConnectionStatus) level() Status {
	switch c {
	case ConnectionConnected:
		return Connected
	case ConnectionDisconnected, ConnectionClosed:
		return Disconnected
	case ConnectionFailed:
		return Failed
	}
	return Connecting
}

func (p PathStatus) level() Status {
	switch p {
	case PathConnected, PathCompleted:
		return Connected
	case PathDisconnected, PathClosed:
		return Disconnected
	case PathFailed:
		return Failed
	}
	return Connecting
}

// Present maps the two signals to the worse of their presented states.
func Present(conn ConnectionStatus, path PathStatus) Status {
	return max(conn.level(), path.level())
}

// Tracker remembers the latest value of each signal. It is safe for
// concurrent use.
type Tracker struct {
	mu   sync.Mutex
	conn ConnectionStatus
	path PathStatus
}

// SetConnection records a connection status change and returns the new
// presented status.
func (t *Tracker) SetConnection(c ConnectionStatus) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = c
	return Present(t.conn, t.path)
}

// SetPath records a path status change and returns the new presented status.
func (t *Tracker) SetPath(p PathStatus) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.path = p
	return Present(t.conn, t.path)
}

// Status returns the presented status for the latest signals.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Present(t.conn, t.path)
}

// Signals returns the latest raw values.
func (t *Tracker) Signals() (ConnectionStatus, PathStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn, t.path
}
