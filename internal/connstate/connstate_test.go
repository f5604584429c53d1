package connstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresent(t *testing.T) {
	tests := []struct {
		name string
		conn ConnectionStatus
		path PathStatus
		want Status
	}{
		{"both connected", ConnectionConnected, PathConnected, Connected},
		{"ice completed", ConnectionConnected, PathCompleted, Connected},
		{"fresh", ConnectionNew, PathNew, Connecting},
		{"checking", ConnectionConnected, PathChecking, Connecting},
		{"connecting", ConnectionConnecting, PathConnected, Connecting},
		{"path lost", ConnectionConnected, PathDisconnected, Disconnected},
		{"disconnected beats connecting", ConnectionDisconnected, PathChecking, Disconnected},
		{"closed", ConnectionClosed, PathClosed, Disconnected},
		{"failed beats disconnected", ConnectionDisconnected, PathFailed, Failed},
		{"failed beats connected", ConnectionFailed, PathConnected, Failed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Present(tt.conn, tt.path))
		})
	}
}

func TestPresentReportsWorstSignal(t *testing.T) {
	// Every pairing reports the worse of its two inputs taken alone.
	for c := ConnectionNew; c <= ConnectionClosed; c++ {
		for p := PathNew; p <= PathClosed; p++ {
			got := Present(c, p)
			assert.GreaterOrEqual(t, got, Present(c, PathConnected), "%s/%s", c, p)
			assert.GreaterOrEqual(t, got, Present(ConnectionConnected, p), "%s/%s", c, p)
		}
	}
}

func TestTracker(t *testing.T) {
	var tr Tracker
	assert.Equal(t, Connecting, tr.Status())

	assert.Equal(t, Connecting, tr.SetPath(PathChecking))
	assert.Equal(t, Connecting, tr.SetConnection(ConnectionConnected))
	assert.Equal(t, Connected, tr.SetPath(PathConnected))
	assert.Equal(t, Disconnected, tr.SetPath(PathDisconnected))
	assert.Equal(t, Failed, tr.SetConnection(ConnectionFailed))

	conn, path := tr.Signals()
	assert.Equal(t, ConnectionFailed, conn)
	assert.Equal(t, PathDisconnected, path)
}

func TestParse(t *testing.T) {
	c, err := ParseConnectionStatus("disconnected")
	require.NoError(t, err)
	assert.Equal(t, ConnectionDisconnected, c)

	p, err := ParsePathStatus("completed")
	require.NoError(t, err)
	assert.Equal(t, PathCompleted, p)

	_, err = ParseConnectionStatus("checking")
	assert.Error(t, err)
	_, err = ParsePathStatus("bogus")
	assert.Error(t, err)

	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "checking", PathChecking.String())
}
