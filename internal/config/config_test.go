package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultServer, cfg.Server)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WebSocketURL)
	assert.Equal(t, []string{DefaultSTUN}, cfg.GetSTUNServers())
	assert.Nil(t, cfg.GetTURNServers())
	assert.Equal(t, DefaultCodec, cfg.Codec)
	assert.False(t, cfg.ForceRelay)
}

func TestLoadPriority(t *testing.T) {
	t.Setenv("WARPCALL_SERVER", "relay.example.com")
	t.Setenv("STUN_SERVER", "stun:env.example.com:3478")
	t.Setenv("WARPCALL_CODEC", "msgpack")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "wss://relay.example.com/ws", cfg.WebSocketURL)
	assert.Equal(t, "stun:env.example.com:3478", cfg.STUNServer)
	assert.Equal(t, "msgpack", cfg.Codec)

	cfg, err = Load(Options{Server: "http://127.0.0.1:9000", STUNServer: "stun:flag:1", Codec: "JSON"})
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9000/ws", cfg.WebSocketURL)
	assert.Equal(t, "stun:flag:1", cfg.STUNServer)
	assert.Equal(t, "json", cfg.Codec)
}

func TestLoadRejectsUnknownCodec(t *testing.T) {
	_, err := Load(Options{Codec: "xml"})
	require.ErrorIs(t, err, ErrInvalidCodec)
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "relay.example.com", want: "wss://relay.example.com/ws"},
		{in: "https://relay.example.com", want: "wss://relay.example.com/ws"},
		{in: "ws://localhost:8080/ws", want: "ws://localhost:8080/ws"},
		{in: "wss://relay.example.com/custom", want: "wss://relay.example.com/custom"},
		{in: "", wantErr: true},
		{in: "ftp://relay.example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := WebSocketURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTURNServers(t *testing.T) {
	cfg, err := Load(Options{TURNServer: "turn:turn.example.com", TURNUser: "u", TURNPass: "p"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"turn:turn.example.com:3478?transport=udp",
		"turn:turn.example.com:3478?transport=tcp",
		"turns:turn.example.com:5349?transport=tcp",
	}, cfg.GetTURNServers())

	user, pass := cfg.GetTURNCredentials()
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}

func TestGetRoomLink(t *testing.T) {
	cfg, err := Load(Options{Server: "ws://localhost:8080"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/room/ABC123", cfg.GetRoomLink("ABC123"))
}

func TestLoadServer(t *testing.T) {
	cfg, err := LoadServer(ServerOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Equal(t, int64(64*1024), cfg.MaxMessageSize)
	assert.Equal(t, ":8080", cfg.Addr())

	t.Setenv("PORT", "3001")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	cfg, err = LoadServer(ServerOptions{MDNSEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.MDNSEnabled)

	cfg, err = LoadServer(ServerOptions{Port: 9000})
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoadServerRejectsPingAfterPong(t *testing.T) {
	t.Setenv("PING_PERIOD", "2m")
	_, err := LoadServer(ServerOptions{})
	assert.Error(t, err)
}
