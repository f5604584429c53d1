package signaling_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/BioHazard786/warpcall/internal/relay"
	"github.com/BioHazard786/warpcall/internal/room"
	"github.com/BioHazard786/warpcall/internal/server"
	"github.com/BioHazard786/warpcall/internal/signaling"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T) string {
	t.Helper()
	cfg := &config.ServerConfig{
		Port:           8080,
		PingPeriod:     54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
	reg := prometheus.NewRegistry()
	hub := relay.NewHub(room.NewRegistry(), relay.NewMetrics(reg))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(server.NewRouter(hub, cfg, reg))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func connect(t *testing.T, url string, codec signaling.Codec) (*signaling.Client, *signaling.Handler, string) {
	t.Helper()
	client := signaling.NewClient(url, codec)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(client.Close)

	handler := signaling.NewHandler(client)
	go handler.Start()

	welcome, ok := next(t, handler).(signaling.Welcome)
	require.True(t, ok)
	require.NotEmpty(t, welcome.ID)
	return client, handler, welcome.ID
}

func next(t *testing.T, h *signaling.Handler) signaling.Event {
	t.Helper()
	select {
	case ev, ok := <-h.Events():
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestClientCallFlow(t *testing.T) {
	url := startRelay(t)
	alice, aliceEvents, aliceID := connect(t, url, signaling.JSONCodec{})
	bob, bobEvents, bobID := connect(t, url, signaling.MsgpackCodec{})

	require.NoError(t, alice.SendMessage(&signaling.Message{Type: signaling.MessageTypeJoin, RoomID: "abc123"}))
	members := next(t, aliceEvents).(signaling.Members)
	assert.Equal(t, "ABC123", members.RoomID)
	assert.Empty(t, members.Members)

	require.NoError(t, bob.SendMessage(&signaling.Message{Type: signaling.MessageTypeJoin, RoomID: "abc123"}))
	members = next(t, bobEvents).(signaling.Members)
	assert.Equal(t, []string{aliceID}, members.Members)
	assert.Equal(t, signaling.PeerJoined{RoomID: "ABC123", ID: bobID}, next(t, aliceEvents))

	offer, err := signaling.NewMessage(signaling.MessageTypeOffer, signaling.SessionDescription{Type: "offer", SDP: "v=0"})
	require.NoError(t, err)
	offer.To = bobID
	require.NoError(t, alice.SendMessage(offer))

	sig := next(t, bobEvents).(signaling.Signal)
	assert.Equal(t, signaling.MessageTypeOffer, sig.Type)
	assert.Equal(t, aliceID, sig.From)
	var desc signaling.SessionDescription
	require.NoError(t, json.Unmarshal(sig.Payload, &desc))
	assert.Equal(t, "v=0", desc.SDP)

	off := false
	state, err := signaling.NewMessage(signaling.MessageTypeMediaState, signaling.MediaStatePayload{Audio: &off})
	require.NoError(t, err)
	require.NoError(t, bob.SendMessage(state))
	ms := next(t, aliceEvents).(signaling.MediaState)
	assert.Equal(t, bobID, ms.From)
	require.NotNil(t, ms.Audio)
	assert.False(t, *ms.Audio)
	assert.Nil(t, ms.Video)

	require.NoError(t, bob.SendMessage(&signaling.Message{Type: signaling.MessageTypeOffer, RoomID: "elsewhere", Payload: json.RawMessage(`{}`)}))
	_, isErr := next(t, bobEvents).(signaling.ServerError)
	assert.True(t, isErr)

	bob.Close()
	assert.Equal(t, signaling.PeerLeft{RoomID: "ABC123", ID: bobID}, next(t, aliceEvents))

	dc := next(t, bobEvents).(signaling.Disconnected)
	assert.NoError(t, dc.Err)
	assert.ErrorIs(t, bob.SendMessage(&signaling.Message{Type: signaling.MessageTypeLeave}), signaling.ErrTransportFailure)
}

func TestClientReportsDroppedConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "msgpack", r.URL.Query().Get("codec"))
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		welcome, _ := signaling.NewMessage(signaling.MessageTypeWelcome, signaling.WelcomePayload{ID: "me"})
		data, _ := signaling.MsgpackCodec{}.Encode(welcome)
		ws.WriteMessage(websocket.BinaryMessage, data)
		ws.Close()
	}))
	defer srv.Close()

	client := signaling.NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), signaling.MsgpackCodec{})
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	handler := signaling.NewHandler(client)
	go handler.Start()

	assert.Equal(t, signaling.Welcome{ID: "me"}, next(t, handler))
	dc := next(t, handler).(signaling.Disconnected)
	assert.ErrorIs(t, dc.Err, signaling.ErrTransportFailure)

	_, open := <-handler.Events()
	assert.False(t, open)
	assert.ErrorIs(t, client.SendMessage(&signaling.Message{Type: signaling.MessageTypeLeave}), signaling.ErrTransportFailure)
}

func TestConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	err := signaling.NewClient(url, nil).Connect(context.Background())
	assert.ErrorIs(t, err, signaling.ErrTransportFailure)
}
