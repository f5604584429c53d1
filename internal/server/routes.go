package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/BioHazard786/warpcall/internal/relay"
	"github.com/BioHazard786/warpcall/internal/signaling"
	"github.com/BioHazard786/warpcall/internal/version"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the relay's HTTP surface: the websocket endpoint, health
// and banner JSON, and Prometheus metrics from gatherer.
func NewRouter(hub *relay.Hub, cfg *config.ServerConfig, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", ServeWs(hub, cfg))
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /{$}", bannerHandler)
	return mux
}

// ServeWs upgrades the request and hands the connection to hub. The reply
// codec is chosen with ?codec=json|msgpack.
func ServeWs(hub *relay.Hub, cfg *config.ServerConfig) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 4 * 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	timings := relay.TimingsFrom(cfg)

	return func(w http.ResponseWriter, r *http.Request) {
		codec, err := signaling.CodecByName(r.URL.Query().Get("codec"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		conn := relay.NewConn(hub, ws, codec, timings)
		if !hub.Register(conn) {
			ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"))
			ws.Close()
			return
		}

		go conn.WritePump()
		go conn.ReadPump()
	}
}

// originChecker allows every origin when allowed is empty. Requests without
// an Origin header come from non-browser clients and are always accepted.
func originChecker(allowed []string) func(*http.Request) bool {
	normalized := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			normalized = append(normalized, strings.ToLower(o))
		}
	}

	return func(r *http.Request) bool {
		if len(normalized) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(normalized, strings.ToLower(strings.TrimRight(origin, "/")))
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type bannerResponse struct {
	Message   string `json:"message"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{Status: "OK", Timestamp: timestamp()})
}

func bannerHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, bannerResponse{
		Message:   "warpcall signaling relay",
		Version:   version.Version,
		Timestamp: timestamp(),
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}
