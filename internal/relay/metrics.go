package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons for warpcall_messages_rejected_total.
const (
	RejectNotInRoom     = "not_in_room"
	RejectRoomMismatch  = "room_mismatch"
	RejectNoRecipient   = "no_recipient"
	RejectBadFrame      = "bad_frame"
	RejectBadPayload    = "bad_payload"
	RejectUnknownType   = "unknown_type"
	RejectMissingRoomID = "missing_room_id"
	RejectSlowConsumer  = "slow_consumer"
)

// Metrics exports relay activity to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	roomsActive           prometheus.Gauge
	participantsConnected prometheus.Gauge
	joins                 prometheus.Counter
	relayed               *prometheus.CounterVec
	rejected              *prometheus.CounterVec
}

// NewMetrics registers the relay collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		roomsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "warpcall_rooms_active",
			Help: "Rooms with at least one member.",
		}),
		participantsConnected: f.NewGauge(prometheus.GaugeOpts{
			Name: "warpcall_participants_connected",
			Help: "Open signaling channels.",
		}),
		joins: f.NewCounter(prometheus.CounterOpts{
			Name: "warpcall_joins_total",
			Help: "Successful room joins.",
		}),
		relayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warpcall_messages_relayed_total",
			Help: "Messages forwarded to at least one member, by type.",
		}, []string{"type"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warpcall_messages_rejected_total",
			Help: "Inbound messages answered with an error, by reason.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) setRooms(n int) {
	if m != nil {
		m.roomsActive.Set(float64(n))
	}
}

func (m *Metrics) connected(delta float64) {
	if m != nil {
		m.participantsConnected.Add(delta)
	}
}

func (m *Metrics) joined() {
	if m != nil {
		m.joins.Inc()
	}
}

func (m *Metrics) relayedMessage(msgType string) {
	if m != nil {
		m.relayed.WithLabelValues(msgType).Inc()
	}
}

func (m *Metrics) rejectedMessage(reason string) {
	if m != nil {
		m.rejected.WithLabelValues(reason).Inc()
	}
}
