package transport

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess   = "success"
	outcomeFailure   = "failure"
	outcomeSkipped   = "skipped"
	outcomeDiscarded = "discarded"
)

// Metrics counts refresh attempts and replays
type Metrics struct {
	refreshes *prometheus.CounterVec
	replays   *prometheus.CounterVec
	joined    prometheus.Counter
}

func (m *Metrics) refreshed(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) shared() {
	if m == nil {
		return
	}
	m.joined.Inc()
}

func (m *Metrics) replayed(statusCode int) {
	if m == nil {
		return
	}
	m.replays.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// NewMetrics creates metrics registered with registerer
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	ret := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authsession",
			Name:      "refresh_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authsession",
			Name:      "replay_total",
			Help:      "Requests replayed after refresh by response code.",
		}, []string{"code"}),
		joined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authsession",
			Name:      "refresh_joined_total",
			Help:      "Refresh results delivered to callers sharing one refresh in flight.",
		}),
	}
	for _, collector := range []prometheus.Collector{ret.refreshes, ret.replays, ret.joined} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return ret, nil
}
