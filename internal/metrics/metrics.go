// Package metrics exposes ingestion counters and track gauges to Prometheus.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics for the ingestion pipeline. A nil
// *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Messages     *prometheus.CounterVec
	DecodeErrors *prometheus.CounterVec
	Reconnects   *prometheus.CounterVec
	UDPDropped   prometheus.Counter
	Tracks       *prometheus.GaugeVec
	FeedOnline   *prometheus.GaugeVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	messages, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planesail_messages_total",
		Help: "Units of input accepted, labeled by feed.",
	}, []string{"source"}), "planesail_messages_total")
	if err != nil {
		return nil, err
	}

	decodeErrors, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planesail_decode_errors_total",
		Help: "Units of input discarded as malformed, labeled by feed.",
	}, []string{"source"}), "planesail_decode_errors_total")
	if err != nil {
		return nil, err
	}

	reconnects, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planesail_reconnects_total",
		Help: "Connection attempts after a failure, labeled by feed.",
	}, []string{"source"}), "planesail_reconnects_total")
	if err != nil {
		return nil, err
	}

	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planesail_udp_dropped_total",
		Help: "AIS datagrams dropped because the decode queue was full.",
	})
	if err := reg.Register(dropped); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(prometheus.Counter)
		if !ok {
			return nil, fmt.Errorf("collector planesail_udp_dropped_total already registered with incompatible type")
		}
		dropped = existing
	}

	tracks, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planesail_tracks",
		Help: "Current number of tracks, labeled by track type.",
	}, []string{"type"}), "planesail_tracks")
	if err != nil {
		return nil, err
	}

	online, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planesail_feed_online",
		Help: "1 when the feed delivered data within its timeout, 0 otherwise.",
	}, []string{"source"}), "planesail_feed_online")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:     gatherer,
		Messages:     messages,
		DecodeErrors: decodeErrors,
		Reconnects:   reconnects,
		UDPDropped:   dropped,
		Tracks:       tracks,
		FeedOnline:   online,
	}, nil
}

// MessageReceived counts one accepted unit of input
func (c *Collector) MessageReceived(source string) {
	if c == nil {
		return
	}
	c.Messages.WithLabelValues(source).Inc()
}

// DecodeError counts one discarded unit of input
func (c *Collector) DecodeError(source string) {
	if c == nil {
		return
	}
	c.DecodeErrors.WithLabelValues(source).Inc()
}

// Reconnect counts one reconnection attempt
func (c *Collector) Reconnect(source string) {
	if c == nil {
		return
	}
	c.Reconnects.WithLabelValues(source).Inc()
}

// DatagramDropped counts one datagram lost to a full queue
func (c *Collector) DatagramDropped() {
	if c == nil {
		return
	}
	c.UDPDropped.Inc()
}

// SetTrackCounts replaces the per-type track gauges. Types absent from
// counts are reset to zero.
func (c *Collector) SetTrackCounts(counts map[string]int) {
	if c == nil {
		return
	}
	c.Tracks.Reset()
	for t, n := range counts {
		c.Tracks.WithLabelValues(t).Set(float64(n))
	}
}

// SetFeedOnline records whether a feed is currently delivering data
func (c *Collector) SetFeedOnline(source string, online bool) {
	if c == nil {
		return
	}
	v := 0.0
	if online {
		v = 1
	}
	c.FeedOnline.WithLabelValues(source).Set(v)
}

// Handler exposes a ready-to-use /metrics handler
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
