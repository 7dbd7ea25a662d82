// Package dump1090 polls the aircraft.json document served by dump1090 and
// its forks and merges each aircraft into the track table.
package dump1090

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"planesail/internal/feed"
	"planesail/internal/metrics"
	"planesail/internal/track"
)

const (
	// DefaultInterval is the time between polls
	DefaultInterval = 5 * time.Second

	Source = "dump1090"
	Name   = "Dump1090 JSON data"

	maxBody = 8 << 20
)

// ErrWrongKind is returned when the hex ident already names a non-aircraft track
var ErrWrongKind = errors.New("track is not an aircraft")

// ReaderConfig configures a Reader
type ReaderConfig struct {
	URL      string
	Interval time.Duration
}

// Reader polls a dump1090 JSON endpoint
type Reader struct {
	config  ReaderConfig
	table   *track.Table
	logger  *logrus.Logger
	metrics *metrics.Collector
	monitor *feed.Monitor
	client  *http.Client
	warn    rate.Sometimes
	now     func() time.Time
}

// NewReader creates a reader. The URL must be absolute; collector may be nil.
func NewReader(config ReaderConfig, table *track.Table, logger *logrus.Logger, collector *metrics.Collector) (*Reader, error) {
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid dump1090 URL %q: %w", config.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid dump1090 URL %q: scheme must be http or https", config.URL)
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}

	timeout := 2 * config.Interval
	return &Reader{
		config:  config,
		table:   table,
		logger:  logger,
		metrics: collector,
		monitor: feed.NewMonitor(Name, timeout),
		client:  &http.Client{Timeout: timeout},
		warn:    rate.Sometimes{First: 5, Interval: 30 * time.Second},
		now:     time.Now,
	}, nil
}

// Monitor returns the liveness monitor for this feed
func (r *Reader) Monitor() *feed.Monitor {
	return r.monitor
}

// Run polls until ctx is cancelled. Poll failures are logged and the loop
// carries on at the next interval.
func (r *Reader) Run(ctx context.Context) error {
	log := r.logger.WithFields(logrus.Fields{
		"source": Source,
		"addr":   r.config.URL,
	})
	log.Infof("Starting %s reader", Name)

	r.monitor.SetConnected(true)
	defer r.monitor.SetConnected(false)

	limiter := rate.NewLimiter(rate.Every(r.config.Interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			log.Infof("%s reader stopped", Name)
			return nil
		}

		if err := r.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				log.Infof("%s reader stopped", Name)
				return nil
			}
			r.metrics.Reconnect(Source)
			log.WithError(err).Warn("Failed to read dump1090 JSON")
		}
	}
}

// Poll fetches the document once and merges every aircraft in it
func (r *Reader) Poll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	r.monitor.Touch()

	now := r.now()
	for _, raw := range doc.Aircraft {
		r.metrics.MessageReceived(Source)
		if err := r.apply(raw, now); err != nil {
			r.metrics.DecodeError(Source)
			r.warn.Do(func() {
				r.logger.WithError(err).WithField("source", Source).Warn("Failed to read aircraft entry")
			})
		}
	}
	return nil
}

// apply merges one aircraft object
func (r *Reader) apply(raw json.RawMessage, now time.Time) error {
	var ac aircraft
	if err := json.Unmarshal(raw, &ac); err != nil {
		return fmt.Errorf("parse aircraft: %w", err)
	}
	id := ac.ident()
	if id == "" {
		return errors.New("missing hex")
	}

	squawk, err := ac.squawk()
	if err != nil {
		return err
	}
	alt, err := ac.altitude()
	if err != nil {
		return err
	}

	tr, _ := r.table.GetOrCreate(id, func() *track.Track { return track.NewAircraft(id) })
	if tr.Kind() != track.KindAircraft {
		return fmt.Errorf("%w: %s is %s", ErrWrongKind, id, tr.Kind())
	}

	if ac.Flight != nil {
		tr.SetCallsign(*ac.Flight)
	}
	if squawk != nil {
		tr.SetSquawk(*squawk)
	}
	if ac.Category != nil {
		tr.SetCategory(*ac.Category)
	}
	if ac.TypeCode != nil {
		tr.SetAircraftType(*ac.TypeCode)
	}

	if ac.Lat != nil && ac.Lon != nil {
		at := now
		if age := firstOf(ac.SeenPos, ac.PosSeen, ac.Seen); age != nil {
			at = ago(now, *age)
		}
		tr.AddPositionAt(*ac.Lat, *ac.Lon, at)
	}

	if alt != nil {
		tr.SetAltitude(alt.feet)
		tr.SetOnGround(alt.ground)
	}
	if v := firstOf(ac.VertRate, ac.BaroRate, ac.GeomRate); v != nil {
		tr.SetVerticalRate(*v)
	}
	if v := firstOf(ac.Track, ac.TrueHeading, ac.MagHeading, ac.NavHeading); v != nil {
		tr.SetCourse(*v)
	}
	if v := firstOf(ac.TrueHeading, ac.MagHeading, ac.NavHeading, ac.Track); v != nil {
		tr.SetHeading(*v)
	}
	if v := ac.speed(); v != nil {
		tr.SetSpeed(*v)
	}

	at := now
	if ac.Seen != nil {
		at = ago(now, *ac.Seen)
	}
	tr.Touch(at)
	return nil
}

func ago(now time.Time, seconds float64) time.Time {
	return now.Add(-time.Duration(seconds * float64(time.Second)))
}
