package sbs

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"planesail/internal/metrics"
	"planesail/internal/track"
)

// ErrWrongKind is returned when the ident already names a non-aircraft track
var ErrWrongKind = errors.New("track is not an aircraft")

// LineWriter receives a copy of every line handled
type LineWriter interface {
	WriteLine(line string) error
}

// Handler merges SBS lines into the track table
type Handler struct {
	table   *track.Table
	source  string
	logger  *logrus.Logger
	metrics *metrics.Collector
	archive LineWriter
	warn    rate.Sometimes
	now     func() time.Time
}

// NewHandler creates a handler. source labels metrics and logs; collector
// may be nil.
func NewHandler(table *track.Table, source string, logger *logrus.Logger, collector *metrics.Collector) *Handler {
	return &Handler{
		table:   table,
		source:  source,
		logger:  logger,
		metrics: collector,
		warn:    rate.Sometimes{First: 5, Interval: 10 * time.Second},
		now:     time.Now,
	}
}

// Source returns the feed label
func (h *Handler) Source() string {
	return h.source
}

// SetArchive records every line to w
func (h *Handler) SetArchive(w LineWriter) {
	h.archive = w
}

// Handle applies a line, logging and counting any error instead of
// returning it so the stream keeps flowing
func (h *Handler) Handle(line string) {
	if h.archive != nil {
		if err := h.archive.WriteLine(line); err != nil {
			h.warn.Do(func() {
				h.logger.WithError(err).WithField("source", h.source).Warn("Failed to archive SBS line")
			})
		}
	}

	if err := h.HandleLine(line); err != nil {
		h.metrics.DecodeError(h.source)
		h.warn.Do(func() {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"source": h.source,
				"line":   line,
			}).Warn("Failed to handle SBS line")
		})
	}
}

// HandleLine parses the whole line before touching the table, so a
// malformed line never leaves a half-applied update behind
func (h *Handler) HandleLine(line string) error {
	msg, err := Parse(line)
	if err != nil {
		return err
	}

	tr, _ := h.table.GetOrCreate(msg.HexIdent, func() *track.Track { return track.NewAircraft(msg.HexIdent) })
	if tr.Kind() != track.KindAircraft {
		return fmt.Errorf("%w: %s is %s", ErrWrongKind, msg.HexIdent, tr.Kind())
	}
	if msg.Type != MessageMSG {
		return nil
	}

	apply(tr, msg, h.now())
	return nil
}

func apply(tr *track.Track, msg *Message, now time.Time) {
	if msg.Callsign != "" {
		tr.SetCallsign(msg.Callsign)
	}
	if msg.Altitude != nil {
		tr.SetAltitude(*msg.Altitude)
	}
	if msg.GroundSpeed != nil {
		tr.SetSpeed(*msg.GroundSpeed)
	}
	if msg.Track != nil {
		tr.SetCourse(*msg.Track)
		tr.SetHeading(*msg.Track)
	}
	if msg.HasPosition() {
		tr.AddPositionAt(*msg.Latitude, *msg.Longitude, now)
	}
	if msg.VerticalRate != nil {
		tr.SetVerticalRate(*msg.VerticalRate)
	}
	if msg.Squawk != nil {
		tr.SetSquawk(*msg.Squawk)
	}
	if msg.IsOnGround != nil {
		tr.SetOnGround(*msg.IsOnGround)
	}
	tr.Touch(now)
}
