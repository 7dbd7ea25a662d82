// Package ais ingests AIS NMEA sentences received over UDP and merges the
// decoded reports into the track table.
package ais

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	aislib "github.com/BertoldVdb/go-ais"
	"github.com/sirupsen/logrus"

	"planesail/internal/track"
)

// ErrWrongKind is returned when an MMSI is already held by a non-AIS track
var ErrWrongKind = errors.New("identifier belongs to a non-AIS track")

// "Not available" encodings as they appear after decoding
const (
	headingNotAvailable  = 511
	courseNotAvailable   = 360.0 // 3600 in tenths of a degree
	speedNotAvailable    = 102.3 // 1023 in tenths of a knot
	tenthTolerance       = 0.05
	longRangeSpeedNA     = 63
	longRangeCourseNA    = 511
	shipTypeNotAvailable = 0
)

// Handler applies decoded AIS reports to the track table
type Handler struct {
	table  *track.Table
	logger *logrus.Logger
	now    func() time.Time
}

// NewHandler creates a handler writing into table
func NewHandler(table *track.Table, logger *logrus.Logger) *Handler {
	return &Handler{
		table:  table,
		logger: logger,
		now:    time.Now,
	}
}

// HandlePacket merges one decoded report. Report types that carry nothing of
// interest are ignored without error.
func (h *Handler) HandlePacket(p aislib.Packet) error {
	if p == nil {
		return nil
	}
	header := p.GetHeader()
	if header == nil {
		return nil
	}

	id := strconv.FormatUint(uint64(header.UserID), 10)
	tr, created := h.table.GetOrCreate(id, func() *track.Track {
		return track.NewShip(id)
	})
	if tr.Kind() != track.KindShip {
		return fmt.Errorf("mmsi %s: %w", id, ErrWrongKind)
	}
	if created {
		h.logger.WithFields(logrus.Fields{
			"id":         id,
			"message_id": header.MessageID,
		}).Debug("New AIS track")
	}

	now := h.now()

	switch m := p.(type) {
	case aislib.AidsToNavigationReport:
		tr.SetName(cleanText(m.Name) + cleanText(m.NameExtension))
		tr.AddPositionAt(float64(m.Latitude), float64(m.Longitude), now)
		tr.SetType(track.TypeAISATON)
		tr.MarkFixed()

	case aislib.BaseStationReport:
		tr.SetShoreStation(true)
		tr.AddPositionAt(float64(m.Latitude), float64(m.Longitude), now)
		tr.SetType(track.TypeAISShoreStation)
		tr.MarkFixed()

	case aislib.StaticDataReport:
		if !m.PartNumber {
			tr.SetName(cleanText(m.ReportA.Name))
		} else {
			tr.SetCallsign(cleanText(m.ReportB.CallSign))
			setShipType(tr, m.ReportB.ShipType)
		}
		tr.SetType(track.TypeShip)

	case aislib.ExtendedClassBPositionReport:
		tr.SetName(cleanText(m.Name))
		tr.AddPositionAt(float64(m.Latitude), float64(m.Longitude), now)
		setCourse(tr, float64(m.Cog))
		setHeading(tr, m.TrueHeading)
		setSpeed(tr, float64(m.Sog))
		setShipType(tr, m.Type)
		tr.SetType(track.TypeShip)

	case aislib.LongRangeAisBroadcastMessage:
		tr.AddPositionAt(float64(m.Latitude), float64(m.Longitude), now)
		if m.Cog != longRangeCourseNA && m.Cog < 360 {
			tr.SetCourse(float64(m.Cog))
		}
		if m.Sog != longRangeSpeedNA {
			tr.SetSpeed(float64(m.Sog))
		}
		tr.SetNavStatus(int(m.NavigationalStatus))
		tr.SetType(track.TypeShip)

	case aislib.PositionReport:
		tr.AddPositionAt(float64(m.Latitude), float64(m.Longitude), now)
		setCourse(tr, float64(m.Cog))
		setHeading(tr, m.TrueHeading)
		setSpeed(tr, float64(m.Sog))
		tr.SetNavStatus(int(m.NavigationalStatus))
		tr.SetType(track.TypeShip)

	case aislib.ShipStaticData:
		tr.SetName(cleanText(m.Name))
		tr.SetCallsign(cleanText(m.CallSign))
		setShipType(tr, m.Type)
		tr.SetDestination(cleanText(m.Destination))
		tr.SetType(track.TypeShip)

	case aislib.StandardClassBPositionReport:
		tr.AddPositionAt(float64(m.Latitude), float64(m.Longitude), now)
		setCourse(tr, float64(m.Cog))
		setHeading(tr, m.TrueHeading)
		setSpeed(tr, float64(m.Sog))
		tr.SetType(track.TypeShip)

	default:
		return nil
	}

	tr.Touch(now)
	return nil
}

func setCourse(tr *track.Track, cog float64) {
	if cog > courseNotAvailable-tenthTolerance || cog < 0 {
		return
	}
	tr.SetCourse(cog)
}

func setHeading(tr *track.Track, heading uint16) {
	if heading == headingNotAvailable {
		return
	}
	tr.SetHeading(float64(heading))
}

func setSpeed(tr *track.Track, sog float64) {
	if sog > speedNotAvailable-tenthTolerance {
		return
	}
	tr.SetSpeed(sog)
}

func setShipType(tr *track.Track, shipType uint8) {
	if shipType == shipTypeNotAvailable {
		return
	}
	tr.SetShipType(int(shipType))
}

// cleanText strips the '@' padding of AIS six-bit strings
func cleanText(s string) string {
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
