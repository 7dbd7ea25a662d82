package track

import (
	"strings"
	"sync"
	"time"
)

// Retention windows for position history, per kind
const (
	AircraftRetention = 30 * time.Minute
	ShipRetention     = 3 * time.Hour
	APRSRetention     = 1 * time.Hour
)

// Track is a single addressable entity built up from partial reports.
//
// Every optional field is only ever written when a report carries a valid
// value for it; absence in a report never clears what is already known.
// A Track is safe for concurrent use.
type Track struct {
	mu sync.RWMutex

	id        string
	kind      Kind
	trackType Type
	symbol    string

	name         string
	callsign     string
	destination  string
	category     string
	aircraftType string
	icaoCode     string

	shipType     *int
	course       *float64
	heading      *float64
	speed        *float64
	altitude     *float64
	verticalRate *float64
	squawk       *int
	navStatus    *int
	onGround     *bool

	fixed           bool
	shoreStation    bool
	createdByConfig bool

	history        PositionHistory
	lastUpdate     time.Time
	metadataUpdate time.Time
}

func newTrack(id string, kind Kind, t Type, retention time.Duration) *Track {
	return &Track{
		id:         id,
		kind:       kind,
		trackType:  t,
		symbol:     DefaultSymbol(t),
		history:    NewPositionHistory(retention),
		lastUpdate: time.Now(),
	}
}

// NewAircraft creates an aircraft track keyed by ICAO hex
func NewAircraft(icao string) *Track {
	return newTrack(icao, KindAircraft, TypeAircraft, AircraftRetention)
}

// NewShip creates an AIS track keyed by MMSI. Every AIS source starts out as a
// generic ship until a later report says otherwise.
func NewShip(mmsi string) *Track {
	return newTrack(mmsi, KindShip, TypeShip, ShipRetention)
}

// NewAPRSTrack creates an APRS track keyed by callsign
func NewAPRSTrack(callsign string) *Track {
	t := newTrack(callsign, KindAPRS, TypeAPRSTrack, APRSRetention)
	t.callsign = callsign
	return t
}

// NewAirport creates a configured, fixed airport track
func NewAirport(id, name, icaoCode string, lat, lon float64) *Track {
	t := newTrack(id, KindAirport, TypeAirport, 0)
	t.name = name
	t.icaoCode = icaoCode
	t.fixed = true
	t.createdByConfig = true
	t.history.Add(Position{Latitude: lat, Longitude: lon, Time: time.Now()})
	return t
}

// NewBaseStation creates a configured, fixed receiver site track
func NewBaseStation(id, name string, lat, lon float64) *Track {
	t := newTrack(id, KindBaseStation, TypeBaseStation, 0)
	t.name = name
	t.fixed = true
	t.createdByConfig = true
	t.history.Add(Position{Latitude: lat, Longitude: lon, Time: time.Now()})
	return t
}

// ID returns the immutable track identifier
func (t *Track) ID() string {
	return t.id
}

// Kind returns the variant the track was created as
func (t *Track) Kind() Kind {
	return t.kind
}

// Type returns the current classification
func (t *Track) Type() Type {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.trackType
}

// SetType reclassifies the track. The symbol code follows the new type.
func (t *Track) SetType(tt Type) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trackType == tt {
		return
	}
	t.trackType = tt
	t.symbol = DefaultSymbol(tt)
}

func (t *Track) setString(dst *string, v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	t.mu.Lock()
	*dst = v
	t.mu.Unlock()
}

// SetName sets the display name. Blank names are ignored.
func (t *Track) SetName(v string) { t.setString(&t.name, v) }

// SetCallsign sets the callsign. Blank callsigns are ignored.
func (t *Track) SetCallsign(v string) { t.setString(&t.callsign, v) }

// SetDestination sets the reported destination. Blank values are ignored.
func (t *Track) SetDestination(v string) { t.setString(&t.destination, v) }

// SetCategory sets the ADS-B emitter category, e.g. "A3"
func (t *Track) SetCategory(v string) { t.setString(&t.category, v) }

// SetAircraftType sets the short ICAO aircraft type designator
func (t *Track) SetAircraftType(v string) { t.setString(&t.aircraftType, v) }

func (t *Track) setFloat(dst **float64, v float64) {
	t.mu.Lock()
	*dst = &v
	t.mu.Unlock()
}

func (t *Track) setInt(dst **int, v int) {
	t.mu.Lock()
	*dst = &v
	t.mu.Unlock()
}

// SetCourse sets course over ground in degrees
func (t *Track) SetCourse(v float64) { t.setFloat(&t.course, v) }

// SetHeading sets heading in degrees
func (t *Track) SetHeading(v float64) { t.setFloat(&t.heading, v) }

// SetSpeed sets speed in knots
func (t *Track) SetSpeed(v float64) { t.setFloat(&t.speed, v) }

// SetAltitude sets altitude in feet
func (t *Track) SetAltitude(v float64) { t.setFloat(&t.altitude, v) }

// SetVerticalRate sets vertical rate in feet per minute
func (t *Track) SetVerticalRate(v float64) { t.setFloat(&t.verticalRate, v) }

// SetSquawk sets the transponder code
func (t *Track) SetSquawk(v int) { t.setInt(&t.squawk, v) }

// SetNavStatus sets the AIS navigational status
func (t *Track) SetNavStatus(v int) { t.setInt(&t.navStatus, v) }

// SetShipType sets the AIS ship and cargo type
func (t *Track) SetShipType(v int) { t.setInt(&t.shipType, v) }

// SetOnGround sets the on-ground flag
func (t *Track) SetOnGround(v bool) {
	t.mu.Lock()
	t.onGround = &v
	t.mu.Unlock()
}

// SetShoreStation flags the track as an AIS base station
func (t *Track) SetShoreStation(v bool) {
	t.mu.Lock()
	t.shoreStation = v
	t.mu.Unlock()
}

// MarkFixed flags the track as stationary. It cannot be cleared.
func (t *Track) MarkFixed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fixed {
		return
	}
	t.fixed = true
	if latest, ok := t.history.Latest(); ok {
		t.history.Reset()
		t.history.Add(latest)
	}
}

// Fixed reports whether the track is stationary
func (t *Track) Fixed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fixed
}

// CreatedByConfig reports whether the track came from static configuration
func (t *Track) CreatedByConfig() bool {
	return t.createdByConfig
}

// AddPosition appends a sample stamped with the current time
func (t *Track) AddPosition(lat, lon float64) bool {
	return t.AddPositionAt(lat, lon, time.Now())
}

// AddPositionAt inserts a sample at the given time. Out-of-range
// coordinates are rejected. A fixed track keeps only its newest sample.
func (t *Track) AddPositionAt(lat, lon float64, at time.Time) bool {
	if !ValidCoordinates(lat, lon) {
		return false
	}

	p := Position{Latitude: lat, Longitude: lon, Time: at}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fixed {
		if latest, ok := t.history.Latest(); ok && at.Before(latest.Time) {
			return false
		}
		t.history.Reset()
	}
	t.history.Add(p)
	if at.After(t.lastUpdate) {
		t.lastUpdate = at
	}
	return true
}

// Touch records a successful merge at the given time
func (t *Track) Touch(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metadataUpdate = at
	if at.After(t.lastUpdate) {
		t.lastUpdate = at
	}
}

// LastUpdate returns the time of the most recent merge or position
func (t *Track) LastUpdate() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastUpdate
}

// Prune drops history samples outside the retention window
func (t *Track) Prune(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fixed {
		return 0
	}
	return t.history.Prune(now)
}

// View returns a copy of the track state safe to hand to exporters
func (t *Track) View() View {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v := View{
		ID:              t.id,
		Kind:            t.kind,
		Type:            t.trackType,
		Symbol:          t.symbol,
		Name:            t.name,
		Callsign:        t.callsign,
		Destination:     t.destination,
		Category:        t.category,
		AircraftType:    t.aircraftType,
		ICAOCode:        t.icaoCode,
		ShipType:        copyInt(t.shipType),
		Course:          copyFloat(t.course),
		Heading:         copyFloat(t.heading),
		Speed:           copyFloat(t.speed),
		Altitude:        copyFloat(t.altitude),
		VerticalRate:    copyFloat(t.verticalRate),
		Squawk:          copyInt(t.squawk),
		NavStatus:       copyInt(t.navStatus),
		Fixed:           t.fixed,
		ShoreStation:    t.shoreStation,
		CreatedByConfig: t.createdByConfig,
		History:         t.history.Samples(),
		LastUpdate:      t.lastUpdate,
		MetadataUpdate:  t.metadataUpdate,
	}
	if t.onGround != nil {
		g := *t.onGround
		v.OnGround = &g
	}
	if latest, ok := t.history.Latest(); ok {
		v.Position = &latest
	}
	return v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
