package dump1090

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// machToKnots converts Mach number to knots at standard sea level
const machToKnots = 666.739

// document is the top level of aircraft.json. Aircraft are kept raw so one
// bad entry does not spoil the rest.
type document struct {
	Now      float64           `json:"now"`
	Aircraft []json.RawMessage `json:"aircraft"`
}

// aircraft is the subset of an aircraft.json entry we merge
type aircraft struct {
	Hex      string          `json:"hex"`
	Flight   *string         `json:"flight"`
	Squawk   json.RawMessage `json:"squawk"`
	Category *string         `json:"category"`
	// TypeCode is the ICAO type designator readsb adds from its aircraft database
	TypeCode *string `json:"t"`

	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	SeenPos *float64 `json:"seen_pos"`
	PosSeen *float64 `json:"pos_seen"`
	Seen    *float64 `json:"seen"`

	Altitude       json.RawMessage `json:"altitude"`
	AltBaro        json.RawMessage `json:"alt_baro"`
	AltGeom        json.RawMessage `json:"alt_geom"`
	NavAltitudeMCP json.RawMessage `json:"nav_altitude_mcp"`

	VertRate *float64 `json:"vert_rate"`
	BaroRate *float64 `json:"baro_rate"`
	GeomRate *float64 `json:"geom_rate"`

	Track       *float64 `json:"track"`
	TrueHeading *float64 `json:"true_heading"`
	MagHeading  *float64 `json:"mag_heading"`
	NavHeading  *float64 `json:"nav_heading"`

	GS   *float64 `json:"gs"`
	TAS  *float64 `json:"tas"`
	IAS  *float64 `json:"ias"`
	Mach *float64 `json:"mach"`
}

type altitude struct {
	feet   float64
	ground bool
}

// ident returns the normalized hex ident. dump1090 prefixes non-ICAO
// addresses with '~'.
func (a *aircraft) ident() string {
	return strings.ToUpper(strings.TrimSpace(a.Hex))
}

// squawk accepts the code as a JSON string or number
func (a *aircraft) squawk() (*int, error) {
	if absent(a.Squawk) {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(a.Squawk, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("squawk %q: %w", s, err)
		}
		return &n, nil
	}

	var n int
	if err := json.Unmarshal(a.Squawk, &n); err != nil {
		return nil, fmt.Errorf("squawk: %w", err)
	}
	return &n, nil
}

// altitude returns the first altitude field present. The string "ground"
// means the aircraft is on the surface.
func (a *aircraft) altitude() (*altitude, error) {
	fields := []struct {
		name string
		raw  json.RawMessage
	}{
		{"altitude", a.Altitude},
		{"alt_baro", a.AltBaro},
		{"alt_geom", a.AltGeom},
		{"nav_altitude_mcp", a.NavAltitudeMCP},
	}

	for _, f := range fields {
		if absent(f.raw) {
			continue
		}

		var s string
		if err := json.Unmarshal(f.raw, &s); err == nil {
			if s == "ground" {
				return &altitude{feet: 0, ground: true}, nil
			}
			return nil, fmt.Errorf("%s: unexpected value %q", f.name, s)
		}

		var v float64
		if err := json.Unmarshal(f.raw, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		return &altitude{feet: v}, nil
	}
	return nil, nil
}

// speed returns the first speed present, converting Mach to knots
func (a *aircraft) speed() *float64 {
	if v := firstOf(a.GS, a.TAS, a.IAS); v != nil {
		return v
	}
	if a.Mach != nil {
		v := *a.Mach * machToKnots
		return &v
	}
	return nil
}

func firstOf(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func absent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
