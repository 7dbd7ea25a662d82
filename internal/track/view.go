package track

import (
	"strconv"
	"time"

	"planesail/internal/lookup"
)

// View is a read-only snapshot of a track
type View struct {
	ID              string     `json:"id"`
	Kind            Kind       `json:"kind"`
	Type            Type       `json:"type"`
	Symbol          string     `json:"symbol"`
	Name            string     `json:"name,omitempty"`
	Callsign        string     `json:"callsign,omitempty"`
	Destination     string     `json:"destination,omitempty"`
	Category        string     `json:"category,omitempty"`
	AircraftType    string     `json:"aircraftType,omitempty"`
	ICAOCode        string     `json:"icaoCode,omitempty"`
	ShipType        *int       `json:"shipType,omitempty"`
	Course          *float64   `json:"course,omitempty"`
	Heading         *float64   `json:"heading,omitempty"`
	Speed           *float64   `json:"speed,omitempty"`
	Altitude        *float64   `json:"altitude,omitempty"`
	VerticalRate    *float64   `json:"verticalRate,omitempty"`
	Squawk          *int       `json:"squawk,omitempty"`
	NavStatus       *int       `json:"navStatus,omitempty"`
	OnGround        *bool      `json:"onGround,omitempty"`
	Fixed           bool       `json:"fixed"`
	ShoreStation    bool       `json:"shoreStation,omitempty"`
	CreatedByConfig bool       `json:"createdByConfig,omitempty"`
	Position        *Position  `json:"position,omitempty"`
	History         []Position `json:"history,omitempty"`
	LastUpdate      time.Time  `json:"lastUpdate"`
	MetadataUpdate  time.Time  `json:"metadataUpdate"`
}

// Display is the enrichment an exporter shows next to a track
type Display struct {
	Symbol string `json:"symbol"`
	Line1  string `json:"line1,omitempty"`
	Line2  string `json:"line2,omitempty"`
}

// Display derives the symbol and description lines for the view. A nil
// tables value falls back to the track's own data.
func (v View) Display(tables *lookup.Tables) Display {
	d := Display{Symbol: v.Symbol}

	switch v.Kind {
	case KindAircraft:
		airline := airlineCode(v.Callsign)
		if sym, ok := tables.AirlineSymbol(airline); ok {
			d.Symbol = sym
		} else if sym, ok := tables.AircraftCategorySymbol(v.Category); ok {
			d.Symbol = sym
		}

		if op, ok := tables.AirlineOperator(airline); ok {
			d.Line1 = op
		} else if desc, ok := tables.AircraftCategoryDescription(v.Category); ok {
			d.Line1 = desc
		}

		if long, ok := tables.AircraftTypeLong(v.AircraftType); ok {
			d.Line2 = long
		} else {
			d.Line2 = v.AircraftType
		}

	case KindShip:
		if v.Type == TypeShip && v.ShipType != nil {
			code := strconv.Itoa(*v.ShipType)
			if sym, ok := tables.ShipTypeSymbol(code); ok {
				d.Symbol = sym
			}
			if desc, ok := tables.ShipTypeDescription(code); ok {
				d.Line1 = desc
			}
		} else if v.Type != TypeShip {
			d.Line1 = v.Name
		}
		d.Line2 = v.Destination

	default:
		d.Line1 = v.Name
		d.Line2 = v.ICAOCode
	}

	return d
}

// airlineCode extracts the ICAO airline designator from a flight callsign,
// e.g. "BAW123" -> "BAW". Registrations and other forms return "".
func airlineCode(callsign string) string {
	if len(callsign) < 4 {
		return ""
	}
	for i := 0; i < 3; i++ {
		c := callsign[i]
		if c < 'A' || c > 'Z' {
			return ""
		}
	}
	if callsign[3] < '0' || callsign[3] > '9' {
		return ""
	}
	return callsign[:3]
}
