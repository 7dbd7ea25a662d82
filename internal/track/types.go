package track

import "fmt"

// Type classifies a track for display and expiry purposes. A track may be
// reclassified as later messages reveal more about it.
type Type string

// Track types
const (
	TypeShip            Type = "SHIP"
	TypeAircraft        Type = "AIRCRAFT"
	TypeAISATON         Type = "AIS_ATON"
	TypeAISShoreStation Type = "AIS_SHORE_STATION"
	TypeAISTrackGeneric Type = "AIS_TRACK_GENERIC"
	TypeAPRSTrack       Type = "APRS_TRACK"
	TypeAirport         Type = "AIRPORT"
	TypeBaseStation     Type = "BASE_STATION"
)

// Kind is the variant a track was constructed as. Unlike Type it never changes.
type Kind int

// Track kinds
const (
	KindAircraft Kind = iota
	KindShip
	KindAPRS
	KindAirport
	KindBaseStation
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindAircraft:
		return "aircraft"
	case KindShip:
		return "ship"
	case KindAPRS:
		return "aprs"
	case KindAirport:
		return "airport"
	case KindBaseStation:
		return "base_station"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind as its name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name
func (k *Kind) UnmarshalText(text []byte) error {
	for _, c := range []Kind{KindAircraft, KindShip, KindAPRS, KindAirport, KindBaseStation} {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown track kind %q", text)
}

// SymbolLength is the fixed length of every symbol code.
const SymbolLength = 12

// Default symbol codes, MIL-STD-2525 style
const (
	SymbolAircraft     = "SUAP--------"
	SymbolShip         = "SUSP--------"
	SymbolAISATON      = "SUSPZN------"
	SymbolShoreStation = "SFGPUUS-----"
	SymbolAPRS         = "SFGPU-------"
	SymbolAirport      = "SFGPIBA---H-"
	SymbolBaseStation  = "SFGPUUS-----"
	SymbolGenericTrack = "SUGP--------"
)

// DefaultSymbol returns the symbol code a track of the given type starts with
func DefaultSymbol(t Type) string {
	switch t {
	case TypeAircraft:
		return SymbolAircraft
	case TypeShip:
		return SymbolShip
	case TypeAISATON:
		return SymbolAISATON
	case TypeAISShoreStation:
		return SymbolShoreStation
	case TypeAPRSTrack:
		return SymbolAPRS
	case TypeAirport:
		return SymbolAirport
	case TypeBaseStation:
		return SymbolBaseStation
	default:
		return SymbolGenericTrack
	}
}
