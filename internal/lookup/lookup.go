// Package lookup holds the read-only enrichment tables used when presenting
// tracks: aircraft categories, airline codes, aircraft types and AIS ship
// types. Tables are loaded once at startup and never mutated.
package lookup

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

//go:embed data/*.csv
var files embed.FS

// Tables is a set of two-column lookups. A nil *Tables is valid and finds
// nothing.
type Tables struct {
	categoryDescription map[string]string
	categorySymbol      map[string]string
	airlineOperator     map[string]string
	airlineSymbol       map[string]string
	aircraftTypeLong    map[string]string
	shipTypeSymbol      map[string]string
	shipTypeDescription map[string]string
}

// Load parses the bundled tables
func Load() (*Tables, error) {
	t := &Tables{}
	targets := []struct {
		file string
		dst  *map[string]string
	}{
		{"aircraft_cat_to_description.csv", &t.categoryDescription},
		{"aircraft_cat_to_symbol.csv", &t.categorySymbol},
		{"aircraft_airline_code_to_operator.csv", &t.airlineOperator},
		{"aircraft_airline_code_to_symbol.csv", &t.airlineSymbol},
		{"aircraft_type_short_to_long.csv", &t.aircraftTypeLong},
		{"ship_type_to_symbol.csv", &t.shipTypeSymbol},
		{"ship_type_to_description.csv", &t.shipTypeDescription},
	}

	for _, target := range targets {
		f, err := files.Open("data/" + target.file)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", target.file, err)
		}
		m, err := parse(target.file, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		*target.dst = m
	}

	return t, nil
}

// parse reads key,value rows. Rows with fewer than two columns are skipped.
func parse(name string, r io.Reader) (map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	m := make(map[string]string)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return m, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: error parsing CSV file: %w", name, err)
		}
		if len(record) < 2 {
			continue
		}
		m[strings.TrimSpace(record[0])] = strings.TrimSpace(record[1])
	}
}

func (t *Tables) get(m map[string]string, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

// AircraftCategoryDescription maps an ADS-B emitter category to text
func (t *Tables) AircraftCategoryDescription(cat string) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.get(t.categoryDescription, cat)
}

// AircraftCategorySymbol maps an ADS-B emitter category to a symbol code
func (t *Tables) AircraftCategorySymbol(cat string) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.get(t.categorySymbol, cat)
}

// AirlineOperator maps an ICAO airline designator to the operator name
func (t *Tables) AirlineOperator(code string) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.get(t.airlineOperator, code)
}

// AirlineSymbol maps an ICAO airline designator to a symbol code
func (t *Tables) AirlineSymbol(code string) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.get(t.airlineSymbol, code)
}

// AircraftTypeLong expands an ICAO type designator
func (t *Tables) AircraftTypeLong(short string) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.get(t.aircraftTypeLong, short)
}

// ShipTypeSymbol maps an AIS ship type code to a symbol code
func (t *Tables) ShipTypeSymbol(code string) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.get(t.shipTypeSymbol, code)
}

// ShipTypeDescription maps an AIS ship type code to text
func (t *Tables) ShipTypeDescription(code string) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.get(t.shipTypeDescription, code)
}

// Len returns the total number of entries across all tables
func (t *Tables) Len() int {
	if t == nil {
		return 0
	}
	return len(t.categoryDescription) + len(t.categorySymbol) +
		len(t.airlineOperator) + len(t.airlineSymbol) + len(t.aircraftTypeLong) +
		len(t.shipTypeSymbol) + len(t.shipTypeDescription)
}
