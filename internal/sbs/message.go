// Package sbs parses BaseStation (SBS) CSV lines as served by dump1090 and
// mlat-client on ports 30003 and 30105, and merges them into the track table.
package sbs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BaseStation message types
const (
	MessageSEL = "SEL" // Selection Change
	MessageID  = "ID"  // New ID
	MessageAIR = "AIR" // New Aircraft
	MessageSTA = "STA" // Status Change
	MessageCLK = "CLK" // Click
	MessageMSG = "MSG" // Transmission
)

// BaseStation transmission types
const (
	TransmissionESIdentCategory = 1 // Extended Squitter Aircraft ID and Category
	TransmissionESSurface       = 2 // Extended Squitter Surface Position
	TransmissionESAirborne      = 3 // Extended Squitter Airborne Position
	TransmissionESVelocity      = 4 // Extended Squitter Airborne Velocity
	TransmissionSurveillance    = 5 // Surveillance Alt, Squawk change
	TransmissionSurveillanceID  = 6 // Surveillance ID change
	TransmissionAirToAir        = 7 // Air-to-Air Message
	TransmissionAllCall         = 8 // All Call Reply
)

// Field positions, 0-indexed
const (
	fieldMessageType      = 0
	fieldTransmissionType = 1
	fieldHexIdent         = 4
	fieldCallsign         = 10
	fieldAltitude         = 11
	fieldGroundSpeed      = 12
	fieldTrack            = 13
	fieldLatitude         = 14
	fieldLongitude        = 15
	fieldVerticalRate     = 16
	fieldSquawk           = 17
	fieldIsOnGround       = 21

	minFields = fieldHexIdent + 1
)

var (
	// ErrShortLine is returned for lines without a hex ident field
	ErrShortLine = errors.New("line too short")
	// ErrNoIdent is returned when the hex ident field is blank
	ErrNoIdent = errors.New("missing hex ident")
)

// Message is one parsed SBS line. Optional fields are nil when the line
// leaves them blank or does not reach them.
type Message struct {
	Type             string
	TransmissionType int
	HexIdent         string

	Callsign     string
	Altitude     *float64
	GroundSpeed  *float64
	Track        *float64
	Latitude     *float64
	Longitude    *float64
	VerticalRate *float64
	Squawk       *int
	IsOnGround   *bool
}

// HasPosition reports whether the line carried both coordinates
func (m *Message) HasPosition() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// Parse splits and validates one line. Only MSG lines have their data fields
// read; other message types yield just the type and ident.
func Parse(line string) (*Message, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(fields) < minFields {
		return nil, fmt.Errorf("%w: %d fields", ErrShortLine, len(fields))
	}

	msg := &Message{
		Type:     strings.TrimSpace(fields[fieldMessageType]),
		HexIdent: strings.ToUpper(strings.TrimSpace(fields[fieldHexIdent])),
	}
	if msg.HexIdent == "" {
		return nil, ErrNoIdent
	}
	if msg.Type != MessageMSG {
		return msg, nil
	}

	p := parser{fields: fields}
	if v := p.text(fieldTransmissionType); v != "" {
		msg.TransmissionType = p.int(fieldTransmissionType, v)
	}
	msg.Callsign = p.text(fieldCallsign)
	msg.Altitude = p.float(fieldAltitude)
	msg.GroundSpeed = p.float(fieldGroundSpeed)
	msg.Track = p.float(fieldTrack)
	msg.Latitude = p.float(fieldLatitude)
	msg.Longitude = p.float(fieldLongitude)
	msg.VerticalRate = p.float(fieldVerticalRate)
	if v := p.text(fieldSquawk); v != "" {
		sq := p.int(fieldSquawk, v)
		msg.Squawk = &sq
	}
	if v := p.text(fieldIsOnGround); v != "" {
		onGround := v != "0"
		msg.IsOnGround = &onGround
	}

	if p.err != nil {
		return nil, p.err
	}
	if !msg.HasPosition() {
		msg.Latitude, msg.Longitude = nil, nil
	}
	return msg, nil
}

// parser reads optional fields, keeping the first error
type parser struct {
	fields []string
	err    error
}

func (p *parser) text(i int) string {
	if i >= len(p.fields) {
		return ""
	}
	return strings.TrimSpace(p.fields[i])
}

func (p *parser) float(i int) *float64 {
	v := p.text(i)
	if v == "" || p.err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = fmt.Errorf("field %d: %w", i, err)
		return nil
	}
	return &f
}

func (p *parser) int(i int, v string) int {
	if p.err != nil {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("field %d: %w", i, err)
		return 0
	}
	return n
}
