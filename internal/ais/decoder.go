package ais

import (
	"bytes"
	"context"
	"time"

	aislib "github.com/BertoldVdb/go-ais"
	"github.com/BertoldVdb/go-ais/aisnmea"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"planesail/internal/metrics"
)

// Source is the metric and log label for the AIS feed
const Source = "ais"

// maxPending bounds unterminated input held between Decode calls
const maxPending = 4096

// Decoder turns a stream of CRLF-terminated NMEA sentences into AIS reports.
// Multi-part messages are reassembled across calls. Not safe for concurrent
// use; Run owns it on a single goroutine.
type Decoder struct {
	codec   *aisnmea.NMEACodec
	buffer  []byte
	logger  *logrus.Logger
	metrics *metrics.Collector
	warn    rate.Sometimes
}

// NewDecoder creates a decoder. collector may be nil.
func NewDecoder(logger *logrus.Logger, collector *metrics.Collector) *Decoder {
	codec := aislib.CodecNew(false, false)
	codec.DropSpace = true

	return &Decoder{
		codec:   aisnmea.NMEACodecNew(codec),
		buffer:  make([]byte, 0, 512),
		logger:  logger,
		metrics: collector,
		warn:    rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
}

// Decode appends data to the stream and returns every report completed by
// it. Malformed sentences are logged and skipped.
func (d *Decoder) Decode(data []byte) []aislib.Packet {
	d.buffer = append(d.buffer, data...)

	var packets []aislib.Packet
	for {
		i := bytes.IndexByte(d.buffer, '\n')
		if i < 0 {
			break
		}
		sentence := string(bytes.TrimSpace(d.buffer[:i]))
		d.buffer = d.buffer[i+1:]

		if sentence == "" {
			continue
		}
		if p := d.parse(sentence); p != nil {
			packets = append(packets, p)
		}
	}

	if len(d.buffer) > maxPending {
		d.logger.WithField("bytes", len(d.buffer)).Warn("Discarding unterminated AIS input")
		d.buffer = d.buffer[:0]
	}

	return packets
}

func (d *Decoder) parse(sentence string) aislib.Packet {
	vdm, err := d.codec.ParseSentence(sentence)
	if err != nil {
		d.metrics.DecodeError(Source)
		d.warn.Do(func() {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"source": Source,
				"line":   sentence,
			}).Warn("Failed to decode AIS sentence")
		})
		return nil
	}

	// nil without error is a fragment of a multi-part message
	if vdm == nil || vdm.Packet == nil {
		return nil
	}
	return vdm.Packet
}

// Run decodes chunks from in until ctx is cancelled or in is closed, calling
// handle for each report on this goroutine.
func (d *Decoder) Run(ctx context.Context, in <-chan []byte, handle func(aislib.Packet)) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-in:
			if !ok {
				return
			}
			for _, p := range d.Decode(data) {
				handle(p)
			}
		}
	}
}
