package ais

import (
	"context"
	"strings"
	"testing"
	"time"

	aislib "github.com/BertoldVdb/go-ais"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planesail/internal/metrics"
)

// Sample sentences
const (
	// Class A position, MMSI 244660000, 50.1N 4.1W, SOG 12.3, COG 87.5, heading 88
	sentencePosition = "!AIVDM,1,1,,A,13aDo8001sOe>m0Lbep3Jjht0000,0*69"
	// Class A position, MMSI 244660001, course and heading not available
	sentencePositionNA = "!AIVDM,1,1,,A,13aDo8@00jOe>m0Lbep>4?vt0000,0*39"
	// Aid to navigation, MMSI 992271001, "BUOY ALPHA", 50.1N 4.1W
	sentenceAtoN = "!AIVDM,1,1,,A,E>jCJV@Q:Wdh0V840P000000000?nWJP>EFt000000v000,4*35"
	// Ship static data in two parts, MMSI 244660000, "EVER GIVEN" bound for ROTTERDAM
	sentenceStatic1 = "!AIVDM,2,1,1,A,53aDo802Ee3Q09QT000EHE:0LUHDp00000000016I38NM4odNUTSm51DQ0C@,0*21"
	sentenceStatic2 = "!AIVDM,2,2,1,A,00000000000,2*25"
)

func TestDecoder_SingleSentence(t *testing.T) {
	d := NewDecoder(newTestLogger(), nil)

	packets := d.Decode([]byte(sentencePosition + "\r\n"))
	require.Len(t, packets, 1)

	header := packets[0].GetHeader()
	assert.Equal(t, uint8(1), header.MessageID)
	assert.Equal(t, uint32(244660000), header.UserID)

	pos, ok := packets[0].(aislib.PositionReport)
	require.True(t, ok)
	assert.InDelta(t, 50.1, float64(pos.Latitude), 1e-4)
	assert.InDelta(t, -4.1, float64(pos.Longitude), 1e-4)
	assert.InDelta(t, 12.3, float64(pos.Sog), 1e-6)
	assert.Equal(t, uint16(88), pos.TrueHeading)
}

func TestDecoder_SplitAcrossWrites(t *testing.T) {
	d := NewDecoder(newTestLogger(), nil)
	stream := sentencePosition + "\r\n" + sentenceAtoN + "\r\n"

	var packets []aislib.Packet
	for i := 0; i < len(stream); i += 7 {
		end := i + 7
		if end > len(stream) {
			end = len(stream)
		}
		packets = append(packets, d.Decode([]byte(stream[i:end]))...)
	}

	require.Len(t, packets, 2)
	assert.Equal(t, uint32(244660000), packets[0].GetHeader().UserID)
	assert.Equal(t, uint32(992271001), packets[1].GetHeader().UserID)
	assert.Equal(t, uint8(21), packets[1].GetHeader().MessageID)
}

func TestDecoder_MultiPart(t *testing.T) {
	d := NewDecoder(newTestLogger(), nil)

	assert.Empty(t, d.Decode([]byte(sentenceStatic1+"\r\n")))

	packets := d.Decode([]byte(sentenceStatic2 + "\r\n"))
	require.Len(t, packets, 1)
	assert.Equal(t, uint8(5), packets[0].GetHeader().MessageID)

	static, ok := packets[0].(aislib.ShipStaticData)
	require.True(t, ok)
	assert.Equal(t, "EVER GIVEN", cleanText(static.Name))
	assert.Equal(t, "ROTTERDAM", cleanText(static.Destination))
	assert.Equal(t, uint8(70), static.Type)
}

func TestDecoder_Malformed(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	d := NewDecoder(newTestLogger(), collector)

	input := strings.Join([]string{
		"garbage",
		"!AIVDM,1,1,,A,13aDo8001sOe>m0Lbep3Jjht0000,0*00", // bad checksum
		"",
		sentencePosition,
	}, "\r\n") + "\r\n"

	packets := d.Decode([]byte(input))
	require.Len(t, packets, 1)
	assert.Equal(t, uint32(244660000), packets[0].GetHeader().UserID)
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.DecodeErrors.WithLabelValues(Source)))
}

func TestDecoder_BoundsPendingInput(t *testing.T) {
	d := NewDecoder(newTestLogger(), nil)

	assert.Empty(t, d.Decode([]byte(strings.Repeat("x", maxPending+1))))
	assert.Empty(t, d.buffer)

	// The stream recovers at the next terminated sentence
	packets := d.Decode([]byte("\r\n" + sentencePosition + "\r\n"))
	assert.Len(t, packets, 1)
}

func TestDecoder_Run(t *testing.T) {
	d := NewDecoder(newTestLogger(), nil)
	in := make(chan []byte, 4)
	got := make(chan aislib.Packet, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx, in, func(p aislib.Packet) { got <- p })
	}()

	in <- []byte(sentencePositionNA + "\r\n")

	select {
	case p := <-got:
		assert.Equal(t, uint32(244660001), p.GetHeader().UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no packet decoded")
	}

	close(in)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after input closed")
	}
}
