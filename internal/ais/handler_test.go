package ais

import (
	"io"
	"sync"
	"testing"
	"time"

	aislib "github.com/BertoldVdb/go-ais"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planesail/internal/track"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestHandler() (*Handler, *track.Table) {
	table := track.NewTable()
	h := NewHandler(table, newTestLogger())
	now := time.Now().Add(time.Minute)
	h.now = func() time.Time { return now }
	return h, table
}

func header(id uint8, mmsi uint32) aislib.Header {
	return aislib.Header{MessageID: id, UserID: mmsi}
}

func view(t *testing.T, table *track.Table, id string) track.View {
	t.Helper()
	tr, ok := table.Get(id)
	require.True(t, ok, "track %s not found", id)
	return tr.View()
}

func TestHandler_AidToNavigation(t *testing.T) {
	h, table := newTestHandler()

	err := h.HandlePacket(aislib.AidsToNavigationReport{
		Header:    header(21, 992271001),
		Name:      "BUOY ALPHA@@@@@@@@@@",
		Latitude:  50.1,
		Longitude: -4.1,
	})
	require.NoError(t, err)

	v := view(t, table, "992271001")
	assert.Equal(t, "992271001", v.ID)
	assert.Equal(t, track.TypeAISATON, v.Type)
	assert.True(t, v.Fixed)
	assert.Equal(t, "BUOY ALPHA", v.Name)
	require.NotNil(t, v.Position)
	assert.InDelta(t, 50.1, v.Position.Latitude, 1e-9)
	assert.InDelta(t, -4.1, v.Position.Longitude, 1e-9)
	assert.Equal(t, track.SymbolAISATON, v.Symbol)
}

func TestHandler_BaseStation(t *testing.T) {
	h, table := newTestHandler()

	require.NoError(t, h.HandlePacket(aislib.BaseStationReport{
		Header:    header(4, 2320001),
		Latitude:  50.5,
		Longitude: -3.5,
	}))

	v := view(t, table, "2320001")
	assert.Equal(t, track.TypeAISShoreStation, v.Type)
	assert.True(t, v.ShoreStation)
	assert.True(t, v.Fixed)
	require.NotNil(t, v.Position)
	assert.InDelta(t, 50.5, v.Position.Latitude, 1e-9)
}

func TestHandler_PositionReport(t *testing.T) {
	h, table := newTestHandler()

	require.NoError(t, h.HandlePacket(aislib.PositionReport{
		Header:             header(1, 244660000),
		NavigationalStatus: 5,
		Sog:                12.3,
		Cog:                87.5,
		TrueHeading:        88,
		Latitude:           50.1,
		Longitude:          -4.1,
	}))

	v := view(t, table, "244660000")
	assert.Equal(t, track.TypeShip, v.Type)
	assert.False(t, v.Fixed)
	require.NotNil(t, v.Speed)
	assert.InDelta(t, 12.3, *v.Speed, 1e-9)
	assert.InDelta(t, 87.5, *v.Course, 1e-9)
	assert.Equal(t, 88.0, *v.Heading)
	assert.Equal(t, 5, *v.NavStatus)
	require.Len(t, v.History, 1)
}

func TestHandler_SentinelsNeverWritten(t *testing.T) {
	h, table := newTestHandler()

	require.NoError(t, h.HandlePacket(aislib.PositionReport{
		Header:      header(1, 244660000),
		Sog:         10,
		Cog:         90,
		TrueHeading: 91,
		Latitude:    50.1,
		Longitude:   -4.1,
	}))

	// Every value here means "not available"
	require.NoError(t, h.HandlePacket(aislib.PositionReport{
		Header:      header(3, 244660000),
		Sog:         102.3,
		Cog:         360,
		TrueHeading: 511,
		Latitude:    91,
		Longitude:   181,
	}))
	require.NoError(t, h.HandlePacket(aislib.StandardClassBPositionReport{
		Header:      header(18, 244660000),
		Sog:         102.3,
		Cog:         360,
		TrueHeading: 511,
		Latitude:    91,
		Longitude:   181,
	}))
	require.NoError(t, h.HandlePacket(aislib.LongRangeAisBroadcastMessage{
		Header:    header(27, 244660000),
		Sog:       63,
		Cog:       511,
		Latitude:  91,
		Longitude: 181,
	}))

	v := view(t, table, "244660000")
	assert.Equal(t, 10.0, *v.Speed)
	assert.Equal(t, 90.0, *v.Course)
	assert.Equal(t, 91.0, *v.Heading)
	assert.Len(t, v.History, 1)
}

func TestHandler_HeadingSentinelOnFreshTrack(t *testing.T) {
	for _, pkt := range []aislib.Packet{
		aislib.PositionReport{Header: header(1, 1), TrueHeading: 511, Cog: 360, Latitude: 91, Longitude: 181},
		aislib.StandardClassBPositionReport{Header: header(18, 1), TrueHeading: 511, Cog: 360, Latitude: 91, Longitude: 181},
		aislib.ExtendedClassBPositionReport{Header: header(19, 1), TrueHeading: 511, Cog: 360, Latitude: 91, Longitude: 181},
	} {
		h, table := newTestHandler()
		require.NoError(t, h.HandlePacket(pkt))

		v := view(t, table, "1")
		assert.Nil(t, v.Heading)
		assert.Nil(t, v.Course)
		assert.Nil(t, v.Position)
	}
}

func TestHandler_ShipStaticData(t *testing.T) {
	h, table := newTestHandler()

	require.NoError(t, h.HandlePacket(aislib.ShipStaticData{
		Header:      header(5, 244660000),
		CallSign:    "PBXY@@@",
		Name:        "EVER GIVEN@@@@@@@@@@",
		Type:        70,
		Destination: "ROTTERDAM@@@@@@@@@@@",
	}))

	v := view(t, table, "244660000")
	assert.Equal(t, "EVER GIVEN", v.Name)
	assert.Equal(t, "PBXY", v.Callsign)
	assert.Equal(t, 70, *v.ShipType)
	assert.Equal(t, "ROTTERDAM", v.Destination)
	assert.Equal(t, track.TypeShip, v.Type)
}

func TestHandler_StaticDataReport(t *testing.T) {
	h, table := newTestHandler()

	partA := aislib.StaticDataReport{Header: header(24, 235000001)}
	partA.ReportA.Name = "SEA SPRITE"
	require.NoError(t, h.HandlePacket(partA))

	partB := aislib.StaticDataReport{Header: header(24, 235000001), PartNumber: true}
	partB.ReportB.CallSign = "2ABC3"
	partB.ReportB.ShipType = 37
	require.NoError(t, h.HandlePacket(partB))

	// An empty part A never clears the name
	require.NoError(t, h.HandlePacket(aislib.StaticDataReport{Header: header(24, 235000001)}))

	v := view(t, table, "235000001")
	assert.Equal(t, "SEA SPRITE", v.Name)
	assert.Equal(t, "2ABC3", v.Callsign)
	assert.Equal(t, 37, *v.ShipType)
	assert.Equal(t, track.TypeShip, v.Type)
}

func TestHandler_ExtendedClassB(t *testing.T) {
	h, table := newTestHandler()

	require.NoError(t, h.HandlePacket(aislib.ExtendedClassBPositionReport{
		Header:      header(19, 235000002),
		Name:        "WANDERER@@@@",
		Type:        36,
		Sog:         6.5,
		Cog:         270,
		TrueHeading: 268,
		Latitude:    50.3,
		Longitude:   -4.2,
	}))

	v := view(t, table, "235000002")
	assert.Equal(t, "WANDERER", v.Name)
	assert.Equal(t, 36, *v.ShipType)
	assert.Equal(t, 6.5, *v.Speed)
	assert.Equal(t, 270.0, *v.Course)
	assert.Equal(t, 268.0, *v.Heading)
}

func TestHandler_LongRange(t *testing.T) {
	h, table := newTestHandler()

	require.NoError(t, h.HandlePacket(aislib.LongRangeAisBroadcastMessage{
		Header:             header(27, 244660000),
		NavigationalStatus: 0,
		Sog:                12,
		Cog:                45,
		Latitude:           50.1,
		Longitude:          -4.1,
	}))

	v := view(t, table, "244660000")
	assert.Equal(t, 12.0, *v.Speed)
	assert.Equal(t, 45.0, *v.Course)
	assert.Nil(t, v.Heading)
	assert.Equal(t, 0, *v.NavStatus)
}

func TestHandler_SameMMSIOneTrack(t *testing.T) {
	h, table := newTestHandler()

	require.NoError(t, h.HandlePacket(aislib.ShipStaticData{Header: header(5, 244660000), Name: "EVER GIVEN"}))
	first, ok := table.Get("244660000")
	require.True(t, ok)

	require.NoError(t, h.HandlePacket(aislib.PositionReport{Header: header(1, 244660000), Latitude: 50.1, Longitude: -4.1}))
	second, ok := table.Get("244660000")
	require.True(t, ok)

	assert.Same(t, first, second)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, "EVER GIVEN", second.View().Name)
}

func TestHandler_ConcurrentFirstSighting(t *testing.T) {
	h, table := newTestHandler()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				h.HandlePacket(aislib.ShipStaticData{Header: header(5, 244660000), Name: "EVER GIVEN"})
			} else {
				h.HandlePacket(aislib.PositionReport{Header: header(1, 244660000), Latitude: 50.1, Longitude: -4.1})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, table.Len())
}

// unhandledReport stands in for report types that carry no track data
type unhandledReport struct {
	aislib.Header
}

func TestHandler_UnhandledType(t *testing.T) {
	h, table := newTestHandler()

	err := h.HandlePacket(&unhandledReport{Header: header(12, 244660000)})
	assert.NoError(t, err)
	assert.NoError(t, h.HandlePacket(nil))

	// The track exists but carries nothing new
	v := view(t, table, "244660000")
	assert.Equal(t, track.TypeShip, v.Type)
	assert.True(t, v.MetadataUpdate.IsZero())
}

func TestHandler_WrongKind(t *testing.T) {
	h, table := newTestHandler()
	require.NoError(t, table.Put(track.NewAircraft("123456")))

	err := h.HandlePacket(aislib.PositionReport{Header: header(1, 123456)})
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BUOY ALPHA@@@@", "BUOY ALPHA"},
		{"  PADDED  ", "PADDED"},
		{"@@@@", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanText(tt.in))
	}
}
