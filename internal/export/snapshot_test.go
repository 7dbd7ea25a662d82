package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planesail/internal/lookup"
	"planesail/internal/track"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestTable(t *testing.T) *track.Table {
	t.Helper()
	table := track.NewTable()

	ac := track.NewAircraft("4CA2D6")
	ac.SetCallsign("RYR12AB")
	ac.SetCategory("A3")
	ac.AddPosition(51.47, -0.45)
	require.NoError(t, table.Put(ac))

	ship := track.NewShip("244660000")
	ship.SetName("EVER GIVEN")
	ship.SetShipType(70)
	require.NoError(t, table.Put(ship))

	require.NoError(t, table.Put(track.NewAirport("AIRPORT-0", "Heathrow", "EGLL", 51.47, -0.46)))
	return table
}

func TestSnapshotter_Build(t *testing.T) {
	tables, err := lookup.Load()
	require.NoError(t, err)

	s := NewSnapshotter(newTestTable(t), tables, filepath.Join(t.TempDir(), "tracks.json"), 0, newTestLogger())
	snap := s.Build()

	require.Len(t, snap.Tracks, 3)
	assert.Equal(t, map[string]int{"AIRCRAFT": 1, "SHIP": 1, "AIRPORT": 1}, snap.Counts)

	byID := make(map[string]Entry)
	for _, e := range snap.Tracks {
		byID[e.ID] = e
	}
	assert.Equal(t, "EVER GIVEN", byID["244660000"].Name)
	assert.NotEmpty(t, byID["244660000"].Display.Line1)
	assert.Equal(t, "Heathrow", byID["AIRPORT-0"].Display.Line1)
	assert.Equal(t, "EGLL", byID["AIRPORT-0"].Display.Line2)
}

func TestSnapshotter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tracks.json")
	s := NewSnapshotter(newTestTable(t), nil, path, time.Second, newTestLogger())

	require.NoError(t, s.Write())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Counts map[string]int `json:"counts"`
		Tracks []struct {
			ID       string `json:"id"`
			Kind     string `json:"kind"`
			Callsign string `json:"callsign"`
			Position *struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"position"`
			Display struct {
				Symbol string `json:"symbol"`
			} `json:"display"`
		} `json:"tracks"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Tracks, 3)

	// Views are ordered by id
	assert.Equal(t, "244660000", doc.Tracks[0].ID)
	assert.Equal(t, "4CA2D6", doc.Tracks[1].ID)
	assert.Equal(t, "aircraft", doc.Tracks[1].Kind)
	assert.Equal(t, "RYR12AB", doc.Tracks[1].Callsign)
	require.NotNil(t, doc.Tracks[1].Position)
	assert.Equal(t, 51.47, doc.Tracks[1].Position.Lat)
	assert.Equal(t, track.SymbolAircraft, doc.Tracks[1].Display.Symbol)

	// No temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSnapshotter_WriteReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.json")
	table := track.NewTable()
	s := NewSnapshotter(table, nil, path, time.Second, newTestLogger())

	require.NoError(t, s.Write())
	require.NoError(t, table.Put(track.NewAircraft("ABCDEF")))
	require.NoError(t, s.Write())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Len(t, snap.Tracks, 1)
}

func TestSnapshotter_RunWritesFinalSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.json")
	s := NewSnapshotter(newTestTable(t), nil, path, time.Hour, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.FileExists(t, path)
}
