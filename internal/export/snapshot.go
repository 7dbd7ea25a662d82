// Package export writes read-only snapshots of the track table.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"planesail/internal/lookup"
	"planesail/internal/track"
)

// DefaultInterval is the time between snapshots
const DefaultInterval = 10 * time.Second

// Entry is one track in a snapshot, with its display enrichment
type Entry struct {
	track.View
	Display track.Display `json:"display"`
}

// Snapshot is the document written to disk
type Snapshot struct {
	Time   time.Time      `json:"time"`
	Counts map[string]int `json:"counts"`
	Tracks []Entry        `json:"tracks"`
}

// Snapshotter periodically writes the track table to a JSON file
type Snapshotter struct {
	table    *track.Table
	tables   *lookup.Tables
	path     string
	interval time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewSnapshotter creates a snapshotter writing to path. tables may be nil.
func NewSnapshotter(table *track.Table, tables *lookup.Tables, path string, interval time.Duration, logger *logrus.Logger) *Snapshotter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Snapshotter{
		table:    table,
		tables:   tables,
		path:     path,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Build captures the current table contents
func (s *Snapshotter) Build() Snapshot {
	views := s.table.Views()
	snap := Snapshot{
		Time:   s.now(),
		Counts: make(map[string]int),
		Tracks: make([]Entry, 0, len(views)),
	}
	for _, v := range views {
		snap.Tracks = append(snap.Tracks, Entry{View: v, Display: v.Display(s.tables)})
		snap.Counts[string(v.Type)]++
	}
	return snap
}

// Write replaces the snapshot file. Readers never see a partial file: the
// document is written to a temporary file in the same directory and renamed
// over the target.
func (s *Snapshotter) Write() error {
	snap := s.Build()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set snapshot permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"file":   s.path,
		"tracks": len(snap.Tracks),
	}).Debug("Wrote track snapshot")
	return nil
}

// Run writes a snapshot every interval until ctx is cancelled, then writes
// a final one
func (s *Snapshotter) Run(ctx context.Context) {
	s.logger.WithFields(logrus.Fields{
		"file":     s.path,
		"interval": s.interval,
	}).Info("Starting snapshot writer")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Write(); err != nil {
				s.logger.WithError(err).Error("Failed to write final snapshot")
			}
			return
		case <-ticker.C:
			if err := s.Write(); err != nil {
				s.logger.WithError(err).Error("Failed to write snapshot")
			}
		}
	}
}
