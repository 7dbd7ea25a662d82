package track

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"
)

// ErrExists is returned by Put when the identifier is already present
var ErrExists = errors.New("track already exists")

const shardCount = 32

type shard struct {
	mu     sync.RWMutex
	tracks map[string]*Track
}

// Table is the concurrent track store keyed by track identifier. Locks are
// per shard so first sightings on different identifiers do not contend.
type Table struct {
	shards [shardCount]*shard
}

// NewTable creates an empty table
func NewTable() *Table {
	t := &Table{}
	for i := range t.shards {
		t.shards[i] = &shard{tracks: make(map[string]*Track)}
	}
	return t
}

func (t *Table) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return t.shards[h.Sum32()%shardCount]
}

// Contains reports whether the identifier is present
func (t *Table) Contains(id string) bool {
	_, ok := t.Get(id)
	return ok
}

// Get returns the track for the identifier
func (t *Table) Get(id string) (*Track, bool) {
	s := t.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.tracks[id]
	return tr, ok
}

// Put inserts the track if its identifier is absent
func (t *Table) Put(tr *Track) error {
	s := t.shardFor(tr.ID())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[tr.ID()]; ok {
		return ErrExists
	}
	s.tracks[tr.ID()] = tr
	return nil
}

// GetOrCreate returns the track for id, calling create to build it if absent.
// Exactly one track is ever stored per identifier; concurrent callers racing
// on a first sighting all receive the same instance. The bool reports whether
// this call created it.
func (t *Table) GetOrCreate(id string, create func() *Track) (*Track, bool) {
	s := t.shardFor(id)

	s.mu.RLock()
	tr, ok := s.tracks[id]
	s.mu.RUnlock()
	if ok {
		return tr, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tr, ok := s.tracks[id]; ok {
		return tr, false
	}
	tr = create()
	s.tracks[id] = tr
	return tr, true
}

// Remove deletes the identifier and reports whether it was present
func (t *Table) Remove(id string) bool {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[id]; !ok {
		return false
	}
	delete(s.tracks, id)
	return true
}

// removeIf deletes id only while it still maps to tr and cond holds
func (t *Table) removeIf(id string, tr *Track, cond func(*Track) bool) bool {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tracks[id]
	if !ok || cur != tr || !cond(cur) {
		return false
	}
	delete(s.tracks, id)
	return true
}

// Values returns a snapshot of all tracks sorted by identifier. No lock is
// held once it returns.
func (t *Table) Values() []*Track {
	out := make([]*Track, 0, t.Len())
	for _, s := range t.shards {
		s.mu.RLock()
		for _, tr := range s.tracks {
			out = append(out, tr)
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Views returns read-only snapshots of all tracks
func (t *Table) Views() []View {
	tracks := t.Values()
	out := make([]View, len(tracks))
	for i, tr := range tracks {
		out[i] = tr.View()
	}
	return out
}

// Len returns the number of tracks
func (t *Table) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.RLock()
		n += len(s.tracks)
		s.mu.RUnlock()
	}
	return n
}

// CountByType returns the number of tracks per classification
func (t *Table) CountByType() map[Type]int {
	counts := make(map[Type]int)
	for _, tr := range t.Values() {
		counts[tr.Type()]++
	}
	return counts
}
