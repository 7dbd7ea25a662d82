package track

import "time"

// ExpiryPolicy sets how long a live track may stay silent before removal
type ExpiryPolicy struct {
	Aircraft time.Duration `yaml:"aircraft"`
	Ship     time.Duration `yaml:"ship"`
	APRS     time.Duration `yaml:"aprs"`
	// FixedAIS applies to AIS tracks marked fixed (ATONs, shore stations)
	FixedAIS time.Duration `yaml:"fixed_ais"`
}

// DefaultExpiryPolicy returns the standard drop ages
func DefaultExpiryPolicy() ExpiryPolicy {
	return ExpiryPolicy{
		Aircraft: 5 * time.Minute,
		Ship:     30 * time.Minute,
		APRS:     1 * time.Hour,
		FixedAIS: 24 * time.Hour,
	}
}

// DropAge returns the silence after which tr is removed. Zero means never.
func (p ExpiryPolicy) DropAge(tr *Track) time.Duration {
	if tr.CreatedByConfig() {
		return 0
	}
	switch tr.Kind() {
	case KindAircraft:
		return p.Aircraft
	case KindShip:
		if tr.Fixed() {
			return p.FixedAIS
		}
		return p.Ship
	case KindAPRS:
		return p.APRS
	default:
		return 0
	}
}

// MaintenanceResult summarises one maintenance pass
type MaintenanceResult struct {
	Removed []string
	Pruned  int
	Counts  map[Type]int
}

// Maintain prunes every track's history to its retention window and removes
// live tracks that have been silent longer than the policy allows. A track
// updated between the staleness check and removal is kept.
func (t *Table) Maintain(now time.Time, policy ExpiryPolicy) MaintenanceResult {
	res := MaintenanceResult{Counts: make(map[Type]int)}

	for _, tr := range t.Values() {
		res.Pruned += tr.Prune(now)

		age := policy.DropAge(tr)
		stale := func(cur *Track) bool {
			return age > 0 && now.Sub(cur.LastUpdate()) > age
		}
		if stale(tr) && t.removeIf(tr.ID(), tr, stale) {
			res.Removed = append(res.Removed, tr.ID())
			continue
		}
		res.Counts[tr.Type()]++
	}

	return res
}
