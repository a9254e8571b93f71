package boundcache

// Stats is a point-in-time view of an LRU's counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRatio returns Hits/(Hits+Misses), or 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
