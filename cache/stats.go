package cache

// Stats is a snapshot of a Cache's counters.
type Stats struct {
	Entries    int `json:"entries" yaml:"entries"`
	CheckedOut int `json:"checked_out" yaml:"checked_out"`
	Idle       int `json:"idle" yaml:"idle"`

	Hits          uint64 `json:"hits" yaml:"hits"`
	Misses        uint64 `json:"misses" yaml:"misses"`
	Compiles      uint64 `json:"compiles" yaml:"compiles"`
	CompileErrors uint64 `json:"compile_errors" yaml:"compile_errors"`
	Releases      uint64 `json:"releases" yaml:"releases"`
	Retired       uint64 `json:"retired" yaml:"retired"`
	Destroyed     uint64 `json:"destroyed" yaml:"destroyed"`
	DestroyErrors uint64 `json:"destroy_errors" yaml:"destroy_errors"`
	Evicted       uint64 `json:"evicted" yaml:"evicted"`
}

// HitRatio is Hits over Hits+Misses, zero before the first lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
