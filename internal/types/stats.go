package types

import (
	"sort"
	"time"
)

// MaterializeStats summarizes a batch of rows materialized through one type.
type MaterializeStats struct {
	Requested  string           // type the rows were loaded through
	Rows       int64            // total rows materialized
	PerType    map[string]int64 // concrete type -> rows
	Unresolved map[string]int64 // unknown discriminator -> rows
	Duration   time.Duration
}

// NewMaterializeStats creates empty stats for rows loaded through requested.
func NewMaterializeStats(requested string) *MaterializeStats {
	return &MaterializeStats{
		Requested:  requested,
		PerType:    make(map[string]int64),
		Unresolved: make(map[string]int64),
	}
}

// Add counts one row materialized as concrete.
func (s *MaterializeStats) Add(concrete string) {
	s.Rows++
	s.PerType[concrete]++
}

// AddUnresolved counts one row whose discriminator could not be resolved.
// The row is still counted under the type it fell back to via Add.
func (s *MaterializeStats) AddUnresolved(discriminator string) {
	s.Unresolved[discriminator]++
}

// Types returns the concrete types seen, sorted.
func (s *MaterializeStats) Types() []string {
	return sortedKeys(s.PerType)
}

// UnresolvedValues returns the unresolved discriminators seen, sorted.
func (s *MaterializeStats) UnresolvedValues() []string {
	return sortedKeys(s.Unresolved)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
