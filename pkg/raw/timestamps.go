package raw

import "sort"

// Resets returns the indices i such that events[i+1].T < events[i].T.
// Recordings from early sensors wrap their timestamp counter; each reset
// marks one wrap (or one out-of-order packet).
func (e DVSEvents) Resets() []int {
	var resets []int
	for i := 0; i+1 < len(e); i++ {
		if e[i+1].T < e[i].T {
			resets = append(resets, i)
		}
	}
	return resets
}

// AccumulateResets makes timestamps monotonic by adding, for every reset
// (last to first), the timestamp preceding the reset to all later events.
// It returns the number of resets that were fixed.
func (e DVSEvents) AccumulateResets() int {
	resets := e.Resets()
	for r := len(resets) - 1; r >= 0; r-- {
		index := resets[r]
		offset := e[index].T
		for j := index + 1; j < len(e); j++ {
			e[j].T += offset
		}
	}
	return len(resets)
}

// SortByTimestamp stably sorts the events by timestamp.
func (e DVSEvents) SortByTimestamp() {
	sort.SliceStable(e, func(i, j int) bool {
		return e[i].T < e[j].T
	})
}
