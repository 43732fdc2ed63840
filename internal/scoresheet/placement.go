package scoresheet

import (
	"sort"
)

// Placements assigns competition ranks to totals: highest first, ties share the lowest
// rank available to them and the next distinct total resumes at its 1-based sorted
// position. [100 100 90 80] -> [1 1 3 4]. The result is index-aligned with totals.
func Placements(totals []int) []int {
	order := make([]int, len(totals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return totals[order[a]] > totals[order[b]]
	})

	out := make([]int, len(totals))
	rank := 1
	for pos, idx := range order {
		if pos > 0 && totals[idx] != totals[order[pos-1]] {
			rank = pos + 1
		}
		out[idx] = rank
	}
	return out
}

// AssignPlacements recomputes Placement for every player from TotalScore, in place.
func (d *GameData) AssignPlacements() {
	totals := make([]int, len(d.Players))
	for i, p := range d.Players {
		totals[i] = p.TotalScore
	}
	for i, rank := range Placements(totals) {
		d.Players[i].Placement = rank
	}
}
