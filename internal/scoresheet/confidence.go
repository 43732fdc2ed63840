package scoresheet

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
)

// placeholderNames are values models emit when they could not read a name cell.
var placeholderNames = map[string]struct{}{
	"player":  {},
	"name":    {},
	"total":   {},
	"score":   {},
	"unknown": {},
	"???":     {},
	"...":     {},
}

// Confidence grades a normalized extraction in [0, 1]. Each plausibility check that
// passes adds a fixed increment to a base of 0.4; an empty extraction scores 0.
func Confidence(d GameData) float64 {
	if len(d.Players) == 0 {
		return 0
	}

	score := 0.4
	n := len(d.Players)

	if n >= constants.MinPlayers && n <= constants.MaxPlayers {
		score += 0.1
	}

	if allNamed(d.Players) {
		score += 0.15
	}
	if noPlaceholderNames(d.Players) {
		score += 0.05
	}

	inRange := true
	nonNegative := true
	exact := true
	nearly := true
	underCeilings := true
	for _, p := range d.Players {
		if p.TotalScore < constants.MinTotalScore || p.TotalScore > constants.MaxTotalScore {
			inRange = false
		}
		diff := p.ScoringBreakdown.Sum() - p.TotalScore
		if diff != 0 {
			exact = false
		}
		if diff < -1 || diff > 1 {
			nearly = false
		}
		for _, c := range constants.Categories() {
			v := p.ScoringBreakdown.Get(c)
			if v < 0 {
				nonNegative = false
			}
			if v > c.Ceiling() {
				underCeilings = false
			}
		}
	}

	if inRange {
		score += 0.1
	}
	if nonNegative {
		score += 0.05
	}
	switch {
	case exact:
		score += 0.15
	case nearly:
		score += 0.08
	}
	if underCeilings {
		score += 0.1
	}
	if rankingConsistent(d.Players) {
		score += 0.05
	}

	return math.Min(score, 1)
}

func allNamed(players []Player) bool {
	for _, p := range players {
		if strings.TrimSpace(p.PlayerName) == "" {
			return false
		}
	}
	return true
}

func noPlaceholderNames(players []Player) bool {
	for _, p := range players {
		name := strings.ToLower(strings.TrimSpace(p.PlayerName))
		if utf8.RuneCountInString(name) < 2 {
			return false
		}
		if _, bad := placeholderNames[name]; bad {
			return false
		}
	}
	return true
}

// rankingConsistent reports whether, read in placement order, totals never increase.
func rankingConsistent(players []Player) bool {
	ordered := make([]Player, len(players))
	copy(ordered, players)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Placement < ordered[b].Placement
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i].TotalScore > ordered[i-1].TotalScore {
			return false
		}
	}
	return true
}
