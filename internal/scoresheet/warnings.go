package scoresheet

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
)

// benignNotes mark model notes that carry no information for a reviewer.
var benignNotes = []string{
	"no issues",
	"no uncertainty",
	"extraction successful",
	"all clear",
}

// Warnings lists human-readable findings for a reviewer, grouped by check: player
// count, names, sum mismatches, totals, category ceilings, negatives, duplicates and
// finally model notes. An empty player list yields a single warning. It never mutates d.
func Warnings(d GameData) []string {
	n := len(d.Players)
	if n == 0 {
		return []string{"No players detected in screenshot"}
	}

	var out []string
	if n > constants.MaxPlayers {
		out = append(out, fmt.Sprintf("Detected %d players (max is %d)", n, constants.MaxPlayers))
	}

	for i, p := range d.Players {
		name := strings.TrimSpace(p.PlayerName)
		switch {
		case name == "":
			out = append(out, fmt.Sprintf("Player %d: Missing name", i+1))
		case utf8.RuneCountInString(name) < 2:
			out = append(out, fmt.Sprintf("Player %d: Name \"%s\" seems too short", i+1, name))
		}
	}

	for i, p := range d.Players {
		if sum := p.ScoringBreakdown.Sum(); sum != p.TotalScore {
			diff := sum - p.TotalScore
			if diff < 0 {
				diff = -diff
			}
			out = append(out, fmt.Sprintf("%s: Breakdown sum (%d) differs from total (%d) by %d points - please verify",
				displayName(i, p), sum, p.TotalScore, diff))
		}
	}

	for i, p := range d.Players {
		switch {
		case p.TotalScore < constants.MinTotalScore:
			out = append(out, fmt.Sprintf("%s: Score %d is unusually low - please verify", displayName(i, p), p.TotalScore))
		case p.TotalScore > constants.MaxTotalScore:
			out = append(out, fmt.Sprintf("%s: Score %d is unusually high - please verify", displayName(i, p), p.TotalScore))
		}
	}

	for i, p := range d.Players {
		for _, c := range constants.Categories() {
			if v := p.ScoringBreakdown.Get(c); v > c.Ceiling() {
				out = append(out, fmt.Sprintf("%s: %s score %d exceeds typical maximum (%d)",
					displayName(i, p), c.Label(), v, c.Ceiling()))
			}
		}
	}

	for i, p := range d.Players {
		var negative []string
		for _, c := range constants.Categories() {
			if p.ScoringBreakdown.Get(c) < 0 {
				negative = append(negative, string(c))
			}
		}
		if len(negative) > 0 {
			out = append(out, fmt.Sprintf("%s: Negative values detected (%s)", displayName(i, p), strings.Join(negative, ", ")))
		}
	}

	if hasDuplicateNames(d.Players) {
		out = append(out, "Duplicate player names detected - please verify")
	}

	if notes := strings.TrimSpace(d.ExtractionNotes); notes != "" && !isBenignNote(notes) {
		out = append(out, "Extraction notes: "+notes)
	}

	return out
}

func displayName(i int, p Player) string {
	if name := strings.TrimSpace(p.PlayerName); name != "" {
		return name
	}
	return fmt.Sprintf("Player %d", i+1)
}

// hasDuplicateNames compares non-empty names case-insensitively.
func hasDuplicateNames(players []Player) bool {
	seen := make(map[string]struct{}, len(players))
	for _, p := range players {
		key := strings.ToLower(strings.TrimSpace(p.PlayerName))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}

func isBenignNote(notes string) bool {
	lower := strings.ToLower(notes)
	for _, b := range benignNotes {
		if strings.Contains(lower, b) {
			return true
		}
	}
	return false
}
