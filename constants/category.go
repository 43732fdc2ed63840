package constants

import (
	"strings"
)

// Category is one row of the Wingspan end-of-game score table.
type Category string

const (
	Birds           Category = "birds"
	BonusCards      Category = "bonusCards"
	EndOfRoundGoals Category = "endOfRoundGoals"
	Eggs            Category = "eggs"
	FoodOnCards     Category = "foodOnCards"
	TuckedCards     Category = "tuckedCards"
	Nectar          Category = "nectar"
)

// allCategories is in score-screen row order (top to bottom).
var allCategories = []Category{
	Birds,
	BonusCards,
	EndOfRoundGoals,
	Eggs,
	FoodOnCards,
	TuckedCards,
	Nectar,
}

var categoryLabels = map[Category]string{
	Birds:           "Birds",
	BonusCards:      "Bonus cards",
	EndOfRoundGoals: "End-of-round goals",
	Eggs:            "Eggs",
	FoodOnCards:     "Food on cards",
	TuckedCards:     "Tucked cards",
	Nectar:          "Nectar",
}

// categoryCeilings are the highest values seen in real games for each row.
// Anything above is flagged for review, not rejected.
var categoryCeilings = map[Category]int{
	Birds:           100, // 15 birds max * ~7 points average
	BonusCards:      50,
	EndOfRoundGoals: 25, // 4 rounds * 6-7 points
	Eggs:            40,
	FoodOnCards:     50,
	TuckedCards:     40,
	Nectar:          20, // Oceania expansion
}

// Game-level bounds used by the plausibility checks.
const (
	MinPlayers    = 1
	MaxPlayers    = 5
	MinTotalScore = 30
	MaxTotalScore = 180
)

// Categories returns the scoring categories in row order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// AsStringSlice returns the JSON keys of every category in row order.
func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Label is the human-facing name used in warnings and exports.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Ceiling is the plausible maximum for the category; 0 means unknown.
func (c Category) Ceiling() int {
	return categoryCeilings[c]
}

// Canonicalize maps a label as printed by some game versions onto a category.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]Category{
		"bonus":               BonusCards,
		"end-of-game bonuses": BonusCards,
		"round goals":         EndOfRoundGoals,
		"goals":               EndOfRoundGoals,
		"end of round goals":  EndOfRoundGoals,
		"cached food":         FoodOnCards,
		"food cached":         FoodOnCards,
		"tucked":              TuckedCards,
		"cards tucked":        TuckedCards,
	}
	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) || normalized == strings.ToLower(cat.Label()) {
			return cat, true
		}
	}
	return "", false
}
