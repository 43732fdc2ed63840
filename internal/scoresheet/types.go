// Package scoresheet turns a vision model's free-form reply into a normalized Wingspan
// score record and grades it for human review.
//
// Normalize is the only constructor of GameData in the pipeline. Confidence and Warnings
// are independent read-only passes over the result: one yields a single sortable number,
// the other a list of actionable findings for the reviewer.
package scoresheet

import (
	"github.com/joseph-ayodele/wingspan-tracker/constants"
)

// Breakdown is one player's column of the end-of-game score table.
type Breakdown struct {
	Birds           int `json:"birds"`
	BonusCards      int `json:"bonusCards"`
	EndOfRoundGoals int `json:"endOfRoundGoals"`
	Eggs            int `json:"eggs"`
	FoodOnCards     int `json:"foodOnCards"`
	TuckedCards     int `json:"tuckedCards"`
	Nectar          int `json:"nectar"`
}

// Player is one extracted result.
type Player struct {
	PlayerName       string    `json:"playerName"`
	Placement        int       `json:"placement"`
	TotalScore       int       `json:"totalScore"`
	ScoringBreakdown Breakdown `json:"scoringBreakdown"`
}

// GameData is the normalized extraction for one screenshot.
type GameData struct {
	Players         []Player `json:"players"`
	ExtractionNotes string   `json:"extractionNotes,omitempty"`
}

// Sum adds every category.
func (b Breakdown) Sum() int {
	return b.Birds + b.BonusCards + b.EndOfRoundGoals + b.Eggs + b.FoodOnCards + b.TuckedCards + b.Nectar
}

// Get returns the value stored for category c.
func (b Breakdown) Get(c constants.Category) int {
	switch c {
	case constants.Birds:
		return b.Birds
	case constants.BonusCards:
		return b.BonusCards
	case constants.EndOfRoundGoals:
		return b.EndOfRoundGoals
	case constants.Eggs:
		return b.Eggs
	case constants.FoodOnCards:
		return b.FoodOnCards
	case constants.TuckedCards:
		return b.TuckedCards
	case constants.Nectar:
		return b.Nectar
	}
	return 0
}

// Set stores v for category c. Unknown categories are ignored.
func (b *Breakdown) Set(c constants.Category, v int) {
	switch c {
	case constants.Birds:
		b.Birds = v
	case constants.BonusCards:
		b.BonusCards = v
	case constants.EndOfRoundGoals:
		b.EndOfRoundGoals = v
	case constants.Eggs:
		b.Eggs = v
	case constants.FoodOnCards:
		b.FoodOnCards = v
	case constants.TuckedCards:
		b.TuckedCards = v
	case constants.Nectar:
		b.Nectar = v
	}
}
