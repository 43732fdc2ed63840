package llm

import (
	"strings"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
)

// BuildScoresheetPrompt composes the instruction sent alongside the screenshot: the
// table layout, label variants, the sum cross-check and the exact reply shape.
func BuildScoresheetPrompt() string {
	labels := make([]string, 0, len(constants.Categories()))
	for _, c := range constants.Categories() {
		labels = append(labels, c.Label())
	}

	parts := []string{
		"You read final scores from an end-of-game screenshot of the board game Wingspan.",
		"",
		"LAYOUT:",
		"- The score table has one column per player and one row per scoring category.",
		"- Rows, top to bottom: " + strings.Join(labels, ", ") + ". Nectar only appears with the Oceania expansion.",
		"- Player names are printed above their column; each column ends with that player's total.",
		"- Label variants you may see: \"Bonus\" or \"End-of-game bonuses\" for Bonus cards; \"Round goals\" or \"Goals\" for End-of-round goals;" +
			" \"Cached food\" or \"Food cached\" for Food on cards; \"Tucked\" or \"Cards tucked\" for Tucked cards.",
		"",
		"STEPS:",
		"1. Find every player column and copy the name exactly as shown, including capitalization.",
		"2. Read each category value down the column. Use 0 for nectar when that row is absent.",
		"3. Check that " + strings.Join(constants.AsStringSlice(), " + ") + " equals the printed total.",
		"4. When a column does not add up, re-read it. Digits that are easy to confuse: 0/8, 1/7, 3/8, 5/6.",
		"",
		"Reply with ONLY this JSON object and nothing else:",
		replyShape,
		"Use extractionNotes for anything you were unsure about; leave it empty when nothing stood out.",
	}
	return strings.Join(parts, "\n")
}

const replyShape = `{
  "players": [
    {
      "playerName": "NameAsShown",
      "totalScore": 0,
      "scoringBreakdown": {
        "birds": 0,
        "bonusCards": 0,
        "endOfRoundGoals": 0,
        "eggs": 0,
        "foodOnCards": 0,
        "tuckedCards": 0,
        "nectar": 0
      }
    }
  ],
  "extractionNotes": ""
}`
