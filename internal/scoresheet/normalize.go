package scoresheet

import (
	"encoding/json"
	"maps"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
)

var (
	reFenced   = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
	reNameJunk = regexp.MustCompile(`[<>"']`)
)

const maxNameRunes = 50

// maxCount bounds a single coerced value; anything larger is an OCR or overflow artifact.
const maxCount = math.MaxInt32

// Normalize locates the JSON payload inside a model reply and rebuilds it as GameData.
// Every breakdown value is coerced to a non-negative integer (0 on failure), each total
// is recomputed from its breakdown and placements are assigned from the recomputed totals.
// It fails with a parse error only when no players list can be found.
func Normalize(text string) (GameData, error) {
	payload := locatePayload(text)
	if payload == "" {
		return GameData{}, common.NewKindError(common.CodeParse, "no JSON object in model response", nil)
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return GameData{}, common.NewKindError(common.CodeParse, "decode model JSON", err)
	}
	if err := envelope.Validate(doc); err != nil {
		return GameData{}, common.NewKindError(common.CodeParse, "players list missing from model response", err)
	}

	root := doc.(map[string]any)
	entries := root["players"].([]any)

	out := GameData{Players: make([]Player, 0, len(entries))}
	if notes, ok := root["extractionNotes"].(string); ok {
		out.ExtractionNotes = strings.TrimSpace(notes)
	}

	for _, raw := range entries {
		entry, _ := raw.(map[string]any)
		name, _ := entry["playerName"].(string)

		p := Player{PlayerName: SanitizeName(name)}
		if bd, ok := entry["scoringBreakdown"].(map[string]any); ok {
			p.ScoringBreakdown = coerceBreakdown(bd)
		}
		// The model's own total is discarded: per-row digits are read more reliably
		// than one large number.
		p.TotalScore = p.ScoringBreakdown.Sum()
		out.Players = append(out.Players, p)
	}

	out.AssignPlacements()
	return out, nil
}

// SanitizeName trims, strips markup-significant characters and caps the length.
func SanitizeName(name string) string {
	name = reNameJunk.ReplaceAllString(strings.TrimSpace(name), "")
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}

// locatePayload prefers a fenced block, then falls back to the first balanced object.
func locatePayload(text string) string {
	for _, m := range reFenced.FindAllStringSubmatch(text, -1) {
		if obj := firstBalancedObject(m[1]); obj != "" {
			return obj
		}
	}
	return firstBalancedObject(text)
}

// firstBalancedObject returns the first {...} span whose braces balance, ignoring braces
// inside JSON strings.
func firstBalancedObject(s string) string {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > 0 {
			return s[start : end+1]
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return ""
}

func matchBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// coerceBreakdown reads every category from bd. Printed labels ("Bonus cards",
// "cached food") are accepted, but an exact JSON key always wins. Labels are applied
// in sorted key order, so when two labels name the same category the later key wins.
func coerceBreakdown(bd map[string]any) Breakdown {
	var out Breakdown
	for _, key := range slices.Sorted(maps.Keys(bd)) {
		c, ok := constants.Canonicalize(key)
		if !ok || string(c) == key {
			continue
		}
		out.Set(c, coerceCount(bd[key]))
	}
	for _, c := range constants.Categories() {
		if v, ok := bd[string(c)]; ok {
			out.Set(c, coerceCount(v))
		}
	}
	return out
}

// coerceCount converts a decoded JSON value to a non-negative integer count.
// Non-numeric, negative, fractional and non-finite values collapse to 0.
func coerceCount(v any) int {
	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0
		}
		f = n
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = n
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > maxCount || f != math.Trunc(f) {
		return 0
	}
	return int(f)
}
