package scoresheet

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
)

const twoPlayerReply = `Here are the scores I could read:

` + "```json" + `
{
  "players": [
    {
      "playerName": "Robin",
      "totalScore": 999,
      "scoringBreakdown": {"birds": 41, "bonusCards": 9, "endOfRoundGoals": 12, "eggs": 11, "foodOnCards": 4, "tuckedCards": 8, "nectar": 3}
    },
    {
      "playerName": "Wren",
      "totalScore": 80,
      "scoringBreakdown": {"birds": 30, "bonusCards": 14, "endOfRoundGoals": 7, "eggs": 14, "foodOnCards": 6, "tuckedCards": 10, "nectar": 6}
    }
  ],
  "extractionNotes": "Wren's egg count was partially obscured"
}
` + "```" + `
Let me know if you need anything else.`

func TestNormalize_FencedReply(t *testing.T) {
	got, err := Normalize(twoPlayerReply)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	want := GameData{
		Players: []Player{
			{
				PlayerName: "Robin",
				Placement:  1,
				TotalScore: 88,
				ScoringBreakdown: Breakdown{
					Birds: 41, BonusCards: 9, EndOfRoundGoals: 12, Eggs: 11, FoodOnCards: 4, TuckedCards: 8, Nectar: 3,
				},
			},
			{
				PlayerName: "Wren",
				Placement:  2,
				TotalScore: 87,
				ScoringBreakdown: Breakdown{
					Birds: 30, BonusCards: 14, EndOfRoundGoals: 7, Eggs: 14, FoodOnCards: 6, TuckedCards: 10, Nectar: 6,
				},
			},
		},
		ExtractionNotes: "Wren's egg count was partially obscured",
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_BareObjectWithProse(t *testing.T) {
	text := `Sure. {"players":[{"playerName":"a}b","scoringBreakdown":{"birds":50,"eggs":"12"}}]} Hope that helps {not json}`

	got, err := Normalize(text)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got.Players) != 1 {
		t.Fatalf("players = %d, want 1", len(got.Players))
	}
	p := got.Players[0]
	if p.PlayerName != "a}b" {
		t.Errorf("name = %q, want %q", p.PlayerName, "a}b")
	}
	if p.ScoringBreakdown.Eggs != 12 || p.TotalScore != 62 || p.Placement != 1 {
		t.Errorf("unexpected player %+v", p)
	}
}

func TestNormalize_SkipsUnbalancedLeadingBrace(t *testing.T) {
	text := `{ I think the result is {"players": []}`

	got, err := Normalize(text)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got.Players) != 0 {
		t.Errorf("players = %d, want 0", len(got.Players))
	}
}

func TestNormalize_Coercion(t *testing.T) {
	text := `{"players":[
		{"playerName":"  Kestrel  ","totalScore":"abc","scoringBreakdown":{
			"birds":"22","bonusCards":3.5,"endOfRoundGoals":-4,"eggs":null,"foodOnCards":true,"tuckedCards":"7.0"
		}},
		7,
		{"playerName":42,"totalScore":60},
		{"playerName":"Owl","scoringBreakdown":{"Bonus cards":5,"cached food":2,"birds":1e2}}
	]}`

	got, err := Normalize(text)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	want := []Player{
		{PlayerName: "Kestrel", Placement: 2, TotalScore: 29, ScoringBreakdown: Breakdown{Birds: 22, TuckedCards: 7}},
		{PlayerName: "", Placement: 3, TotalScore: 0},
		{PlayerName: "", Placement: 3, TotalScore: 0},
		{PlayerName: "Owl", Placement: 1, TotalScore: 107, ScoringBreakdown: Breakdown{Birds: 100, BonusCards: 5, FoodOnCards: 2}},
	}
	if diff := cmp.Diff(want, got.Players); diff != "" {
		t.Errorf("players mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_ExactKeyWinsOverLabel(t *testing.T) {
	got, err := Normalize(`{"players":[{"playerName":"Jay","scoringBreakdown":{"Birds":10,"birds":40}}]}`)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if b := got.Players[0].ScoringBreakdown.Birds; b != 40 {
		t.Errorf("birds = %d, want 40", b)
	}
}

func TestNormalize_ConflictingLabelsResolveTheSameWay(t *testing.T) {
	const reply = `{"players":[{"playerName":"Ann","scoringBreakdown":{"bonus":5,"Bonus cards":9,"birds":40}}]}`

	first, err := Normalize(reply)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	// "Bonus cards" sorts before "bonus", so "bonus" is applied last.
	if got := first.Players[0].ScoringBreakdown.BonusCards; got != 5 {
		t.Errorf("bonusCards = %d, want 5", got)
	}

	for i := 0; i < 200; i++ {
		again, err := Normalize(reply)
		if err != nil {
			t.Fatalf("Normalize #%d: %v", i, err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestNormalize_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "no json", text: "I could not read this screenshot."},
		{name: "empty", text: ""},
		{name: "missing players", text: `{"result": "ok"}`},
		{name: "players not a list", text: `{"players": {"playerName": "x"}}`},
		{name: "unbalanced", text: `{"players": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.text)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, common.ErrParse) {
				t.Errorf("error %v is not a parse error", err)
			}
			if common.CodeOf(err) != common.CodeParse {
				t.Errorf("code = %s, want %s", common.CodeOf(err), common.CodeParse)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	first, err := Normalize(twoPlayerReply)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	raw, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := Normalize(string(raw))
	if err != nil {
		t.Fatalf("Normalize again: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second pass changed data (-first +second):\n%s", diff)
	}
}

func TestNormalize_TotalAlwaysMatchesBreakdown(t *testing.T) {
	got, err := Normalize(twoPlayerReply)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for _, p := range got.Players {
		if p.TotalScore != p.ScoringBreakdown.Sum() {
			t.Errorf("%s: total %d != breakdown sum %d", p.PlayerName, p.TotalScore, p.ScoringBreakdown.Sum())
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "  Alice ", want: "Alice"},
		{in: `<script>alert("x")</script>`, want: "scriptalert(x)/script"},
		{in: "O'Brien", want: "OBrien"},
		{in: strings.Repeat("é", 60), want: strings.Repeat("é", 50)},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
