package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/imageprep"
	"github.com/joseph-ayodele/wingspan-tracker/internal/llm"
)

const threePlayerReply = "```json\n" + `{
  "players": [
    {"playerName": "Wren", "totalScore": 86, "scoringBreakdown": {"birds": 38, "bonusCards": 9, "endOfRoundGoals": 10, "eggs": 14, "foodOnCards": 4, "tuckedCards": 8, "nectar": 3}},
    {"playerName": "Robin", "totalScore": 110, "scoringBreakdown": {"birds": 45, "bonusCards": 12, "endOfRoundGoals": 15, "eggs": 18, "foodOnCards": 6, "tuckedCards": 10, "nectar": 4}},
    {"playerName": "Heron", "totalScore": 66, "scoringBreakdown": {"birds": 30, "bonusCards": 7, "endOfRoundGoals": 8, "eggs": 12, "foodOnCards": 2, "tuckedCards": 5, "nectar": 2}}
  ],
  "extractionNotes": "No issues noticed."
}` + "\n```"

type fakeVision struct {
	reply string
	err   error
	calls int
	last  llm.ExtractRequest
}

func (f *fakeVision) ExtractScores(_ context.Context, req llm.ExtractRequest) (string, error) {
	f.calls++
	f.last = req
	return f.reply, f.err
}

func (f *fakeVision) Model() string { return "fake-vision-1" }

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestProcess_EndToEnd(t *testing.T) {
	const limit = 60_000
	data := noisePNG(t, 600, 400)
	if len(data) <= limit {
		t.Fatalf("fixture must exceed the ceiling, got %d bytes", len(data))
	}

	vision := &fakeVision{reply: threePlayerReply}
	p := NewProcessor(imageprep.New(imageprep.Options{MaxRawBytes: limit}, nil), vision)

	res, err := p.Process(context.Background(), "user-1", imageprep.RawUpload{
		Data: data, MediaType: "image/png", Filename: "final-scores.png",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(vision.last.Image) > limit || vision.last.MediaType != constants.MediaTypeJPEG {
		t.Errorf("sent %d bytes of %s, want jpeg under %d", len(vision.last.Image), vision.last.MediaType, limit)
	}
	if !res.Image.Resized || res.Image.Bytes != len(vision.last.Image) {
		t.Errorf("image info = %+v", res.Image)
	}

	gotPlacements := map[string]int{}
	for _, pl := range res.Data.Players {
		gotPlacements[pl.PlayerName] = pl.Placement
	}
	if diff := cmp.Diff(map[string]int{"Robin": 1, "Wren": 2, "Heron": 3}, gotPlacements); diff != "" {
		t.Errorf("placements mismatch (-want +got):\n%s", diff)
	}
	if res.Confidence < 0.9 {
		t.Errorf("confidence = %.2f, want >= 0.9", res.Confidence)
	}
	if res.Warnings != nil {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}
	if res.NeedsReview() {
		t.Error("clean extraction flagged for review")
	}
	if res.Model != "fake-vision-1" {
		t.Errorf("model = %q", res.Model)
	}
}

func TestProcess_Failures(t *testing.T) {
	small := noisePNG(t, 8, 8)
	upload := imageprep.RawUpload{Data: small, MediaType: "image/png", Filename: "s.png"}

	tests := []struct {
		name      string
		upload    imageprep.RawUpload
		vision    *fakeVision
		opts      []Option
		kind      error
		wantCalls int
	}{
		{
			name:   "rate limited before any work",
			upload: upload,
			vision: &fakeVision{reply: threePlayerReply},
			opts:   []Option{WithGate(denyAll{})},
			kind:   common.ErrUploadRateLimited,
		},
		{
			name:   "spoofed upload",
			upload: imageprep.RawUpload{Data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}, MediaType: "image/png", Filename: "s.png"},
			vision: &fakeVision{reply: threePlayerReply},
			kind:   common.ErrValidation,
		},
		{
			name:      "provider timeout",
			upload:    upload,
			vision:    &fakeVision{err: common.NewKindError(common.CodeTimeout, "vision request timed out", context.DeadlineExceeded)},
			kind:      common.ErrTimeout,
			wantCalls: 1,
		},
		{
			name:      "unparseable reply",
			upload:    upload,
			vision:    &fakeVision{reply: "Sorry, I can't read that."},
			kind:      common.ErrParse,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(imageprep.New(imageprep.Options{}, nil), tt.vision, tt.opts...)
			_, err := p.Process(context.Background(), "user-1", tt.upload)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want kind %v", err, tt.kind)
			}
			if tt.vision.calls != tt.wantCalls {
				t.Errorf("vision calls = %d, want %d", tt.vision.calls, tt.wantCalls)
			}
		})
	}
}

func TestProcess_FlagsImplausibleResult(t *testing.T) {
	vision := &fakeVision{reply: `{"players":[{"playerName":"?","scoringBreakdown":{"birds":12}}],"extractionNotes":"Image was blurry"}`}
	p := NewProcessor(imageprep.New(imageprep.Options{}, nil), vision)

	res, err := p.Process(context.Background(), "user-1", imageprep.RawUpload{
		Data: noisePNG(t, 8, 8), MediaType: "image/png", Filename: "s.png",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := []string{
		`Player 1: Name "?" seems too short`,
		"?: Score 12 is unusually low - please verify",
		"Extraction notes: Image was blurry",
	}
	if diff := cmp.Diff(want, res.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
	if !res.NeedsReview() {
		t.Error("implausible result not flagged")
	}
}
