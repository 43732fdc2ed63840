package openai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/llm"
	"github.com/joseph-ayodele/wingspan-tracker/internal/scoresheet"
)

// ExtractScores implements llm.VisionExtractor using chat/completions with the screenshot
// attached as an image_url data URL. The reply schema rides along as a system message.
func (c *Client) ExtractScores(ctx context.Context, req llm.ExtractRequest) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	if c.cfg.APIKey == "" {
		c.logger.Error("llm.extract.missing_api_key", "req_id", rid, "provider", "openai")
		return "", common.NewKindError(common.CodeConfiguration, "OPENAI_API_KEY is not set", nil)
	}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", "openai",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"media_type", req.MediaType,
		"image_bytes", len(req.Image),
		"filename", req.FilenameHint,
	)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := map[string]any{
		"model":                 c.cfg.Model,
		"max_completion_tokens": c.cfg.MaxTokens,
		"response_format":       map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildScoresheetPrompt()},
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": "Extract the scores from this screenshot. Return ONLY JSON that matches the provided schema."},
					{"type": "image_url", "image_url": map[string]any{"url": llm.DataURL(req.MediaType, req.Image)}},
				},
			},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(scoresheet.ReplyJSONSchema())},
		},
	}
	if c.cfg.Temperature > 0 {
		body["temperature"] = c.cfg.Temperature
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		classified := llm.Classify(err)
		c.logger.Error("llm.extract.http_error",
			"req_id", rid,
			"error", err,
			"code", common.CodeOf(classified),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", classified
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewKindError(common.CodeExternalService, "decode openai response", err)
	}
	if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid, "choices", len(cc.Choices),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewKindError(common.CodeExternalService, "no content in openai response", nil)
	}
	content := cc.Choices[0].Message.Content

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"model", c.cfg.Model,
		"finish_reason", cc.Choices[0].FinishReason,
		"text_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
