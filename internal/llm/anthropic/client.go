package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/llm"
)

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ExtractScores implements llm.VisionExtractor with one Messages API call carrying the
// screenshot as a base64 image block followed by the scoresheet prompt.
func (c *Client) ExtractScores(ctx context.Context, req llm.ExtractRequest) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()

	if c.cfg.APIKey == "" {
		c.logger.Error("llm.extract.missing_api_key", "req_id", rid, "provider", "anthropic")
		return "", common.NewKindError(common.CodeConfiguration, "ANTHROPIC_API_KEY is not set", nil)
	}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", "anthropic",
		"model", c.cfg.Model,
		"media_type", req.MediaType,
		"image_bytes", len(req.Image),
		"base64_bytes", llm.EncodedLen(len(req.Image)),
		"filename", req.FilenameHint,
	)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.MaxTokens,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{
						"type": "image",
						"source": map[string]any{
							"type":       "base64",
							"media_type": req.MediaType,
							"data":       llm.Base64(req.Image),
						},
					},
					{"type": "text", "text": llm.BuildScoresheetPrompt()},
				},
			},
		},
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": c.cfg.Version,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/messages"
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

	var mr messagesResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewKindError(common.CodeExternalService, "decode anthropic response", err)
	}

	var text string
	for _, block := range mr.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		c.logger.Error("llm.extract.no_text",
			"req_id", rid, "blocks", len(mr.Content), "stop_reason", mr.StopReason,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewKindError(common.CodeExternalService,
			fmt.Sprintf("no text content in anthropic response (stop_reason=%s)", mr.StopReason), nil)
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"model", c.cfg.Model,
		"stop_reason", mr.StopReason,
		"input_tokens", mr.Usage.InputTokens,
		"output_tokens", mr.Usage.OutputTokens,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
