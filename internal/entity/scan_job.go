package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScanJob is one audited screenshot scan, for data transfer between layers.
type ScanJob struct {
	ID            uuid.UUID       `json:"id"`
	CallerID      string          `json:"caller_id"`
	Filename      string          `json:"filename"`
	MediaType     string          `json:"media_type"`
	RawBytes      int             `json:"raw_bytes"`
	PreparedBytes *int            `json:"prepared_bytes,omitempty"`
	Status        string          `json:"status"`
	ErrorCode     *string         `json:"error_code,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	Confidence    *float64        `json:"confidence,omitempty"`
	NeedsReview   bool            `json:"needs_review"`
	ExtractedJSON json.RawMessage `json:"extracted_json,omitempty"`
	ModelName     *string         `json:"model_name,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
}
