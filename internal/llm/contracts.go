package llm

import "context"

// ExtractRequest carries one prepared screenshot to a vision provider.
type ExtractRequest struct {
	Image     []byte
	MediaType string
	// FilenameHint is used for logging only; it is never sent to the provider.
	FilenameHint string
}

// VisionExtractor is the interface our pipeline depends on. ExtractScores returns the
// provider's reply text verbatim; failures are classified into the common error kinds.
type VisionExtractor interface {
	ExtractScores(ctx context.Context, req ExtractRequest) (string, error)
	// Model names the model the provider will call, for audit records.
	Model() string
}
