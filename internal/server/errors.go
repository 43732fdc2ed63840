package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/llm"
)

// httpStatus maps an error kind to the status returned to the browser. Upstream vision
// failures are reported as gateway errors, caller mistakes as 4xx.
func httpStatus(err error) int {
	if errors.Is(err, llm.ErrImageTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	if errors.Is(err, common.ErrRateLimit) {
		// the vision service is saturated, not the caller
		return http.StatusServiceUnavailable
	}
	switch common.GRPCCode(err) {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DataLoss, codes.Unknown:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown next to the upload form.
func userMessage(err error, elapsed time.Duration) string {
	var ve common.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, common.ErrUploadRateLimited):
		return "Rate limit exceeded. Please try again later."
	case errors.Is(err, llm.ErrImageTooLarge):
		return "Image is too large for processing. Please try a smaller screenshot or a different image."
	case errors.Is(err, common.ErrConfiguration):
		return "API key not configured. Please contact the administrator."
	case errors.Is(err, common.ErrRateLimit):
		return "API rate limit exceeded. Please try again later."
	case errors.Is(err, common.ErrTimeout):
		return fmt.Sprintf("Request timed out after %dms. The image processing is taking too long. Please try again.",
			elapsed.Milliseconds())
	case errors.Is(err, common.ErrAuthentication):
		return "API authentication failed. Please contact the administrator."
	case errors.Is(err, common.ErrServiceUnavailable):
		return "Screenshot processing model is unavailable. Please contact the administrator to update the app."
	case errors.Is(err, common.ErrNetwork):
		return "Cannot connect to API service. Please check your connection and try again."
	case errors.Is(err, common.ErrParse):
		return "Could not read scores from the screenshot. Please try a clearer image."
	case errors.Is(err, common.ErrExternalService):
		return "Screenshot processing failed. Please try again."
	default:
		return "Internal server error"
	}
}
