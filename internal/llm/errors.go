package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
)

// ErrImageTooLarge marks a provider rejection of the image payload size. It travels
// inside an external-service error so callers can suggest a smaller screenshot.
var ErrImageTooLarge = errors.New("image exceeds provider size limit")

// Classify maps a transport or provider failure onto exactly one error kind. Errors that
// already carry a kind are returned unchanged; unrecognized ones become external-service
// errors with the original wrapped.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *common.AppError
	if errors.As(err, &ae) {
		return err
	}

	msg := strings.ToLower(err.Error())
	status := 0
	var se *StatusError
	if errors.As(err, &se) {
		status = se.Status
	}

	switch {
	case containsAny(msg, "exceeds 5 mb", "5242880", "image exceeds", "image too large"):
		return common.NewKindError(common.CodeExternalService, "image rejected as too large",
			errors.Join(ErrImageTooLarge, err))
	case containsAny(msg, "api key", "api_key") && status != http.StatusUnauthorized:
		return common.NewKindError(common.CodeConfiguration, "vision api key not accepted", err)
	case status == http.StatusTooManyRequests || containsAny(msg, "rate limit", "rate_limit"):
		return common.NewKindError(common.CodeRateLimit, "vision provider rate limit", err)
	case isTimeout(err) || containsAny(msg, "timeout", "etimedout", "deadline exceeded"):
		return common.NewKindError(common.CodeTimeout, "vision request timed out", err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		containsAny(msg, "authentication", "permission_error"):
		return common.NewKindError(common.CodeAuthentication, "vision provider rejected credentials", err)
	case containsAny(msg, "not_found_error", "model_not_found") ||
		(status == http.StatusNotFound && strings.Contains(msg, "model")):
		return common.NewKindError(common.CodeServiceUnavailable, "vision model not found", err)
	case isNetwork(err) || containsAny(msg, "enotfound", "econnrefused", "no such host", "connection refused"):
		return common.NewKindError(common.CodeNetwork, "cannot reach vision provider", err)
	}
	return common.NewKindError(common.CodeExternalService, "vision provider error", err)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isNetwork(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
