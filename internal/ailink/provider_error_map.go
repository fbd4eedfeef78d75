package ailink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quizai/quizai/internal/ailink/driver"
	"github.com/quizai/quizai/internal/core"
)

// mapProviderError converts a driver failure into the domain AI error,
// classifying the provider status for the message.
func mapProviderError(err error) *core.AIServiceError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.AIServiceError{Err: fmt.Errorf("provider request timed out: %w", err)}
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		status := perr.StatusCode
		details := strings.TrimSpace(perr.Message)
		var reason string
		switch {
		case status == 401 || status == 403:
			reason = "provider authentication failed"
		case status == 429:
			reason = "provider rate limited"
		case status >= 500 && status <= 599:
			reason = "provider unavailable"
		case status >= 400 && status <= 499:
			reason = "provider rejected request"
		default:
			reason = "provider request failed"
		}
		if details != "" {
			reason += ": " + truncate(details, 512)
		}
		return &core.AIServiceError{StatusCode: status, Err: fmt.Errorf("%s: %w", reason, err)}
	}

	return &core.AIServiceError{Err: err}
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
