package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingCredential = errors.New("provider API key is required")
	ErrInvalidCredential = errors.New("invalid provider API key")
	ErrQuotaExceeded     = errors.New("provider quota exceeded")
	ErrProvider          = errors.New("AI service error")
	ErrEmptyResponse     = errors.New("empty response from model")
)

// Classify maps a raw provider error onto ErrInvalidCredential,
// ErrQuotaExceeded or ErrProvider. The original error stays in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrProvider) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"),
		strings.Contains(msg, "api_key_invalid"),
		strings.Contains(msg, "unauthenticated"),
		strings.Contains(msg, "permission_denied"):
		return fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	case strings.Contains(msg, "quota"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "error 429"):
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	default:
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
}

// Detail returns the provider's own message from an error wrapped by
// Classify.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	marker := ErrProvider.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}
