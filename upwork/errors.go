package upwork

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExchangeFailed = errors.New("upwork: authorization code exchange failed")
	ErrRefreshFailed  = errors.New("upwork: refresh token exchange failed")
)

// ExchangeError carries the provider's token-endpoint error payload.
type ExchangeError struct {
	StatusCode int
	ErrorCode  string
	Message    string
	Cause      error
}

func (e *ExchangeError) Error() string {
	if e == nil {
		return ErrExchangeFailed.Error()
	}
	base := "upwork: token endpoint error"
	if strings.TrimSpace(e.ErrorCode) != "" {
		base += ": " + strings.TrimSpace(e.ErrorCode)
	}
	if strings.TrimSpace(e.Message) != "" {
		base += ": " + strings.TrimSpace(e.Message)
	}
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (status=%d)", e.StatusCode)
	}
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}
	return base
}

func (e *ExchangeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
