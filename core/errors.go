package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	BrokerErrorAuthorizationDenied = "BROKER_AUTHORIZATION_DENIED"
	BrokerErrorMissingCode         = "BROKER_MISSING_CODE"
	BrokerErrorAuthorizationFailed = "BROKER_AUTHORIZATION_FAILED"
	BrokerErrorNoCredential        = "BROKER_NO_CREDENTIAL"
	BrokerErrorRefreshFailed       = "BROKER_REFRESH_FAILED"
	BrokerErrorStorageFailed       = "BROKER_STORAGE_FAILED"
	BrokerErrorInternal            = "BROKER_INTERNAL_ERROR"
)

// ErrTokenNotFound signals that the credential slot is empty. Store
// implementations return it from Get and from Update when no row matched.
var ErrTokenNotFound = errors.New("core: stored token not found")

// IsTokenNotFound reports whether err signals an empty credential slot.
func IsTokenNotFound(err error) bool {
	return errors.Is(err, ErrTokenNotFound)
}

// AuthorizationDeniedError reports that the user (or the provider) aborted
// the consent flow. No provider call and no store write happened.
func AuthorizationDeniedError(errorParam string) error {
	message := "core: authorization denied"
	if trimmed := strings.TrimSpace(errorParam); trimmed != "" {
		message = fmt.Sprintf("core: authorization denied: %s", trimmed)
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusBadRequest).
		WithTextCode(BrokerErrorAuthorizationDenied)
}

// MissingCodeError reports a callback that carried neither a code nor an
// error parameter.
func MissingCodeError() error {
	return goerrors.New("core: authorization code is required", goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(BrokerErrorMissingCode)
}

// AuthorizationFailedError wraps a failed authorization-code exchange. The
// stored record is left unchanged.
func AuthorizationFailedError(cause error) error {
	return goerrors.Wrap(cause, goerrors.CategoryExternal, "core: authorization code exchange failed").
		WithCode(http.StatusInternalServerError).
		WithTextCode(BrokerErrorAuthorizationFailed)
}

// NoCredentialError reports a refresh or token read with nothing stored.
func NoCredentialError() error {
	return goerrors.Wrap(ErrTokenNotFound, goerrors.CategoryNotFound, "core: no credential stored").
		WithCode(http.StatusNotFound).
		WithTextCode(BrokerErrorNoCredential)
}

// RefreshFailedError wraps a failed refresh-token exchange. The stored
// record is left unchanged.
func RefreshFailedError(cause error) error {
	return goerrors.Wrap(cause, goerrors.CategoryExternal, "core: refresh token exchange failed").
		WithCode(http.StatusInternalServerError).
		WithTextCode(BrokerErrorRefreshFailed)
}

// StorageError wraps a store-layer failure.
func StorageError(cause error) error {
	return goerrors.Wrap(cause, goerrors.CategoryInternal, "core: credential store operation failed").
		WithCode(http.StatusInternalServerError).
		WithTextCode(BrokerErrorStorageFailed)
}

// EnsureErrorEnvelope guarantees every error leaving the broker carries an
// HTTP status code and a text code.
func EnsureErrorEnvelope(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code == 0 {
			richErr.Code = brokerHTTPStatus(richErr.Category)
		}
		if strings.TrimSpace(richErr.TextCode) == "" {
			richErr.TextCode = defaultBrokerTextCode(richErr.Category)
		}
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, err.Error()).
		WithCode(http.StatusInternalServerError).
		WithTextCode(BrokerErrorInternal)
}

func defaultBrokerTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return BrokerErrorMissingCode
	case goerrors.CategoryNotFound:
		return BrokerErrorNoCredential
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return BrokerErrorAuthorizationDenied
	case goerrors.CategoryExternal:
		return BrokerErrorAuthorizationFailed
	default:
		return BrokerErrorInternal
	}
}

func brokerHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
