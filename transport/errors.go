package transport

import (
	"net/http"
	"strings"

	"github.com/skillbridge/upwork-oauth-broker/core"
)

type errorEnvelope struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// resolveError converts any broker error into the HTTP status and JSON
// envelope the surface exposes. Errors without a rich envelope fall through
// to 500.
func resolveError(err error) (int, errorEnvelope) {
	rich := core.EnsureErrorEnvelope(err)
	if rich == nil {
		return http.StatusInternalServerError, errorEnvelope{
			Error: "unknown error",
			Code:  core.BrokerErrorInternal,
		}
	}
	status := rich.Code
	if status < http.StatusBadRequest || status > http.StatusNetworkAuthenticationRequired {
		status = http.StatusInternalServerError
	}
	message := strings.TrimSpace(rich.Message)
	if message == "" {
		message = "an unexpected error occurred"
	}
	return status, errorEnvelope{
		Error: message,
		Code:  rich.TextCode,
	}
}
