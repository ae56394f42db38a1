package upwork

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/skillbridge/upwork-oauth-broker/core"
)

const (
	DefaultAuthURL  = "https://www.upwork.com/ab/account-security/oauth2/authorize"
	DefaultTokenURL = "https://www.upwork.com/api/v3/oauth2/token"

	defaultTokenRequestTimeout = 10 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the token client. RedirectURI is a fixed, pre-registered
// value; it must exactly match the URI registered with Upwork or the
// exchange fails.
type Config struct {
	ClientID            string
	ClientSecret        string
	RedirectURI         string
	AuthURL             string
	TokenURL            string
	TokenRequestTimeout time.Duration
	Now                 func() time.Time
	HTTPClient          HTTPDoer
}

// TokenClient sends the two token-endpoint exchanges. It never retries;
// callers decide retry policy.
type TokenClient struct {
	cfg        Config
	httpClient HTTPDoer
}

func NewTokenClient(cfg Config) (*TokenClient, error) {
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.RedirectURI = strings.TrimSpace(cfg.RedirectURI)
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("upwork: client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("upwork: client secret is required")
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("upwork: redirect uri is required")
	}

	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}

	return &TokenClient{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

// AuthorizationURL builds the consent-screen URL embedding the client id,
// the fixed redirect URI, and response type "code".
func (c *TokenClient) AuthorizationURL() string {
	if c == nil {
		return ""
	}
	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", c.cfg.ClientID)
	values.Set("redirect_uri", c.cfg.RedirectURI)

	authURL := c.cfg.AuthURL
	if strings.Contains(authURL, "?") {
		return authURL + "&" + values.Encode()
	}
	return authURL + "?" + values.Encode()
}

// ExchangeAuthorizationCode trades a consent code for a token pair.
func (c *TokenClient) ExchangeAuthorizationCode(ctx context.Context, code string) (core.TokenResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return core.TokenResult{}, &ExchangeError{
			Message: "authorization code is required",
			Cause:   ErrExchangeFailed,
		}
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)

	return c.fetchToken(ctx, form, ErrExchangeFailed)
}

// ExchangeRefreshToken trades a refresh token for a new pair. The redirect
// URI is not part of this grant.
func (c *TokenClient) ExchangeRefreshToken(ctx context.Context, refreshToken string) (core.TokenResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.TokenResult{}, &ExchangeError{
			Message: "refresh token is required",
			Cause:   ErrRefreshFailed,
		}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	return c.fetchToken(ctx, form, ErrRefreshFailed)
}

func (c *TokenClient) fetchToken(ctx context.Context, form url.Values, sentinel error) (core.TokenResult, error) {
	if c == nil || c.httpClient == nil {
		return core.TokenResult{}, &ExchangeError{
			Message: "http client is not configured",
			Cause:   sentinel,
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	requestCtx := ctx
	cancel := func() {}
	if c.cfg.TokenRequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.cfg.TokenRequestTimeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		c.cfg.TokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return core.TokenResult{}, &ExchangeError{
			Message: "build token request",
			Cause:   err,
		}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return core.TokenResult{}, &ExchangeError{
			Message: "token request failed",
			Cause:   err,
		}
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return core.TokenResult{}, &ExchangeError{
			StatusCode: response.StatusCode,
			Message:    "read token response",
			Cause:      readErr,
		}
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return core.TokenResult{}, &ExchangeError{
			StatusCode: response.StatusCode,
			Message:    fmt.Sprintf("token response exceeds %d bytes", maxTokenResponseBodyBytes),
			Cause:      sentinel,
		}
	}

	payload := map[string]any{}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return core.TokenResult{}, &ExchangeError{
				StatusCode: response.StatusCode,
				Message:    "decode token response",
				Cause:      err,
			}
		}
	}

	errorCode := strings.TrimSpace(readAnyString(payload["error"]))
	errorDescription := strings.TrimSpace(readAnyString(payload["error_description"]))
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices || errorCode != "" {
		if errorDescription == "" {
			errorDescription = "token exchange rejected by provider"
		}
		return core.TokenResult{}, &ExchangeError{
			StatusCode: response.StatusCode,
			ErrorCode:  errorCode,
			Message:    errorDescription,
			Cause:      sentinel,
		}
	}

	accessToken := strings.TrimSpace(readAnyString(payload["access_token"]))
	if accessToken == "" {
		return core.TokenResult{}, &ExchangeError{
			StatusCode: response.StatusCode,
			Message:    "token response missing access token",
			Cause:      sentinel,
		}
	}

	return core.TokenResult{
		AccessToken:  accessToken,
		RefreshToken: strings.TrimSpace(readAnyString(payload["refresh_token"])),
		ExpiresIn:    readAnyInt64(payload["expires_in"]),
	}, nil
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

var _ core.TokenExchanger = (*TokenClient)(nil)
