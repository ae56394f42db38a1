package upwork

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

type fakeDoer struct {
	requests []*http.Request
	bodies   []url.Values
	response *http.Response
	err      error
}

func (d *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, err
	}
	d.bodies = append(d.bodies, form)
	if d.err != nil {
		return nil, d.err
	}
	return d.response, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, doer *fakeDoer) *TokenClient {
	t.Helper()
	client, err := NewTokenClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://broker.example/upwork/callback",
		TokenURL:     "https://provider.example/oauth2/token",
		HTTPClient:   doer,
	})
	if err != nil {
		t.Fatalf("new token client: %v", err)
	}
	return client
}

func TestNewTokenClient_RequiredFields(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing client id", Config{ClientSecret: "s", RedirectURI: "r"}},
		{"missing client secret", Config{ClientID: "c", RedirectURI: "r"}},
		{"missing redirect uri", Config{ClientID: "c", ClientSecret: "s"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTokenClient(tc.cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestAuthorizationURL(t *testing.T) {
	client := newTestClient(t, &fakeDoer{})

	target := client.AuthorizationURL()
	parsed, err := url.Parse(target)
	if err != nil {
		t.Fatalf("parse authorization url: %v", err)
	}
	if !strings.HasPrefix(target, DefaultAuthURL+"?") {
		t.Fatalf("expected default authorize endpoint, got %q", target)
	}

	query := parsed.Query()
	if got := query.Get("response_type"); got != "code" {
		t.Fatalf("expected response_type=code, got %q", got)
	}
	if got := query.Get("client_id"); got != "client-id" {
		t.Fatalf("expected client_id, got %q", got)
	}
	if got := query.Get("redirect_uri"); got != "https://broker.example/upwork/callback" {
		t.Fatalf("expected redirect_uri, got %q", got)
	}
}

func TestExchangeAuthorizationCode_FormFields(t *testing.T) {
	doer := &fakeDoer{
		response: jsonResponse(http.StatusOK, `{"access_token":"A1","refresh_token":"R1","expires_in":3600}`),
	}
	client := newTestClient(t, doer)

	result, err := client.ExchangeAuthorizationCode(context.Background(), "CODE1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if result.AccessToken != "A1" || result.RefreshToken != "R1" || result.ExpiresIn != 3600 {
		t.Fatalf("unexpected result %+v", result)
	}

	if len(doer.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(doer.requests))
	}
	req := doer.requests[0]
	if req.Method != http.MethodPost {
		t.Fatalf("expected POST, got %s", req.Method)
	}
	if got := req.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
		t.Fatalf("expected form content type, got %q", got)
	}
	if got := req.Header.Get("Accept"); got != "application/json" {
		t.Fatalf("expected json accept header, got %q", got)
	}

	form := doer.bodies[0]
	expect := map[string]string{
		"grant_type":    "authorization_code",
		"code":          "CODE1",
		"redirect_uri":  "https://broker.example/upwork/callback",
		"client_id":     "client-id",
		"client_secret": "client-secret",
	}
	for key, want := range expect {
		if got := form.Get(key); got != want {
			t.Fatalf("expected %s=%q, got %q", key, want, got)
		}
	}
}

func TestExchangeRefreshToken_FormFields(t *testing.T) {
	doer := &fakeDoer{
		response: jsonResponse(http.StatusOK, `{"access_token":"A2","refresh_token":"R2","expires_in":7200}`),
	}
	client := newTestClient(t, doer)

	result, err := client.ExchangeRefreshToken(context.Background(), "R1")
	if err != nil {
		t.Fatalf("refresh exchange: %v", err)
	}
	if result.AccessToken != "A2" || result.RefreshToken != "R2" {
		t.Fatalf("unexpected result %+v", result)
	}

	form := doer.bodies[0]
	if got := form.Get("grant_type"); got != "refresh_token" {
		t.Fatalf("expected grant_type=refresh_token, got %q", got)
	}
	if got := form.Get("refresh_token"); got != "R1" {
		t.Fatalf("expected refresh_token=R1, got %q", got)
	}
	if form.Has("redirect_uri") {
		t.Fatal("refresh grant must not carry redirect_uri")
	}
	if form.Get("client_id") != "client-id" || form.Get("client_secret") != "client-secret" {
		t.Fatal("expected client credentials in form body")
	}
}

func TestExchangeAuthorizationCode_EmptyCode(t *testing.T) {
	doer := &fakeDoer{}
	client := newTestClient(t, doer)

	_, err := client.ExchangeAuthorizationCode(context.Background(), "  ")
	if err == nil {
		t.Fatal("expected error for empty code")
	}
	if !errors.Is(err, ErrExchangeFailed) {
		t.Fatalf("expected exchange sentinel, got %v", err)
	}
	if len(doer.requests) != 0 {
		t.Fatalf("expected no request, got %d", len(doer.requests))
	}
}

func TestFetchToken_ProviderRejection(t *testing.T) {
	doer := &fakeDoer{
		response: jsonResponse(http.StatusBadRequest, `{"error":"invalid_grant","error_description":"code expired"}`),
	}
	client := newTestClient(t, doer)

	_, err := client.ExchangeAuthorizationCode(context.Background(), "CODE1")
	if err == nil {
		t.Fatal("expected provider rejection error")
	}
	if !errors.Is(err, ErrExchangeFailed) {
		t.Fatalf("expected exchange sentinel, got %v", err)
	}

	var exchangeErr *ExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("expected *ExchangeError, got %T", err)
	}
	if exchangeErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", exchangeErr.StatusCode)
	}
	if exchangeErr.ErrorCode != "invalid_grant" {
		t.Fatalf("expected invalid_grant, got %q", exchangeErr.ErrorCode)
	}
	if exchangeErr.Message != "code expired" {
		t.Fatalf("expected provider description, got %q", exchangeErr.Message)
	}
}

func TestFetchToken_ErrorFieldWith200(t *testing.T) {
	doer := &fakeDoer{
		response: jsonResponse(http.StatusOK, `{"error":"invalid_client"}`),
	}
	client := newTestClient(t, doer)

	_, err := client.ExchangeRefreshToken(context.Background(), "R1")
	if err == nil {
		t.Fatal("expected error for error-bearing payload")
	}
	if !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("expected refresh sentinel, got %v", err)
	}
}

func TestFetchToken_MissingAccessToken(t *testing.T) {
	doer := &fakeDoer{
		response: jsonResponse(http.StatusOK, `{"refresh_token":"R1","expires_in":3600}`),
	}
	client := newTestClient(t, doer)

	_, err := client.ExchangeAuthorizationCode(context.Background(), "CODE1")
	if err == nil {
		t.Fatal("expected error for missing access token")
	}
	var exchangeErr *ExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("expected *ExchangeError, got %T", err)
	}
	if !strings.Contains(exchangeErr.Message, "access token") {
		t.Fatalf("unexpected message %q", exchangeErr.Message)
	}
}

func TestFetchToken_TransportError(t *testing.T) {
	doer := &fakeDoer{err: errors.New("connection refused")}
	client := newTestClient(t, doer)

	_, err := client.ExchangeAuthorizationCode(context.Background(), "CODE1")
	if err == nil {
		t.Fatal("expected transport error")
	}
	var exchangeErr *ExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("expected *ExchangeError, got %T", err)
	}
	if len(doer.requests) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(doer.requests))
	}
}

func TestFetchToken_ExpiresInAsString(t *testing.T) {
	doer := &fakeDoer{
		response: jsonResponse(http.StatusOK, `{"access_token":"A1","refresh_token":"R1","expires_in":"86400"}`),
	}
	client := newTestClient(t, doer)

	result, err := client.ExchangeAuthorizationCode(context.Background(), "CODE1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if result.ExpiresIn != 86400 {
		t.Fatalf("expected expires_in 86400, got %d", result.ExpiresIn)
	}
}
