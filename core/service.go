package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service drives the credential lifecycle: it decides when the stored pair
// is usable, expired, or absent, and performs the save/update transitions in
// response to callback arrivals, refresh requests, and status queries.
//
// Concurrent operations are not serialized here. If two refreshes race, the
// store's atomic writes guarantee the final state is one of the two results,
// never a mix of fields from both.
type Service struct {
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	store           TokenStore
	exchanger       TokenExchanger
	now             func() time.Time
}

type Option func(*Service)

func WithLogger(logger Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(s *Service) {
		s.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		s.metricsRecorder = recorder
	}
}

// WithClock overrides the wall clock used for expiry derivation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store TokenStore, exchanger TokenExchanger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("core: token store is required")
	}
	if exchanger == nil {
		return nil, fmt.Errorf("core: token exchanger is required")
	}

	service := &Service{
		store:     store,
		exchanger: exchanger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(service)
	}

	provider, logger := glog.Resolve("broker", service.loggerProvider, service.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("broker"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	service.logger = logger
	service.loggerProvider = provider
	if service.metricsRecorder == nil {
		service.metricsRecorder = NopMetricsRecorder{}
	}

	return service, nil
}

// AuthorizationURL builds the provider consent-screen URL. Pure; no store
// interaction.
func (s *Service) AuthorizationURL() (string, error) {
	if s == nil || s.exchanger == nil {
		return "", fmt.Errorf("core: service is not configured")
	}
	target := strings.TrimSpace(s.exchanger.AuthorizationURL())
	if target == "" {
		return "", fmt.Errorf("core: authorization url is not configured")
	}
	return target, nil
}

// CompleteAuthorization handles a callback arrival. A present errorParam
// fails without contacting the provider or touching the store; an absent
// code likewise. A successful exchange persists the full triple atomically.
func (s *Service) CompleteAuthorization(ctx context.Context, code, errorParam string) (TokenRecord, error) {
	if s == nil {
		return TokenRecord{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()

	if strings.TrimSpace(errorParam) != "" {
		err := AuthorizationDeniedError(errorParam)
		s.observeOperation(ctx, startedAt, "complete_authorization", err, map[string]any{
			"error_param": strings.TrimSpace(errorParam),
		})
		return TokenRecord{}, err
	}
	if strings.TrimSpace(code) == "" {
		err := MissingCodeError()
		s.observeOperation(ctx, startedAt, "complete_authorization", err, nil)
		return TokenRecord{}, err
	}

	result, err := s.exchanger.ExchangeAuthorizationCode(ctx, strings.TrimSpace(code))
	if err != nil {
		wrapped := AuthorizationFailedError(err)
		s.observeOperation(ctx, startedAt, "complete_authorization", wrapped, nil)
		return TokenRecord{}, wrapped
	}

	record, err := s.store.Put(ctx, SaveTokenInput{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    ExpiresAtFrom(s.now(), result.ExpiresIn),
	})
	if err != nil {
		wrapped := StorageError(err)
		s.observeOperation(ctx, startedAt, "complete_authorization", wrapped, nil)
		return TokenRecord{}, wrapped
	}

	s.observeOperation(ctx, startedAt, "complete_authorization", nil, map[string]any{
		"expires_at": record.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return record, nil
}

// Refresh trades the stored refresh token for a new pair and overwrites the
// record in place. The exchange is attempted exactly once.
func (s *Service) Refresh(ctx context.Context) (RefreshOutcome, error) {
	if s == nil {
		return RefreshOutcome{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()

	current, err := s.store.Get(ctx)
	if err != nil {
		var wrapped error
		if IsTokenNotFound(err) {
			wrapped = NoCredentialError()
		} else {
			wrapped = StorageError(err)
		}
		s.observeOperation(ctx, startedAt, "refresh", wrapped, nil)
		return RefreshOutcome{}, wrapped
	}
	if strings.TrimSpace(current.RefreshToken) == "" {
		wrapped := NoCredentialError()
		s.observeOperation(ctx, startedAt, "refresh", wrapped, nil)
		return RefreshOutcome{}, wrapped
	}

	result, err := s.exchanger.ExchangeRefreshToken(ctx, current.RefreshToken)
	if err != nil {
		wrapped := RefreshFailedError(err)
		s.observeOperation(ctx, startedAt, "refresh", wrapped, nil)
		return RefreshOutcome{}, wrapped
	}

	refreshToken := strings.TrimSpace(result.RefreshToken)
	if refreshToken == "" {
		// Some providers omit the refresh token on rotation; keep the
		// current one so the credential stays refreshable.
		refreshToken = current.RefreshToken
	}

	record, err := s.store.Update(ctx, SaveTokenInput{
		AccessToken:  result.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    ExpiresAtFrom(s.now(), result.ExpiresIn),
	})
	if err != nil {
		var wrapped error
		if IsTokenNotFound(err) {
			wrapped = NoCredentialError()
		} else {
			wrapped = StorageError(err)
		}
		s.observeOperation(ctx, startedAt, "refresh", wrapped, nil)
		return RefreshOutcome{}, wrapped
	}

	s.observeOperation(ctx, startedAt, "refresh", nil, map[string]any{
		"expires_at": record.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return RefreshOutcome{Record: record, ExpiresIn: result.ExpiresIn}, nil
}

// CurrentStatus reads the stored record and computes expiry against the
// clock. It never contacts the provider.
func (s *Service) CurrentStatus(ctx context.Context) (Status, error) {
	if s == nil {
		return Status{}, fmt.Errorf("core: service is nil")
	}

	record, err := s.store.Get(ctx)
	if err != nil {
		if IsTokenNotFound(err) {
			return Status{State: StateUnauthorized}, nil
		}
		return Status{}, StorageError(err)
	}
	return ResolveStatus(s.now(), record), nil
}
