package core

import (
	"strings"
	"time"
)

// TokenState is the lifecycle state of the stored credential, computed
// lazily on read. There are no background transitions.
type TokenState string

const (
	StateUnauthorized TokenState = "unauthorized"
	StateAuthorized   TokenState = "authorized"
	StateExpired      TokenState = "expired"
)

// TokenRecord is the single persisted credential pair. At most one record
// exists system-wide; refreshes overwrite it in place.
type TokenRecord struct {
	ID           string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SaveTokenInput carries the full credential triple. Writes persist all
// three fields together or none of them.
type SaveTokenInput struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenResult is a parsed provider token-endpoint response.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// Status is the answer to a status query: a pure read plus an expiry
// comparison against the supplied clock.
type Status struct {
	State        TokenState
	Present      bool
	Expired      bool
	ExpiresAt    time.Time
	AccessToken  string
	RefreshToken string
}

// RefreshOutcome reports the rotated credential after a successful refresh.
type RefreshOutcome struct {
	Record    TokenRecord
	ExpiresIn int64
}

// ResolveTokenState evaluates a record against the given instant.
func ResolveTokenState(now time.Time, record TokenRecord) TokenState {
	if strings.TrimSpace(record.AccessToken) == "" {
		return StateUnauthorized
	}
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if !record.ExpiresAt.UTC().After(now) {
		return StateExpired
	}
	return StateAuthorized
}

// ResolveStatus derives the full status view for a record.
func ResolveStatus(now time.Time, record TokenRecord) Status {
	state := ResolveTokenState(now, record)
	if state == StateUnauthorized {
		return Status{State: StateUnauthorized}
	}
	return Status{
		State:        state,
		Present:      true,
		Expired:      state == StateExpired,
		ExpiresAt:    record.ExpiresAt.UTC(),
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
	}
}

// ExpiresAtFrom converts a provider expires_in value into the absolute
// instant the access token stops being valid. The instant is always derived
// at response time and never trusted from any other source.
func ExpiresAtFrom(now time.Time, expiresIn int64) time.Time {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return now.UTC().Add(time.Duration(expiresIn) * time.Second)
}
