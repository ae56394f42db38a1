package sqlstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/skillbridge/upwork-oauth-broker/core"
)

// singletonKey pins the credential slot to a single logical row. The column
// carries a unique constraint, so writes are an atomic upsert instead of a
// delete-then-insert with an observable zero-row window.
const singletonKey = "upwork"

type tokenRecord struct {
	bun.BaseModel `bun:"table:upwork_tokens,alias:ut"`

	ID           string    `bun:"id,pk"`
	SingletonKey string    `bun:"singleton_key,notnull"`
	AccessToken  string    `bun:"access_token,notnull"`
	RefreshToken string    `bun:"refresh_token,notnull"`
	ExpiresAt    time.Time `bun:"expires_at,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newTokenRecord(in core.SaveTokenInput, now time.Time) *tokenRecord {
	return &tokenRecord{
		ID:           uuid.New().String(),
		SingletonKey: singletonKey,
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		ExpiresAt:    in.ExpiresAt.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *tokenRecord) toDomain() core.TokenRecord {
	if r == nil {
		return core.TokenRecord{}
	}
	return core.TokenRecord{
		ID:           r.ID,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt.UTC(),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}
