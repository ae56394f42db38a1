package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/skillbridge/upwork-oauth-broker/core"
)

// TokenStore is the durable single-slot credential store backed by the
// upwork_tokens table. Every operation performs a committed read or write;
// there is no caching layer in front of it.
type TokenStore struct {
	db   *bun.DB
	repo repository.Repository[*tokenRecord]
}

// Put replaces the stored state with the given triple. The write is a
// single upsert keyed on the singleton column, so concurrent readers never
// observe zero rows mid-write and concurrent writers resolve to
// last-writer-wins.
func (s *TokenStore) Put(ctx context.Context, in core.SaveTokenInput) (core.TokenRecord, error) {
	if s == nil || s.db == nil {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	if err := validateInput(in); err != nil {
		return core.TokenRecord{}, err
	}

	now := time.Now().UTC()
	record := newTokenRecord(in, now)

	var stored tokenRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(record).
			On("CONFLICT (singleton_key) DO UPDATE").
			Set("access_token = EXCLUDED.access_token").
			Set("refresh_token = EXCLUDED.refresh_token").
			Set("expires_at = EXCLUDED.expires_at").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return err
		}
		return tx.NewSelect().
			Model(&stored).
			Where("singleton_key = ?", singletonKey).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: put token: %w", err)
	}

	return stored.toDomain(), nil
}

// Get returns the most recently updated record. Should more than one row
// ever exist, the newest wins; that situation is never an error.
func (s *TokenStore) Get(ctx context.Context) (core.TokenRecord, error) {
	if s == nil || s.repo == nil {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: get token: %w", err)
	}
	if len(records) == 0 {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: %w", core.ErrTokenNotFound)
	}
	return records[0].toDomain(), nil
}

// Update mutates the existing record in place. Zero matched rows is an
// explicit error rather than a silent no-op.
func (s *TokenStore) Update(ctx context.Context, in core.SaveTokenInput) (core.TokenRecord, error) {
	if s == nil || s.db == nil {
		return core.TokenRecord{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	if err := validateInput(in); err != nil {
		return core.TokenRecord{}, err
	}

	now := time.Now().UTC()

	var stored tokenRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*tokenRecord)(nil)).
			Set("access_token = ?", in.AccessToken).
			Set("refresh_token = ?", in.RefreshToken).
			Set("expires_at = ?", in.ExpiresAt.UTC()).
			Set("updated_at = ?", now).
			Where("singleton_key = ?", singletonKey).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return core.ErrTokenNotFound
		}
		return tx.NewSelect().
			Model(&stored).
			Where("singleton_key = ?", singletonKey).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		if core.IsTokenNotFound(err) {
			return core.TokenRecord{}, fmt.Errorf("sqlstore: %w", core.ErrTokenNotFound)
		}
		return core.TokenRecord{}, fmt.Errorf("sqlstore: update token: %w", err)
	}

	return stored.toDomain(), nil
}

func validateInput(in core.SaveTokenInput) error {
	if strings.TrimSpace(in.AccessToken) == "" {
		return fmt.Errorf("sqlstore: access token is required")
	}
	if strings.TrimSpace(in.RefreshToken) == "" {
		return fmt.Errorf("sqlstore: refresh token is required")
	}
	if in.ExpiresAt.IsZero() {
		return fmt.Errorf("sqlstore: expires_at is required")
	}
	return nil
}

var _ core.TokenStore = (*TokenStore)(nil)
