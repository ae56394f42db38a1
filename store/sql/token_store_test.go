package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/skillbridge/upwork-oauth-broker/core"
	brokermigrations "github.com/skillbridge/upwork-oauth-broker/migrations"
	sqlstore "github.com/skillbridge/upwork-oauth-broker/store/sql"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "upwork-oauth-broker-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:broker-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = brokermigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != brokermigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, brokermigrations.WithValidationTargets(brokermigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func newTokenStore(t *testing.T) (core.TokenStore, *persistence.Client, func()) {
	t.Helper()

	client, cleanup := newSQLiteClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		cleanup()
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.TokenStore()
	if store == nil {
		cleanup()
		t.Fatal("expected token store from factory")
	}
	return store, client, cleanup
}

func countTokenRows(t *testing.T, client *persistence.Client) int {
	t.Helper()
	var count int
	if err := client.DB().NewRaw("SELECT COUNT(*) FROM upwork_tokens").Scan(context.Background(), &count); err != nil {
		t.Fatalf("count token rows: %v", err)
	}
	return count
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"upwork_tokens",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "upwork_tokens" {
		t.Fatalf("expected upwork_tokens table, got %q", tableName)
	}
}

func TestTokenStore_GetOnEmptyStore(t *testing.T) {
	store, _, cleanup := newTokenStore(t)
	defer cleanup()

	_, err := store.Get(context.Background())
	if err == nil {
		t.Fatal("expected error for empty store")
	}
	if !core.IsTokenNotFound(err) {
		t.Fatalf("expected token-not-found error, got %v", err)
	}
}

func TestTokenStore_PutThenGet(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := newTokenStore(t)
	defer cleanup()

	expiresAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	record, err := store.Put(ctx, core.SaveTokenInput{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		t.Fatalf("put token: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected stored record to carry an id")
	}

	loaded, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if loaded.AccessToken != "A1" || loaded.RefreshToken != "R1" {
		t.Fatalf("unexpected record %+v", loaded)
	}
	if !loaded.ExpiresAt.UTC().Equal(expiresAt) {
		t.Fatalf("expected expires_at %v, got %v", expiresAt, loaded.ExpiresAt)
	}
}

func TestTokenStore_PutTwiceKeepsSingleRow(t *testing.T) {
	ctx := context.Background()
	store, client, cleanup := newTokenStore(t)
	defer cleanup()

	first := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	if _, err := store.Put(ctx, core.SaveTokenInput{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    first,
	}); err != nil {
		t.Fatalf("first put: %v", err)
	}

	second := first.Add(time.Hour)
	record, err := store.Put(ctx, core.SaveTokenInput{
		AccessToken:  "A2",
		RefreshToken: "R2",
		ExpiresAt:    second,
	})
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if record.AccessToken != "A2" || record.RefreshToken != "R2" {
		t.Fatalf("expected second write to win, got %+v", record)
	}

	if count := countTokenRows(t, client); count != 1 {
		t.Fatalf("expected exactly one row, got %d", count)
	}

	loaded, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if loaded.AccessToken != "A2" {
		t.Fatalf("expected latest token, got %+v", loaded)
	}
}

func TestTokenStore_UpdateOnEmptyStore(t *testing.T) {
	store, _, cleanup := newTokenStore(t)
	defer cleanup()

	_, err := store.Update(context.Background(), core.SaveTokenInput{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	})
	if err == nil {
		t.Fatal("expected error for update on empty store")
	}
	if !core.IsTokenNotFound(err) {
		t.Fatalf("expected token-not-found error, got %v", err)
	}
}

func TestTokenStore_UpdateRotatesTokens(t *testing.T) {
	ctx := context.Background()
	store, client, cleanup := newTokenStore(t)
	defer cleanup()

	issued := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	original, err := store.Put(ctx, core.SaveTokenInput{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    issued,
	})
	if err != nil {
		t.Fatalf("put token: %v", err)
	}

	rotated := issued.Add(2 * time.Hour)
	updated, err := store.Update(ctx, core.SaveTokenInput{
		AccessToken:  "A2",
		RefreshToken: "R2",
		ExpiresAt:    rotated,
	})
	if err != nil {
		t.Fatalf("update token: %v", err)
	}
	if updated.ID != original.ID {
		t.Fatalf("expected update in place, id changed from %s to %s", original.ID, updated.ID)
	}
	if updated.AccessToken != "A2" || updated.RefreshToken != "R2" {
		t.Fatalf("unexpected record %+v", updated)
	}
	if !updated.ExpiresAt.UTC().Equal(rotated) {
		t.Fatalf("expected expires_at %v, got %v", rotated, updated.ExpiresAt)
	}

	if count := countTokenRows(t, client); count != 1 {
		t.Fatalf("expected exactly one row, got %d", count)
	}
}

func TestTokenStore_ValidatesInput(t *testing.T) {
	ctx := context.Background()
	store, _, cleanup := newTokenStore(t)
	defer cleanup()

	tests := []struct {
		name  string
		input core.SaveTokenInput
	}{
		{"missing access token", core.SaveTokenInput{RefreshToken: "R1", ExpiresAt: time.Now().Add(time.Hour)}},
		{"missing refresh token", core.SaveTokenInput{AccessToken: "A1", ExpiresAt: time.Now().Add(time.Hour)}},
		{"zero expires_at", core.SaveTokenInput{AccessToken: "A1", RefreshToken: "R1"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.Put(ctx, tc.input); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
