package main

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/skillbridge/upwork-oauth-broker/config"
	"github.com/skillbridge/upwork-oauth-broker/core"
	brokermigrations "github.com/skillbridge/upwork-oauth-broker/migrations"
	sqlstore "github.com/skillbridge/upwork-oauth-broker/store/sql"
	"github.com/skillbridge/upwork-oauth-broker/transport"
	"github.com/skillbridge/upwork-oauth-broker/upwork"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server", "run"},
	Short:   "Start the broker HTTP server",
	Long: `Start the HTTP server that handles the Upwork consent redirect,
the OAuth callback, and token refresh/status requests.

Configuration comes from the environment; the process exits when
UPWORK_CLIENT_ID, UPWORK_CLIENT_SECRET, or DATABASE_URL is absent, and
when the initial schema migration fails.`,
	RunE: runServe,
}

var serveFlags struct {
	Addr string
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Addr, "addr", "", "Listen address (overrides LISTEN_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	addr := cfg.ListenAddr
	if serveFlags.Addr != "" {
		addr = serveFlags.Addr
	}

	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}

	client, err := persistence.New(cfg, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer client.Close()

	// Serving without a working store is useless: schema setup failures
	// are fatal at startup.
	if _, err := brokermigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != brokermigrations.DialectPostgres {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, brokermigrations.WithValidationTargets(brokermigrations.DialectPostgres)); err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return err
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return err
	}

	tokenClient, err := upwork.NewTokenClient(upwork.Config{
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		RedirectURI:         cfg.RedirectURI,
		AuthURL:             cfg.AuthURL,
		TokenURL:            cfg.TokenURL,
		TokenRequestTimeout: cfg.TokenRequestTimeout,
	})
	if err != nil {
		return err
	}

	service, err := core.NewService(factory.TokenStore(), tokenClient)
	if err != nil {
		return err
	}

	server := transport.NewServer(service)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
