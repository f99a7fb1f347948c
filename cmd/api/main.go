package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"sanastro.app/internal/accounts"
	"sanastro.app/internal/auth"
	"sanastro.app/internal/config"
	"sanastro.app/internal/httpapi"
	"sanastro.app/internal/identity"
	"sanastro.app/internal/notify"
	"sanastro.app/internal/obs"
	"sanastro.app/internal/places"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("sanastro-api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	obs.ConfigureLogger(os.Stdout, cfg.LogLevel)
	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	defer db.Close()

	store := auth.NewPGStore(db)
	idp, err := identity.NewProvider(identity.Options{
		BaseURL:      cfg.Supabase.URL,
		AnonKey:      cfg.Supabase.AnonKey,
		JWTSecret:    cfg.Supabase.JWTSecret,
		CookieDomain: cfg.Session.CookieDomain,
		Secure:       cfg.Session.Secure,
	})
	if err != nil {
		return err
	}
	mailer := notify.New(notify.NewSender(cfg.ResendAPIKey, cfg.Email.From), cfg.AppURL, cfg.AdminEmails)
	geo, err := places.NewClient(places.Options{
		BaseURL:   cfg.Places.BaseURL,
		Limit:     cfg.Places.Limit,
		Timeout:   cfg.Places.Timeout,
		CacheSize: cfg.Places.CacheSize,
		UserAgent: "sanastro-api/" + version,
	})
	if err != nil {
		return err
	}
	proxies, err := httpapi.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		return err
	}
	frontend, err := httpapi.NewFrontend(cfg.FrontendURL, cfg.StaticDir)
	if err != nil {
		return err
	}

	probe := httpapi.ReadyProbe{DB: db}
	api := httpapi.New(httpapi.Options{
		Version:        version,
		Ready:          probe,
		Identity:       idp,
		Admins:         store,
		Users:          store,
		Accounts:       accounts.NewService(store, mailer),
		Places:         geo,
		Frontend:       frontend,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		RateBurst:      cfg.Places.RateBurst,
		RatePerSec:     cfg.Places.RatePerS,
		TrustedProxies: proxies,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		log.Info("starting sanastro-api", "version", version, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var stopGRPC func()
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		health := httpapi.NewHealthReporter(probe, cfg.GRPC.CheckInterval)
		grpcSrv := httpapi.NewGRPCServer(health)
		go health.Run(ctx)
		go func() {
			log.Info("starting grpc health", "addr", cfg.GRPC.Addr)
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
		stopGRPC = grpcSrv.GracefulStop
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server failed", "error", err)
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if stopGRPC != nil {
		stopGRPC()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}

// Compile-time wiring checks.
var (
	_ httpapi.IdentityProvider = (*identity.Provider)(nil)
	_ accounts.Store           = (*auth.PGStore)(nil)
	_ accounts.Mailer          = (*notify.Notifier)(nil)
	_ httpapi.Places           = (*places.Client)(nil)
)
