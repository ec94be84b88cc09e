package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/account"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/mailer"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/organization"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/reward"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/subscriber"
	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/utilities"
)

var skipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not create the schema on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, sugar, sync, err := setup()
	if err != nil {
		return err
	}
	defer sync()
	sugar.Info("starting service-rewards-go")

	store, db, err := openStore(cfg, sugar)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	if !skipMigrate {
		if err := migrate(cmd.Context(), store, sugar); err != nil {
			return err
		}
	}

	handler, err := buildHandler(cfg, store, sugar)
	if err != nil {
		return err
	}

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("http server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	sugar.Info("shutting down")
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
	return nil
}

func buildHandler(cfg *config.Config, store schemaStore, sugar *zap.SugaredLogger) (http.Handler, error) {
	secret := cfg.Session.Secret
	if secret == "" {
		secret = utilities.NewKSUID()
		sugar.Warn("SESSION_SECRET not set; sessions will not survive a restart")
	}
	ttl, err := cfg.SessionTTL()
	if err != nil {
		return nil, err
	}
	issuer := session.NewIssuer(secret, cfg.Session.Issuer, ttl)

	mailTimeout, err := cfg.MailTimeout()
	if err != nil {
		return nil, err
	}
	sender := mailer.New(mailer.Config{
		Endpoint:   cfg.Mail.Endpoint,
		ServiceID:  cfg.Mail.ServiceID,
		PublicKey:  cfg.Mail.PublicKey,
		PrivateKey: cfg.Mail.PrivateKey,
		Timeout:    mailTimeout,
	}, sugar)

	accounts := account.NewService(store, sender, account.BcryptHasher{Cost: 12}, account.Config{
		BaseURL:                 cfg.HTTP.PublicBaseURL,
		VerifyTemplateID:        cfg.Signup.VerifyTemplateID,
		ResetTemplateID:         cfg.Signup.ResetTemplateID,
		PasswordMinLength:       cfg.Signup.PasswordMinLength,
		ResetClearsVerification: cfg.Signup.ResetClearsVerification,
	}, sugar)

	rewards := reward.NewService(store, sugar)
	rewards.ExpiringWithin = cfg.ExpiringWithin()
	listOpts := []reward.ListOption{reward.WithPageSize(cfg.Rewards.PageSize)}
	if cfg.Rewards.MemoizeCursors {
		listOpts = append(listOpts, reward.WithCursorMemo())
	}

	return router.RegisterRoutes(router.Deps{
		Logger:       sugar,
		Issuer:       issuer,
		SignInPath:   cfg.HTTP.SignInPath,
		Accounts:     account.NewHandler(accounts, issuer, sugar, cfg.HTTP.SignInPath, cfg.HTTP.SecureCookie),
		Rewards:      reward.NewHandler(rewards, sugar, listOpts...),
		Organization: organization.NewHandler(organization.NewService(store, sugar), sugar),
		Subscribers:  subscriber.NewHandler(subscriber.NewService(store, sugar), sugar),
		PageBytes:    cfg.Carbon.PageBytes,
	}), nil
}
