package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storytime/internal/auth"
	"storytime/internal/catalog"
	"storytime/internal/config"
	apphttp "storytime/internal/http"
	"storytime/internal/notify"
	"storytime/internal/repository/sqlite"
	"storytime/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	catalogRepo := sqlite.NewCatalogRepository(db)

	if err := catalogRepo.Init(ctx); err != nil {
		logger.Fatalf("init catalog repository: %v", err)
	}
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		Issuer:     cfg.Auth.Issuer,
		VerifyTTL:  cfg.Auth.VerifyTTL,
		ResetTTL:   cfg.Auth.ResetTTL,
		SessionTTL: cfg.Auth.SessionTTL,
	})
	passwords := auth.NewPasswordHasher(cfg.Auth.BcryptCost)

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		logger.Fatalf("setup notifier: %v", err)
	}

	exchanger := catalog.NewClientCredentialsExchanger(catalog.Config{
		ClientID:     cfg.Catalog.ClientID,
		ClientSecret: cfg.Catalog.ClientSecret,
		TokenURL:     cfg.Catalog.TokenURL,
		Timeout:      10 * time.Second,
	})

	accounts := service.NewAccountService(userRepo, tokens, passwords, notifier, logger)
	profiles := service.NewProfileService(userRepo, catalogRepo, passwords, logger)
	catalogSvc := service.NewCatalogService(catalogRepo, exchanger, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(accounts, profiles, catalogSvc, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func buildNotifier(cfg config.Config, logger *logrus.Logger) (notify.Notifier, error) {
	renderer, err := notify.NewRenderer(cfg.Mail.BaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.Mail.Host == "" {
		logger.Warn("mail host not configured, emails will be written to the log")
		return notify.NewLogNotifier(renderer, logger), nil
	}

	logger.Infof("sending mail through %s:%d", cfg.Mail.Host, cfg.Mail.Port)
	return notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	}, renderer, logger), nil
}
