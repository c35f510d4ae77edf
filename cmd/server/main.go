// Package main runs the Crypto Talks platform server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/crypto-talks/platform/internal/api"
	"github.com/crypto-talks/platform/internal/assistant"
	"github.com/crypto-talks/platform/internal/config"
	"github.com/crypto-talks/platform/internal/database"
	"github.com/crypto-talks/platform/internal/mailer"
	"github.com/crypto-talks/platform/internal/market"
	"github.com/crypto-talks/platform/internal/metrics"
	"github.com/crypto-talks/platform/internal/middleware"
	"github.com/crypto-talks/platform/internal/news"
	"github.com/crypto-talks/platform/internal/newsletter"
	"github.com/crypto-talks/platform/internal/portfolio"
	"github.com/crypto-talks/platform/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	flag.Parse()

	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	log := logger.NewDefault("platform")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load configuration", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := database.NewClient(database.Config{
		Endpoint:  cfg.Backend.Endpoint,
		ProjectID: cfg.Backend.ProjectID,
		APIKey:    cfg.Backend.APIKey,
	})
	if err != nil {
		log.Error("initialize backend client", "error", err.Error())
		os.Exit(1)
	}

	portfolioSvc := portfolio.New(backend, portfolio.Config{
		DatabaseID: cfg.Backend.DatabaseID,
	}, log.With("component", "portfolio"))

	mail, err := mailer.New(mailer.Config{
		BaseURL: cfg.Mail.BaseURL,
		APIKey:  cfg.Mail.APIKey,
	})
	if err != nil {
		log.Error("initialize mailer", "error", err.Error())
		os.Exit(1)
	}

	marketClient := market.New(market.Config{
		BaseURL:       cfg.Market.BaseURL,
		APIKey:        cfg.Market.APIKey,
		RatePerMinute: cfg.Market.RatePerMinute,
	})
	newsClient := news.New(news.Config{BaseURL: cfg.News.BaseURL})

	var chatAssistant *assistant.Assistant
	if cfg.AssistantEnabled() {
		chatAssistant, err = assistant.New(ctx, assistant.Config{Model: cfg.Assistant.Model},
			marketClient, log.With("component", "assistant"))
		if err != nil {
			log.Error("initialize assistant", "error", err.Error())
			os.Exit(1)
		}
	} else {
		log.Warn("assistant disabled: no LLM API key configured")
	}

	auth, err := middleware.NewSessionAuth(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		log.Error("initialize session auth", "error", err.Error())
		os.Exit(1)
	}

	m := metrics.New()
	dispatch := newsletter.NewHandler(newsletter.Config{
		Password:    cfg.Newsletter.Password,
		From:        cfg.Mail.From,
		Subject:     cfg.Newsletter.Subject,
		Concurrency: cfg.Newsletter.Concurrency,
	}, portfolioSvc, mail, m, log.With("component", "newsletter"))

	router := api.NewRouter(api.Deps{
		Portfolio:      portfolioSvc,
		Market:         marketClient,
		News:           newsClient,
		Assistant:      chatAssistant,
		Auth:           auth,
		Newsletter:     dispatch,
		Metrics:        m,
		Log:            log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RatePerSecond:  cfg.Server.RatePerSecond,
		RateBurst:      cfg.Server.RateBurst,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err.Error())
	}
}
