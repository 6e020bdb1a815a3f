package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"lexilegal/internal/ratelimit"
	"lexilegal/internal/usertoken"
	"lexilegal/internal/util"
	"lexilegal/services/chat/internal/app"
	"lexilegal/services/chat/internal/config"
	"lexilegal/services/chat/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)
	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:    cfg.AuthJWKSURL,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		log.Fatalf("failed to init jwks verifier: %v", err)
	}

	var sendLimiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimitPerMinute > 0 {
		sendLimiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "lexi:ratelimit:chat",
			cfg.RateLimitPerMinute, time.Minute,
		)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:     cfg.DatabaseURL,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		CompletionModel: cfg.CompletionModel,
		PerplexityKey:   cfg.PerplexityAPIKey,
		PerplexityURL:   cfg.PerplexityBaseURL,
		PerplexityModel: cfg.PerplexityModel,
		HistoryLimit:    cfg.HistoryLimit,
		MaxTokens:       cfg.MaxTokens,
		Temperature:     cfg.Temperature,
		EmbeddingDim:    cfg.EmbeddingDim,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:           appCore,
		TokenVerifier: tokenVerifier,
		SendLimiter:   sendLimiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("chat server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
