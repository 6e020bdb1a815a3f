package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"lexilegal/internal/usertoken"
	"lexilegal/internal/util"
	"lexilegal/services/documents/internal/app"
	"lexilegal/services/documents/internal/config"
	"lexilegal/services/documents/internal/server"
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

	appCore, err := app.New(app.Config{
		DatabaseURL:          cfg.DatabaseURL,
		MinioEndpoint:        cfg.MinioEndpoint,
		MinioAccessKey:       cfg.MinioAccessKey,
		MinioSecretKey:       cfg.MinioSecretKey,
		MinioBucket:          cfg.MinioBucket,
		MinioUseSSL:          cfg.MinioUseSSL,
		RedisAddr:            cfg.RedisAddr,
		RedisPassword:        cfg.RedisPassword,
		QueueName:            cfg.QueueName,
		QueueGroup:           cfg.QueueGroup,
		QueueConcurrency:     cfg.QueueConcurrency,
		QueueMaxRetries:      cfg.QueueMaxRetries,
		OpenAIAPIKey:         cfg.OpenAIAPIKey,
		OpenAIBaseURL:        cfg.OpenAIBaseURL,
		EmbeddingModel:       cfg.EmbeddingModel,
		EmbeddingDim:         cfg.EmbeddingDim,
		EmbeddingConcurrency: cfg.EmbeddingConcurrency,
		ChunkSize:            cfg.ChunkSize,
		SearchLimit:          cfg.SearchLimit,
		SearchThreshold:      cfg.SearchThreshold,
		AllowedExtensions:    cfg.AllowedExtensions,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		TokenVerifier:  tokenVerifier,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("documents server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
