package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"lexilegal/internal/servicetoken"
	"lexilegal/internal/usertoken"
	"lexilegal/internal/util"
	"lexilegal/pkg/events"
	"lexilegal/services/notify/internal/app"
	"lexilegal/services/notify/internal/config"
	"lexilegal/services/notify/internal/server"
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
		DatabaseURL:   cfg.DatabaseURL,
		SweepInterval: cfg.SweepInterval,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	consumer, err := events.NewAMQPConsumer(events.AMQPConfig{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
		Queue:    cfg.AMQPQueue,
	})
	if err != nil {
		log.Fatalf("failed to init amqp consumer: %v", err)
	}
	defer consumer.Close()

	ctx := context.Background()
	if err := consumer.Start(ctx, appCore.HandleLegalUpdate); err != nil {
		log.Fatalf("failed to start amqp consumer: %v", err)
	}
	appCore.StartSweeper(ctx)

	var serviceVerifier *servicetoken.Verifier
	if cfg.ServiceTokenPublicKey != "" {
		serviceVerifier, err = servicetoken.NewVerifierWithOptions(servicetoken.VerifierOptions{
			PublicKeyPath:  cfg.ServiceTokenPublicKey,
			Audience:       cfg.ServiceTokenAudience,
			AllowedIssuers: cfg.ServiceTokenIssuers,
		})
		if err != nil {
			log.Fatalf("failed to init service token verifier: %v", err)
		}
	}

	httpServer := server.New(server.Config{
		App:             appCore,
		TokenVerifier:   tokenVerifier,
		ServiceVerifier: serviceVerifier,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("notify server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
