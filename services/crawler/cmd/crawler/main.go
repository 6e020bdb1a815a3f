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
	"lexilegal/services/crawler/internal/app"
	"lexilegal/services/crawler/internal/config"
	"lexilegal/services/crawler/internal/server"
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

	publisher, err := events.NewAMQPPublisher(events.AMQPConfig{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
	})
	if err != nil {
		log.Fatalf("failed to init amqp publisher: %v", err)
	}
	defer publisher.Close()

	sources := make([]app.Source, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		sources = append(sources, app.Source{Name: src.Name, URL: src.URL, Selector: src.Selector})
	}
	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Publisher:   publisher,
		Sources:     sources,
		Interval:    cfg.CrawlInterval,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	appCore.Start(context.Background())

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
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("crawler server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
