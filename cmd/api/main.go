package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MiriamFinn/cipher-trust-connect/internal/auth"
	"github.com/MiriamFinn/cipher-trust-connect/internal/config"
	"github.com/MiriamFinn/cipher-trust-connect/internal/db"
	"github.com/MiriamFinn/cipher-trust-connect/internal/events"
	"github.com/MiriamFinn/cipher-trust-connect/internal/fhe"
	internalhttp "github.com/MiriamFinn/cipher-trust-connect/internal/http"
	"github.com/MiriamFinn/cipher-trust-connect/internal/ledger"
	"github.com/MiriamFinn/cipher-trust-connect/internal/lending"
	"github.com/MiriamFinn/cipher-trust-connect/internal/worker"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coproc, err := fhe.NewCoprocessor()
	if err != nil {
		log.Fatalf("coprocessor init failed: %v", err)
	}

	outbox := events.NewOutbox()
	store := ledger.NewStore()
	market := lending.NewService(store, coproc, outbox, cfg.Market.MaxTermMonths, cfg.Market.MaxAPRBps)

	var journal *events.Journal
	if cfg.DB.DSN != "" {
		pool, err := db.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer pool.Close()
		journal = events.NewJournal(pool)
	} else {
		log.Printf("db.dsn empty, event journal disabled")
	}

	hub := events.NewHub()
	jwt := auth.NewJWTManager(cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.SigningKey)

	h := internalhttp.NewHandler(market, coproc)
	srv := internalhttp.NewServer(h, jwt, hub)

	drain := &worker.Worker{
		Outbox:    outbox,
		Hub:       hub,
		Interval:  time.Duration(cfg.Worker.IntervalSeconds) * time.Second,
		BatchSize: cfg.Worker.BatchSize,
	}
	if journal != nil {
		drain.Journal = journal
	}
	go drain.Run(ctx)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Printf("api listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
}
