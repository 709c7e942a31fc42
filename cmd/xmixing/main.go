package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"xmixing/apiclient"
	"xmixing/config"
	"xmixing/engine"
	"xmixing/messaging"
	"xmixing/session"
	"xmixing/store"
	"xmixing/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "xmixing.yaml", "path to config file")
	headless := flag.Bool("headless", false, "run without opening the broker connection")
	flag.Parse()

	if *showVersion {
		fmt.Println("xmixing", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Session slots
	var (
		slots session.Slots
		db    *store.DB
	)
	switch cfg.Session.Storage {
	case "database", "":
		db, err = store.Open(&cfg.Database)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		log.Printf("xmixing: database open (%s)", cfg.Database.Driver)
		slots = session.NewSQLSlots(db)
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("redis %s: %v", cfg.Redis.Address, err)
		}
		defer redisClient.Close()
		log.Printf("xmixing: redis connected (%s)", cfg.Redis.Address)
		slots = session.NewRedisSlots(redisClient, cfg.Session.RedisPrefix)
	case "memory":
		log.Printf("xmixing: session storage is in memory and will not survive a restart")
		slots = session.NewMemorySlots()
	default:
		log.Fatalf("unsupported session storage: %s", cfg.Session.Storage)
	}
	if cfg.Session.SealKey != "" {
		slots = session.Sealed(slots, cfg.Session.SealKey)
	}

	// The session is hydrated before anything can consult it.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	sess, err := session.Open(ctx, slots, log.Printf)
	cancel()
	if err != nil {
		log.Fatalf("open session: %v", err)
	}

	// Scan relay
	var relayWriter messaging.MessageWriter
	if cfg.Relay.Enabled {
		relayWriter = messaging.NewKafkaWriter(cfg.Relay)
		log.Printf("xmixing: relaying scans to kafka topic %s", cfg.Relay.Topic)
	}

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:   cfg,
		DB:          db,
		Session:     sess,
		RelayWriter: relayWriter,
		Headless:    *headless,
	})
	eng.Start()
	defer eng.Stop()

	// Back-end client; the base address defaults to the fallback host and
	// is re-targeted per browser request by the web layer.
	api := apiclient.NewClient(func() string { return cfg.API.APIBaseURL(nil) }, sess.AuthHeader, cfg.API.Timeout)

	// Web server
	handler, stopWeb := www.NewRouter(eng, api)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("xmixing: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("xmixing: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("xmixing: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("xmixing: stopped")
}
