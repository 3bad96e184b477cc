package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aulared.org/internal/config"
	"aulared.org/internal/httpapi"
	"aulared.org/internal/licitacion"
	"aulared.org/internal/notify"
	"aulared.org/internal/obs"
	"aulared.org/internal/rbac"
	"aulared.org/internal/store/pg"
	"aulared.org/internal/token"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	cfg := config.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var store *pg.Store
	if cfg.DatabaseDSN != "" {
		var err error
		store, err = pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
	} else {
		log.Fatal("missing AULARED_PG_DSN")
	}

	cache := rbac.NewMatrixCache(cfg.MatrixCacheTTL)
	resolver, err := rbac.NewResolver(store, cache)
	if err != nil {
		log.Fatalf("rbac resolver: %v", err)
	}
	rbacSvc, err := rbac.NewService(store, cache)
	if err != nil {
		log.Fatalf("rbac service: %v", err)
	}
	dispatcher, err := notify.NewDispatcher(store)
	if err != nil {
		log.Fatalf("notify dispatcher: %v", err)
	}
	notifier := notify.NewEstadoNotifier(dispatcher, store)
	licSvc, err := licitacion.NewService(store, notifier)
	if err != nil {
		log.Fatalf("licitacion service: %v", err)
	}
	tokens := token.NewService(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL)

	api := httpapi.New(httpapi.Deps{
		Ready:              httpapi.ReadyProbe{DB: store.DB()},
		Version:            version,
		Resolver:           resolver,
		RBAC:               rbacSvc,
		Licitaciones:       licSvc,
		Notifications:      store,
		Tokens:             tokens,
		ServiceToken:       cfg.ServiceToken,
		RBACAdminEnabled:   cfg.RBACAdminEnabled,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		MaxBodyBytes:       cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting aulared-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	// In-flight notification dispatches finish before the pool closes.
	notifier.Wait()
	_ = store.Close()
	log.Println("Stopped")
}
