package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/celerix-dev/celerix-sensors/internal/api"
	"github.com/celerix-dev/celerix-sensors/internal/config"
	"github.com/celerix-dev/celerix-sensors/internal/engine"
	"github.com/celerix-dev/celerix-sensors/internal/notify"
	"github.com/celerix-dev/celerix-sensors/internal/server"
	"github.com/celerix-dev/celerix-sensors/internal/service"
	"github.com/celerix-dev/celerix-sensors/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.SetLevel(cfg.Level())
	log.Info("Starting Celerix sensor allocation daemon...")

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
	log.Info("Persistence complete. Exiting.")
}

func run(cfg config.Config) error {
	key, err := vault.ParseKey(cfg.DataKey)
	if err != nil {
		return err
	}

	// 1. Persistence and engine
	persister, err := engine.NewPersistence(cfg.DataDir, key)
	if err != nil {
		return err
	}
	initial, err := persister.LoadAll()
	if err != nil {
		return fmt.Errorf("could not load existing data: %w", err)
	}
	store := engine.NewMemStore(initial, persister)

	if cfg.SeedFile != "" && store.Empty() {
		seed, err := engine.LoadDataset(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := engine.Migrate(seed, store); err != nil {
			return err
		}
		log.WithField("file", cfg.SeedFile).Info("Seeded empty store")
	}

	sensors, _ := store.ListSensors()
	workouts, _ := store.ListWorkouts()
	log.WithFields(log.Fields{"sensors": len(sensors), "workouts": len(workouts)}).Info("Engine started")

	// 2. Service
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hub := notify.NewHub()
	svc := service.New(store, store,
		service.WithPublisher(hub),
		service.WithMetrics(service.NewMetrics(reg)),
	)

	// 3. TCP router
	router := server.NewRouter(svc)
	if cfg.DisableTLS {
		log.Info("TLS encryption disabled (CELERIX_DISABLE_TLS=true).")
	} else {
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			return err
		}
		router.SetCertificate(cert)
		log.Info("TLS encryption enabled.")
	}

	// 4. HTTP API
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), cors)
	h := &api.Handler{
		Store:   svc,
		Events:  hub,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}
	h.Register(r)
	r.NoRoute(api.NotFound)
	httpSrv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	// 5. Run until a signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("HTTP API listening on :%s", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Infof("Sensor engine listening on :%s (TCP)", cfg.Port)
		return router.Listen(cfg.Port)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutdown signal received. Finalizing disk writes...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub.Close()
		_ = router.Stop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	store.Wait()
	return err
}

func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}
