package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medcontrol/internal/api"
	"medcontrol/internal/push"
	"medcontrol/internal/registry"
	"medcontrol/internal/scheduler"
	"medcontrol/internal/signaling"
	"medcontrol/internal/stats"
	"medcontrol/internal/workers"

	"go.uber.org/zap"
)

func runServe() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting medcontrol",
		zap.String("environment", cfg.Environment),
		zap.String("store_driver", cfg.StoreDriver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(cfg, log)
	if err != nil {
		log.Error("Failed to open alarm store", zap.Error(err))
		return err
	}
	defer store.Close()

	loc, _ := cfg.Location()
	devices := registry.New()

	deps := api.Deps{Devices: devices}
	if store.db != nil {
		deps.DB = store.db
	}

	// Push and Redis are optional: without them the server still delivers
	// over websockets and simply reports less.
	if cfg.FirebaseCredentialsPath != "" {
		pushService, err := push.NewFirebaseService(ctx, cfg.FirebaseCredentialsPath, log)
		if err != nil {
			log.Warn("Firebase unavailable, push delivery disabled", zap.Error(err))
		} else {
			deps.Push = pushService
		}
	}

	opts := scheduler.Options{
		Interval:      cfg.ScanInterval(),
		AlignToMinute: cfg.AlignToMinute,
		Location:      loc,
	}
	if cfg.RedisAddr != "" {
		client, err := stats.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("Redis unavailable, dispatch stats disabled", zap.Error(err))
		} else {
			defer client.Close()
			recorder := stats.NewRedisRecorder(client, log)
			opts.Recorder = recorder
			deps.Daily = recorder
		}
	}

	sch, err := scheduler.NewScheduler(store.store, devices, opts, log)
	if err != nil {
		return err
	}

	manager := workers.NewWorkerManager(cfg.ScanTimeout(), log)
	manager.RegisterWorker(sch)
	deps.Workers = manager

	signalingServer := signaling.NewSignalingServer(devices, signaling.Options{
		PingInterval: cfg.WSPingInterval(),
		WriteTimeout: cfg.WSWriteTimeout(),
	}, log)
	deps.Sockets = signalingServer

	apiServer := api.NewServer(deps, log)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Router(signalingServer.HandleWebSocket),
		ReadHeaderTimeout: 10 * time.Second,
	}

	manager.Start(ctx)

	errChan := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case runErr = <-errChan:
		log.Error("HTTP server error", zap.Error(runErr))
	}

	manager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	signalingServer.CloseAll()

	log.Info("Server stopped")
	return runErr
}
