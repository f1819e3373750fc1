package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"biblo-chat-be/internal/bootstrap"
	"biblo-chat-be/internal/config"
	"biblo-chat-be/internal/model"
	"biblo-chat-be/internal/pkg/logger"
	"biblo-chat-be/internal/server"
	"biblo-chat-be/internal/tracer"
	"biblo-chat-be/pkg/database"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	// 2. Tracer
	shutdownTracer := tracer.InitTracer(cfg.App, sysLogger)

	// 3. Database (optional: knowledge base + session archive)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.Debug)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		if err := database.Migrate(db, &model.KnowledgeChunk{}, &model.SessionLog{}); err != nil {
			log.Panicf("Unable to migrate database: %v", err)
		}
		gormDB = db
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg, sysLogger)
	if err != nil {
		log.Panicf("Unable to bootstrap: %v", err)
	}
	defer container.Close()

	srv := server.New(cfg, container)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// 5. Background Services
	if container.ConsumerService != nil {
		g.Go(func() error {
			sysLogger.Info("MAIN", "Starting session archive consumer", nil)
			return container.ConsumerService.Consume(gctx)
		})
	}
	g.Go(func() error {
		return container.WebSocketHub.Run(gctx)
	})

	// 6. Server
	g.Go(func() error {
		return srv.Run()
	})

	// 7. Shutdown: stop accepting turns, then end every live session so each gets its log.
	g.Go(func() error {
		<-gctx.Done()
		sysLogger.Info("MAIN", "Shutting down", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		serverErr := srv.Shutdown(shutdownCtx)
		container.SessionService.Shutdown(shutdownCtx)
		tracerErr := shutdownTracer(shutdownCtx)
		return errors.Join(serverErr, tracerErr)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		sysLogger.Error("MAIN", "Server stopped with error", map[string]interface{}{"error": err})
	}
}
