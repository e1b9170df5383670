package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/merchantscaravan/caravan-server/internal/config"
	"github.com/merchantscaravan/caravan-server/internal/publish"
	"github.com/merchantscaravan/caravan-server/internal/repository"
	"github.com/merchantscaravan/caravan-server/internal/room"
	"github.com/merchantscaravan/caravan-server/internal/server"
	"github.com/merchantscaravan/caravan-server/internal/watchers"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting caravan server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	gameOpts, err := cfg.GameOptions()
	if err != nil {
		logger.Fatal("invalid game options", zap.Error(err))
	}

	var (
		managerOpts []room.ManagerOption
		results     server.ResultLister
	)
	db, err := repository.NewDB(ctx, cfg.Database, logger)
	switch {
	case errors.Is(err, repository.ErrDisabled):
		logger.Warn("database not configured; game results will not be stored")
	case err != nil:
		logger.Fatal("failed to connect to database", zap.Error(err))
	default:
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
		repo := repository.NewResultRepository(db)
		managerOpts = append(managerOpts, room.WithResultRecorder(repo))
		results = repo
	}

	if cfg.Server.ReplayDir != "" {
		managerOpts = append(managerOpts, room.WithReplayDir(cfg.Server.ReplayDir))
		logger.Info("saving replays of won games", zap.String("dir", cfg.Server.ReplayDir))
	}

	roomMgr := room.NewManager(logger, gameOpts, managerOpts...)
	logger.Info("room manager initialized",
		zap.Int("win_threshold", gameOpts.WinThreshold),
		zap.Int("max_players", gameOpts.MaxPlayers),
	)

	if cfg.Redis.Address != "" {
		rdb, err := publish.Dial(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher := publish.NewRedisPublisher(rdb, logger)
		publisher.Attach(roomMgr)
		defer publisher.Detach()
		go publisher.Run(ctx)
		defer publisher.Wait()
		logger.Info("redis event publisher attached", zap.String("address", cfg.Redis.Address))
	}

	tracker := watchers.NewTracker(logger)
	tracker.Attach(roomMgr)
	defer tracker.Detach()

	hub := server.NewHub(roomMgr, cfg.Server.HTTP.AllowedOrigins, logger)
	go hub.Run(ctx)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr: cfg.Server.HTTP.Address,
		Handler: server.NewRouter(roomMgr, hub, server.RouterConfig{
			AllowedOrigins: cfg.Server.HTTP.AllowedOrigins,
			Results:        results,
		}, logger),
	}

	grpcServer, health := server.NewGRPCServer(logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	logger.Info("caravan server initialized",
		zap.String("version", version),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	health.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	cancel()
	grpcServer.GracefulStop()

	logger.Info("caravan server stopped", zap.Int("open_rooms", roomMgr.RoomCount()))
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
