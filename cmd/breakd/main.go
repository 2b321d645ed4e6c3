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
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/break-tracker/internal/browser"
	"github.com/danielpatrickdp/break-tracker/internal/config"
	"github.com/danielpatrickdp/break-tracker/internal/engine"
	"github.com/danielpatrickdp/break-tracker/internal/gate"
	"github.com/danielpatrickdp/break-tracker/internal/logging"
	"github.com/danielpatrickdp/break-tracker/internal/rpc"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
	"github.com/danielpatrickdp/break-tracker/internal/spool"
	"github.com/danielpatrickdp/break-tracker/internal/state"
	"github.com/danielpatrickdp/break-tracker/internal/ws"
)

// #region main
func main() {
	configPath := flag.String("config", envOr("BREAK_CONFIG", "breakd.yaml"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "breakd: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "breakd: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("breakd exited", zap.Error(err))
		os.Exit(1)
	}
}

// #endregion main

// #region run
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := state.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	store.SetTimeout(cfg.Store.OpTimeout)

	producer := signals.NewProducer(signals.ProducerConfig{
		StatusPath: cfg.Browser.StatusPath,
		TogglePath: cfg.Browser.TogglePath,
	})

	machine := engine.NewMachine(store,
		gate.NewGate(gate.GateConfig{MinSessionDuration: cfg.Tracking.MinSession}),
		logger.Named("machine"))

	var eng *engine.Engine
	broadcaster := ws.NewBroadcaster(func() ws.SnapshotPayload {
		tracking, err := store.TrackingEnabled(context.Background())
		if err != nil {
			logger.Warn("read tracking flag for snapshot", zap.Error(err))
		}
		cur, err := store.Current(context.Background())
		if err != nil {
			logger.Warn("read open break for snapshot", zap.Error(err))
			cur = eng.Current()
		}
		return ws.SnapshotPayload{Tracking: tracking, Current: cur}
	}, logger.Named("ws"))
	defer broadcaster.Close()

	eng = engine.New(machine, engine.Config{QueueSize: cfg.Engine.QueueSize}, logger.Named("engine"),
		engine.WithNotifier(broadcaster),
		engine.WithJournal(store.DB()),
	)

	lis, err := net.Listen("tcp", cfg.RPC.Addr)
	if err != nil {
		return fmt.Errorf("listen rpc %s: %w", cfg.RPC.Addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return eng.Run(gctx) })

	// gRPC ingestion and control.
	grpcServer := grpc.NewServer()
	rpc.Register(grpcServer, rpc.NewServer(eng, store, producer, logger.Named("rpc")))
	g.Go(func() error {
		logger.Info("rpc listening", zap.String("addr", cfg.RPC.Addr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		grpcServer.GracefulStop()
		return nil
	})

	// Websocket and HTTP ingestion.
	if cfg.WS.Addr != "" {
		mux := http.NewServeMux()
		ws.NewServer(eng, broadcaster, cfg.WS.AllowedOrigins, logger.Named("ws")).SetupRoutes(mux)
		httpServer := &http.Server{Addr: cfg.WS.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			logger.Info("http listening", zap.String("addr", cfg.WS.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	// JSONL spool.
	if cfg.Spool.Dir != "" {
		tailer, err := spool.NewTailer(cfg.Spool.Dir, eng, logger.Named("spool"))
		if err != nil {
			return fmt.Errorf("start spool tailer: %w", err)
		}
		g.Go(func() error { return tailer.Run(gctx) })
	}

	// In-page observers over CDP. A browser failure is logged, not fatal.
	if cfg.Browser.Enabled {
		obs := browser.NewObserver(browser.ObserverConfig{
			ControlURL:   cfg.Browser.ControlURL,
			Headless:     cfg.Browser.Headless,
			URL:          cfg.Browser.URL,
			URLMatch:     cfg.Browser.URLMatch,
			ElementID:    cfg.Browser.ElementID,
			PollInterval: cfg.Browser.PollInterval,
		}, producer, eng, logger.Named("browser"))
		g.Go(func() error {
			if err := obs.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("browser observer stopped", zap.Error(err))
			}
			return nil
		})
	}

	logger.Info("breakd ready",
		zap.String("db", cfg.Store.Path),
		zap.Duration("min_session", cfg.Tracking.MinSession))
	return g.Wait()
}

// #endregion run

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
