package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"starfolio/navigator/internal/auth"
	configpkg "starfolio/navigator/internal/config"
	"starfolio/navigator/internal/gameplay"
	grpcstream "starfolio/navigator/internal/grpc"
	httpapi "starfolio/navigator/internal/http"
	"starfolio/navigator/internal/logging"
	"starfolio/navigator/internal/orbit"
	"starfolio/navigator/internal/replay"
	"starfolio/navigator/internal/timesync"
	replaycatalog "starfolio/navigator/tools/replay_catalog"
)

const (
	shutdownTimeout = 5 * time.Second
	cleanupInterval = time.Hour
	adminWindow     = time.Minute
	adminBurst      = 30
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "navigator: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := configpkg.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Sync()

	//1.- Resolve the sky once; every session shares the same phases.
	var rng *rand.Rand
	if seed := cfg.Simulation.Seed; seed != 0 {
		rng = orbit.SeededRand(seed)
	}
	registry, err := orbit.NewRegistry(orbit.SolarSystem(), rng)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	host := NewHost(cfg, registry, gameplay.Tuning(), WithHostLogger(logger))
	if err := host.StartupError(); err != nil {
		return err
	}

	var cleaner *replay.Cleaner
	if cfg.Recording.Dir != "" {
		cleaner = replay.NewCleaner(cfg.Recording.Dir, replay.RetentionPolicy{
			MaxRecordings: cfg.Recording.MaxCount,
			MaxAge:        cfg.Recording.MaxAge,
		}, logger)
		go cleaner.Run(ctx, cleanupInterval)
	}

	tokens, err := newPilotTokens(cfg.PilotTokenSecret)
	if err != nil {
		return fmt.Errorf("pilot tokens: %w", err)
	}

	//2.- HTTP surface: pilots, probes, metrics and the catalogue.
	mux := http.NewServeMux()
	mux.Handle("/ws", newWebsocketServer(ctx, cfg, host, websocketAuthenticatorFor(tokens), logger))
	registerControlDocEndpoints(mux, registry)
	mux.HandleFunc("/api/time", timesync.NewService(cfg.Gate.MaxAge, timesync.WithLogger(logger)).Handler())
	handlers := httpapi.NewHandlerSet(httpapi.Options{
		Logger:      logger,
		Readiness:   host,
		Frames:      host.frames,
		Bandwidth:   host.bandwidth,
		Gate:        host.gate,
		Ticks:       host.ticks,
		QueueDrops:  host.QueueDrops,
		Storage:     storageStats(cleaner),
		Recordings:  recordingLister(cfg.Recording.Dir),
		AdminToken:  cfg.AdminToken,
		RateLimiter: httpapi.NewSlidingWindowLimiter(adminWindow, adminBurst, nil),
	})
	handlers.Register(mux)

	tlsEnabled := cfg.TLSCertPath != ""
	server := &http.Server{
		Addr:              cfg.Address,
		Handler:           logging.HTTPTraceMiddleware(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 2)
	go func() {
		var serveErr error
		if tlsEnabled {
			serveErr = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			serveErr = server.ListenAndServe()
		}
		if !errors.Is(serveErr, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", serveErr)
		}
	}()
	advertised := advertisedEndpoints(cfg.Address, cfg.GRPC.Address, tlsEnabled)
	logger.Info("navigator listening",
		logging.String("url", advertised.HTTP),
		logging.String("pilots", advertised.Pilots),
		logging.String("bodies", advertised.Bodies),
		logging.String("grpc", advertised.GRPC),
	)

	//3.- Optional gRPC surface sharing the same host.
	var grpcServer *grpc.Server
	if cfg.GRPC.Address != "" {
		grpcServer, err = startGRPC(cfg, host, tokens, logger, errs)
		if err != nil {
			_ = server.Close()
			return err
		}
	}

	select {
	case <-ctx.Done():
	case err = <-errs:
		logger.Error("listener failed", logging.Error(err))
	}

	//4.- Drain: stop accepting, let sessions observe ctx and close their recordings.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
	}
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("http shutdown incomplete", logging.Error(shutdownErr))
	}
	logger.Info("navigator stopped")
	return err
}

func startGRPC(cfg *configpkg.Config, host *Host, tokens *auth.PilotTokens, logger *logging.Logger, errs chan<- error) (*grpc.Server, error) {
	opts, err := configureGRPCSecurity(cfg, tokens, logger)
	if err != nil {
		return nil, err
	}
	compressor, err := grpcstream.NewCompressor(cfg.GRPC.Compression)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return nil, fmt.Errorf("grpc listen: %w", err)
	}
	server := grpc.NewServer(opts...)
	grpcstream.Register(server, grpcstream.NewService(host.GRPCFactory,
		grpcstream.WithCompressor(compressor),
		grpcstream.WithLogger(logger),
	))
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			errs <- fmt.Errorf("grpc server: %w", serveErr)
		}
	}()
	logger.Info("gRPC listening", logging.String("address", reachableHost(listener.Addr().String())), logging.String("compression", compressor.Name()))
	return server, nil
}

func storageStats(cleaner *replay.Cleaner) func() replay.StorageStats {
	if cleaner == nil {
		return nil
	}
	return cleaner.Stats
}

func recordingLister(dir string) httpapi.RecordingLister {
	return httpapi.RecordingListerFunc(func(context.Context) (any, error) {
		if dir == "" {
			return []replaycatalog.Entry{}, nil
		}
		entries, err := replaycatalog.List(dir)
		if errors.Is(err, os.ErrNotExist) {
			return []replaycatalog.Entry{}, nil
		}
		return entries, err
	})
}
