package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/share/pkg/channel"
	"github.com/cuemby/share/pkg/config"
	"github.com/cuemby/share/pkg/coordinator"
	"github.com/cuemby/share/pkg/log"
	"github.com/cuemby/share/pkg/metrics"
	"github.com/cuemby/share/pkg/protocol"
	"github.com/cuemby/share/pkg/rpc"
	"github.com/cuemby/share/pkg/serializer"
	"github.com/cuemby/share/pkg/sot"
	"github.com/cuemby/share/pkg/typeregistry"
)

var (
	metricsAddr    string
	socketOverride string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the coordinator main loop and serve the command socket",
		RunE:  runCoordinator,
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics, /health, /ready, /live on")
	cmd.Flags().StringVar(&socketOverride, "socket", "", "override the configured Unix socket path")
	return cmd
}

func runCoordinator(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("sharecoordinator: %w", err)
		}
		cfg = loaded
	}
	if socketOverride != "" {
		cfg.Socket.Path = socketOverride
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	log.Init(log.Config{Level: log.Level(level), JSONOutput: cfg.Log.JSON && logJSON})
	metrics.SetVersion(version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := sot.New()
	ch := channel.NewInProcess(cfg.Channel.Capacity)
	co := coordinator.New(store, ch, serializer.NewJSON())

	// A remote SET of a primitive carries its type's registry name;
	// register the primitive types so this process can decode them.
	for _, v := range []any{false, int(0), int64(0), uint64(0), float64(0), "", []byte(nil)} {
		typeregistry.NameFor(reflect.TypeOf(v))
	}

	go co.Run(ctx)
	metrics.RegisterComponent("coordinator", true, "")

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

	server := rpc.NewServer(ch, cfg.Channel.ReplyTimeout)
	grpcServer, lis, err := rpc.Listen(cfg.Socket.Path, server)
	if err != nil {
		metrics.RegisterComponent("rpc", false, err.Error())
		return fmt.Errorf("sharecoordinator: %w", err)
	}
	log.Logger.Info().Str("socket", cfg.Socket.Path).Msg("listening for proxies")
	metrics.RegisterComponent("rpc", true, "")

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Logger.Error().Err(err).Msg("rpc server exited")
			metrics.RegisterComponent("rpc", false, err.Error())
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	httpServer := &http.Server{Addr: metricsAddr, Handler: mux}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("metrics server exited")
		}
	}()

	<-ctx.Done()
	log.Logger.Info().Msg("shutting down")

	grpcServer.GracefulStop()
	_ = httpServer.Shutdown(context.Background())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Channel.ShutdownWait)
	defer shutdownCancel()
	if _, err := ch.SendAndWait(shutdownCtx, &protocol.Command{Tag: protocol.TagShutdown}, cfg.Channel.ShutdownWait); err != nil {
		log.Logger.Warn().Err(err).Msg("failed to submit shutdown command")
	}

	select {
	case <-co.Done():
	case <-shutdownCtx.Done():
		log.Logger.Warn().Msg("coordinator did not stop before shutdown deadline")
	}
	ch.Close()

	if _, err := os.Stat(cfg.Socket.Path); err == nil {
		_ = os.Remove(cfg.Socket.Path)
	}

	return nil
}
