package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshp123/xiqsync/internal/auth"
	"github.com/joshp123/xiqsync/internal/rate"
	"github.com/joshp123/xiqsync/internal/server"
	"github.com/joshp123/xiqsync/internal/syncer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync on an interval and serve health, metrics and the read API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, st, cleanup, err := buildSyncer(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer st.Close()

	grpcServer, err := server.NewGRPCServer(cfg.Serve.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	registry := server.NewRegistry(
		rate.MetricsCollectors(),
		auth.MetricsCollectors(),
		syncer.MetricsCollectors(),
	)
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "xiqsync_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))

	httpServer := server.NewHTTPServer(cfg.Serve.HTTPAddr, server.NewRouter(st, registry, cfg.Serve.AllowedOrigins))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("http listening on %s", cfg.Serve.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Printf("grpc listening on %s", cfg.Serve.GRPCAddr)
		if err := grpcServer.Serve(); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		syncLoop(gctx, pipeline, grpcServer, cfg.Serve.Interval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcServer.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// syncLoop runs immediately and then on every tick until ctx is done. A failed
// run is logged and flips the health status; the loop keeps going.
func syncLoop(ctx context.Context, pipeline *syncer.Syncer, health *server.GRPCServer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := pipeline.Run(ctx)
		if err != nil {
			log.Printf("sync failed: %v", err)
		} else {
			log.Printf("sync stored %d access points", result.Stored)
		}
		health.SetServing(err == nil)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
