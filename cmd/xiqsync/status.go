package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/grpcreflect"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/joshp123/xiqsync/internal/server"
	"github.com/joshp123/xiqsync/internal/ui"
)

var (
	statusAddr string
	statusJSON bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Ask a running 'xiqsync serve' whether its last sync succeeded",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "gRPC address of the server (default: serve.grpc_addr)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw health response as JSON")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr := statusAddr
	if addr == "" {
		addr = dialAddr(cfg.Serve.GRPCAddr)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	conn, err := grpcurl.BlockingDial(ctx, "tcp", addr, insecure.NewCredentials())
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: server.ServiceName})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	if statusJSON {
		out, err := protojson.Marshal(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return healthExit(resp)
	}

	services, err := grpcurl.ListServices(reflectionSource(ctx, conn))
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}

	fields := []ui.Field{
		{Key: "address", Value: addr},
		{Key: "sync", Value: resp.GetStatus().String()},
	}
	for _, svc := range services {
		fields = append(fields, ui.Field{Key: "service", Value: svc})
	}
	ui.WriteFields(cmd.OutOrStdout(), "xiqsync server", fields)

	return healthExit(resp)
}

func healthExit(resp *healthpb.HealthCheckResponse) error {
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return &exitError{code: 1}
	}
	return nil
}

func reflectionSource(ctx context.Context, conn *grpc.ClientConn) grpcurl.DescriptorSource {
	client := grpcreflect.NewClientAuto(ctx, conn)
	return grpcurl.DescriptorSourceFromServer(ctx, client)
}

// dialAddr turns a listen address such as ":9000" into a dialable one.
func dialAddr(listen string) string {
	if len(listen) > 0 && listen[0] == ':' {
		return "localhost" + listen
	}
	return listen
}
