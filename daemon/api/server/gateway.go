package server

import (
	"context"
	"net"
	"net/http"
	"os"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// StartAPIServers starts the gRPC server, HTTP gateway, and an SSE endpoint.
// grpcAddr: address for gRPC (e.g., 127.0.0.1:9090)
// restAddr: address for REST (e.g., 127.0.0.1:8080)
func StartAPIServers(ctx context.Context, grpcAddr, restAddr string, impl *DaemonAPIServer) (grpcStop func(), restStop func(), err error) {
	// RegisterGRPC is a no-op in native HTTP mode
	grpcServer := grpc.NewServer()
	RegisterGRPC(grpcServer, impl)
	l, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return nil, nil, err
	}
	go func() { _ = grpcServer.Serve(l) }()
	grpcStop = func() { grpcServer.GracefulStop(); _ = l.Close() }

	// Try grpc-gateway else fall back to the native HTTP handlers.
	gwMux := http.NewServeMux()
	gw := runtime.NewServeMux()
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if err := RegisterGateway(ctx, gw, grpcAddr, dialOpts); err == nil {
		gwMux.Handle("/", gw)
	} else {
		impl.RegisterHTTP(gwMux)
	}

	root := http.NewServeMux()
	root.Handle("/api/v1/events", SSEHandler(impl.events))
	root.Handle("/", gwMux)

	authToken := os.Getenv("CCLSIM_AUTH_TOKEN")
	var handler http.Handler = root
	if authToken != "" {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Auth-Token") != authToken {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			root.ServeHTTP(w, r)
		})
	}
	server := &http.Server{Addr: restAddr, Handler: handler}
	go func() { _ = server.ListenAndServe() }()
	restStop = func() { _ = server.Close() }
	return grpcStop, restStop, nil
}
