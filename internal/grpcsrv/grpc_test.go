//go:build !rmgrpc

package grpcsrv

import (
	"context"
	"testing"
	"time"

	"github.com/nmezhenskyi/listend/internal/bind"
	"github.com/nmezhenskyi/listend/internal/registry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func TestNewServer(t *testing.T) {
	server := NewServer(nil)
	if server == nil {
		t.Fatal("Expected pointer to initialized Server, got nil instead")
	}
	if server.server == nil {
		t.Error("Server.server has not been initialized")
	}
	if server.health == nil {
		t.Error("Server.health has not been initialized")
	}
	if server.registry == nil {
		t.Error("Server.registry has not been initialized")
	}
}

func TestHealthCheck(t *testing.T) {
	reg := registry.New()
	mainSock := newSocket(t)
	closedSock := newSocket(t)
	reg.Add("main", mainSock)
	reg.Add("status", closedSock)
	closedSock.Close()

	server := NewServer(reg)
	ls := newSocket(t)
	served := make(chan error, 1)
	go func() { served <- server.Serve(ls) }()

	client, conn := newTestClient(ls.Addr().String(), t)
	defer conn.Close()

	testCases := []struct {
		name     string
		service  string
		expected healthpb.HealthCheckResponse_ServingStatus
	}{
		{name: "Overall", service: "", expected: healthpb.HealthCheckResponse_SERVING},
		{name: "Open listener", service: "main", expected: healthpb.HealthCheckResponse_SERVING},
		{name: "Closed listener", service: "status", expected: healthpb.HealthCheckResponse_NOT_SERVING},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			res, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: tc.service})
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if res.GetStatus() != tc.expected {
				t.Errorf("Expected status %v, got %v instead", tc.expected, res.GetStatus())
			}
		})
	}

	t.Run("Unknown service", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "missing"})
		if status.Code(err) != codes.NotFound {
			t.Errorf("Expected NotFound, got %v instead", err)
		}
	})

	if err := server.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
	if err := <-served; err != nil {
		t.Errorf("Expected Serve to return nil after Shutdown, got %v instead", err)
	}
	if !ls.Closed() {
		t.Error("Expected the listening socket to be closed")
	}
}

func TestRefresh(t *testing.T) {
	reg := registry.New()
	sock := newSocket(t)
	id := reg.Add("main", sock)
	server := NewServer(reg)

	server.Refresh()
	checkStatus(t, server, "main", healthpb.HealthCheckResponse_SERVING)

	sock.Close()
	server.Refresh()
	checkStatus(t, server, "main", healthpb.HealthCheckResponse_NOT_SERVING)

	reg.Delete(id)
	server.Refresh()
	checkStatus(t, server, "main", healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
}

func checkStatus(t *testing.T, server *Server, service string, expected healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	res, err := server.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.GetStatus() != expected {
		t.Errorf("Expected status %v, got %v instead", expected, res.GetStatus())
	}
}

func newSocket(t *testing.T) *bind.ListeningSocket {
	t.Helper()
	ls, err := bind.BindAndListen("127.0.0.1", 0, 8)
	if err != nil {
		t.Fatalf("Failed to bind: %v", err)
	}
	t.Cleanup(func() { ls.Close() })
	return ls
}

func newTestClient(addr string, t *testing.T) (healthpb.HealthClient, *grpc.ClientConn) {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("Failed to connect to the server: %v", err)
	}
	return healthpb.NewHealthClient(conn), conn
}
