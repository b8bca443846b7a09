package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	cfgpkg "github.com/rzbill/auditstack/internal/config"
	"github.com/rzbill/auditstack/internal/runtime"
	pebblestore "github.com/rzbill/auditstack/internal/storage/pebble"
)

const bufSize = 1 << 20

func startServer(t *testing.T, srv *Server) (*grpc.ClientConn, context.CancelFunc) {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Serve(ctx, lis) }()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		cancel()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
		cancel()
	}
}

func TestHealthOverGRPC(t *testing.T) {
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	defer rt.Close()
	conn, stop := startServer(t, New(rt))
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := healthpb.NewHealthClient(conn)
	for _, svc := range []string{"", ServiceName} {
		res, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err != nil {
			t.Fatalf("check %q: %v", svc, err)
		}
		if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("check %q: status %v", svc, res.GetStatus())
		}
	}
}

func TestHealthReflectsClosedRuntime(t *testing.T) {
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	srv := New(rt)
	srv.probe = 5 * time.Millisecond
	conn, stop := startServer(t, srv)
	defer stop()

	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	c := healthpb.NewHealthClient(conn)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		if err == nil && res.GetStatus() == healthpb.HealthCheckResponse_NOT_SERVING {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("health never reported NOT_SERVING")
}
