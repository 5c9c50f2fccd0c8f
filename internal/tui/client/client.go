package client

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/mxt/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client wraps gRPC connections to the daemon.
type Client struct {
	conn     *grpc.ClientConn
	health   healthpb.HealthClient
	Session  *rpc.SessionClient
	Sync     *rpc.SyncClient
	Room     *rpc.RoomClient
	Timeline *rpc.TimelineClient
	Intent   *rpc.IntentClient
}

// New dials the daemon's Unix domain socket and returns typed service clients.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpc.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	return &Client{
		conn:     conn,
		health:   healthpb.NewHealthClient(conn),
		Session:  rpc.NewSessionClient(conn),
		Sync:     rpc.NewSyncClient(conn),
		Room:     rpc.NewRoomClient(conn),
		Timeline: rpc.NewTimelineClient(conn),
		Intent:   rpc.NewIntentClient(conn),
	}, nil
}

// Healthy reports whether the daemon answers its health check as serving.
func (c *Client) Healthy(ctx context.Context) bool {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{})
	return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Probe checks if a daemon is running and responsive on the socket.
func Probe(socketPath string, timeout time.Duration) bool {
	c, err := New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Healthy(ctx)
}

// WaitReady polls the daemon until it is healthy or timeout passes.
func WaitReady(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if Probe(socketPath, 2*time.Second) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
