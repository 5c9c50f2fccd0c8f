package rpc

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/mxt/internal/navigation"
	"github.com/matheus3301/mxt/internal/roomlist"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeIntent struct{}

func (fakeIntent) Open(_ context.Context, in *OpenRequest) (*OpenResponse, error) {
	if in.URI == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "uri required")
	}
	return &OpenResponse{Destination: navigation.Destination{Screen: navigation.ScreenRoom, RoomID: in.URI}}, nil
}

type fakeRooms struct {
	RoomServer
	updates []roomlist.Update
}

func (f *fakeRooms) Watch(_ *WatchRoomsRequest, stream Stream[roomlist.Update]) error {
	for i := range f.updates {
		if err := stream.Send(&f.updates[i]); err != nil {
			return err
		}
	}
	return nil
}

func dial(t *testing.T, register func(*grpc.Server)) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestCodec(t *testing.T) {
	c := Codec{}
	if c.Name() != CodecName {
		t.Fatalf("name = %q", c.Name())
	}

	data, err := c.Marshal(&JoinRoomRequest{RoomIDOrAlias: "#a:x", Via: []string{"x"}})
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"room_id_or_alias":"#a:x","via":["x"]}`; string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
	var back JoinRoomRequest
	if err := c.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.RoomIDOrAlias != "#a:x" {
		t.Errorf("round trip lost data: %+v", back)
	}

	data, err = c.Marshal(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
	if err != nil {
		t.Fatal(err)
	}
	var resp healthpb.HealthCheckResponse
	if err := c.Unmarshal(data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v", resp.Status)
	}

	if err := c.Unmarshal(nil, &back); err != nil {
		t.Errorf("empty payload: %v", err)
	}
}

func TestUnaryCall(t *testing.T) {
	conn := dial(t, func(s *grpc.Server) { RegisterIntentServer(s, fakeIntent{}) })
	client := NewIntentClient(conn)

	resp, err := client.Open(context.Background(), &OpenRequest{URI: "!room:x"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if resp.Destination.RoomID != "!room:x" || resp.Destination.Screen != navigation.ScreenRoom {
		t.Errorf("destination = %+v", resp.Destination)
	}

	_, err = client.Open(context.Background(), &OpenRequest{})
	if grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
}

func TestServerStream(t *testing.T) {
	rooms := &fakeRooms{updates: []roomlist.Update{
		{Version: 1, Diffs: []roomlist.Diff{{Op: roomlist.OpClear}}},
		{Version: 2, Diffs: []roomlist.Diff{{Op: roomlist.OpPopBack}}},
	}}
	conn := dial(t, func(s *grpc.Server) { RegisterRoomServer(s, rooms) })

	recv, err := NewRoomClient(conn).Watch(context.Background(), &WatchRoomsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	var got []roomlist.Update
	for {
		u, err := recv.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, *u)
	}
	if diff := cmp.Diff(rooms.updates, got); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
}

func TestHealthOverJSON(t *testing.T) {
	conn := dial(t, func(s *grpc.Server) {
		h := health.NewServer()
		h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(s, h)
	})
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{},
		grpc.CallContentSubtype(CodecName))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v", resp.Status)
	}
}
