package api

import (
	"context"
	"time"

	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/matrix"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/matheus3301/mxt/internal/session"
	"github.com/matheus3301/mxt/internal/status"
	"github.com/matheus3301/mxt/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Account is the Matrix login surface driven by the session service.
type Account interface {
	IsLoggedIn() bool
	UserID() string
	DeviceID() string
	Homeserver() string
	IsSyncing() bool
	StartSync(ctx context.Context) error
	StopSync()
	ResolveHomeserver(ctx context.Context, server string) (string, error)
	LoginPassword(ctx context.Context, homeserver, user, password string) (*matrix.Credentials, error)
	Logout(ctx context.Context) error
}

// OIDCStarter begins an OIDC login. The callback comes back as an intent.
type OIDCStarter interface {
	Start() string
}

// SessionService implements rpc.SessionServer.
type SessionService struct {
	sessionName string
	homeserver  string
	startedAt   time.Time
	machine     *status.Machine
	account     Account
	oidc        OIDCStarter
	bus         *bus.Bus
	db          *store.DB
	logger      *zap.Logger
	// syncCtx outlives requests; the sync loop started after login runs on it.
	syncCtx context.Context
	// sessions lists sessions on disk. Replaced in tests.
	sessions func() ([]session.Info, error)
}

// SessionDeps groups the collaborators of a SessionService. Account, OIDC
// and DB may be nil.
type SessionDeps struct {
	SessionName string
	Homeserver  string
	Machine     *status.Machine
	Account     Account
	OIDC        OIDCStarter
	Bus         *bus.Bus
	DB          *store.DB
	Logger      *zap.Logger
	SyncContext context.Context
}

// NewSessionService creates a new session service.
func NewSessionService(d SessionDeps) *SessionService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.SyncContext == nil {
		d.SyncContext = context.Background()
	}
	return &SessionService{
		sessionName: d.SessionName,
		homeserver:  d.Homeserver,
		startedAt:   time.Now(),
		machine:     d.Machine,
		account:     d.Account,
		oidc:        d.OIDC,
		bus:         d.Bus,
		db:          d.DB,
		logger:      d.Logger,
		syncCtx:     d.SyncContext,
		sessions:    session.List,
	}
}

func (s *SessionService) Status(_ context.Context, _ *rpc.StatusRequest) (*rpc.StatusResponse, error) {
	resp := &rpc.StatusResponse{
		Session:     s.sessionName,
		State:       string(s.machine.Current()),
		SinceUnixMs: s.machine.Since().UnixMilli(),
		UptimeMs:    time.Since(s.startedAt).Milliseconds(),
		OIDCEnabled: s.oidc != nil,
	}
	if s.account != nil {
		resp.UserID = s.account.UserID()
		resp.DeviceID = s.account.DeviceID()
		resp.Homeserver = s.account.Homeserver()
		resp.Syncing = s.account.IsSyncing()
	}
	if s.db != nil {
		if n, err := s.db.RoomCount(); err == nil {
			resp.RoomCount = n
		}
		if n, err := s.db.EventCount(); err == nil {
			resp.EventCount = n
		}
	}
	if s.bus != nil {
		resp.DroppedEvents = s.bus.Dropped()
	}
	return resp, nil
}

func (s *SessionService) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	if s.account == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "matrix client not initialized")
	}
	if req.User == "" || req.Password == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "user and password are required")
	}
	if s.account.IsLoggedIn() {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "already logged in as %s", s.account.UserID())
	}

	server := req.Homeserver
	if server == "" {
		server = s.homeserver
	}
	if server == "" {
		server = req.User
	}
	homeserver, err := s.account.ResolveHomeserver(ctx, server)
	if err != nil {
		return nil, toStatus("resolve homeserver", err)
	}
	creds, err := s.account.LoginPassword(ctx, homeserver, req.User, req.Password)
	if err != nil {
		return nil, toStatus("login", err)
	}
	if err := s.account.StartSync(s.syncCtx); err != nil {
		s.logger.Error("failed to start sync after login", zap.Error(err))
	}
	return &rpc.LoginResponse{UserID: creds.UserID, DeviceID: creds.DeviceID, Homeserver: creds.Homeserver}, nil
}

func (s *SessionService) StartOIDC(_ context.Context, _ *rpc.StartOIDCRequest) (*rpc.StartOIDCResponse, error) {
	if s.oidc == nil {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "oidc login is not configured")
	}
	return &rpc.StartOIDCResponse{AuthURL: s.oidc.Start()}, nil
}

func (s *SessionService) Logout(ctx context.Context, _ *rpc.LogoutRequest) (*rpc.LogoutResponse, error) {
	if s.account == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "matrix client not initialized")
	}
	if err := s.account.Logout(ctx); err != nil {
		return nil, toStatus("logout", err)
	}
	if err := s.machine.Advance(status.AuthRequired); err != nil {
		s.logger.Warn("unexpected state after logout", zap.Error(err))
	}
	return &rpc.LogoutResponse{}, nil
}

func (s *SessionService) ListSessions(_ context.Context, _ *rpc.ListSessionsRequest) (*rpc.ListSessionsResponse, error) {
	infos, err := s.sessions()
	if err != nil {
		return nil, toStatus("list sessions", err)
	}
	resp := &rpc.ListSessionsResponse{Sessions: []rpc.SessionInfo{}}
	for _, info := range infos {
		resp.Sessions = append(resp.Sessions, rpc.SessionInfo{
			Name:          info.Name,
			Path:          info.Path,
			DaemonRunning: info.DaemonRunning || info.Name == s.sessionName,
			Current:       info.Name == s.sessionName,
		})
	}
	return resp, nil
}

// WatchStatus streams state machine changes and login/logout events. The
// first message carries the current state.
func (s *SessionService) WatchStatus(_ *rpc.WatchStatusRequest, stream rpc.Stream[rpc.StatusEvent]) error {
	ch, unsub := s.bus.Subscribe(bus.NamespaceSession, 64)
	defer unsub()

	if err := stream.Send(&rpc.StatusEvent{
		To:       string(s.machine.Current()),
		AtUnixMs: s.machine.Since().UnixMilli(),
	}); err != nil {
		return err
	}

	for {
		select {
		case evt := <-ch:
			msg := &rpc.StatusEvent{To: string(s.machine.Current()), AtUnixMs: evt.Timestamp.UnixMilli()}
			switch evt.Kind {
			case bus.KindStatusChanged:
				change, ok := evt.Payload.(status.StatusChange)
				if !ok {
					continue
				}
				msg.From, msg.To = string(change.From), string(change.To)
			case bus.KindLoggedOut:
				msg.LoggedOut = true
			case bus.KindLoggedIn, bus.KindAuthFailed:
			default:
				continue
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}
