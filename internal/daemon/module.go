package daemon

import (
	"context"
	"errors"

	"github.com/matheus3301/mxt/internal/api"
	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/config"
	"github.com/matheus3301/mxt/internal/intent"
	"github.com/matheus3301/mxt/internal/lock"
	"github.com/matheus3301/mxt/internal/logging"
	"github.com/matheus3301/mxt/internal/matrix"
	"github.com/matheus3301/mxt/internal/navigation"
	"github.com/matheus3301/mxt/internal/oidc"
	"github.com/matheus3301/mxt/internal/outbox"
	"github.com/matheus3301/mxt/internal/roomlist"
	"github.com/matheus3301/mxt/internal/session"
	"github.com/matheus3301/mxt/internal/status"
	"github.com/matheus3301/mxt/internal/store"
	intsync "github.com/matheus3301/mxt/internal/sync"
	"github.com/spf13/afero"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // optional override; empty = ~/.mxt/config.toml
	LogLevel    string // optional override of the configured level
}

// Lifetime is the context of the running daemon. Long-running loops started
// from requests (such as /sync after a login) run on it, not on the request.
type Lifetime struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLifetime,
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			providePublisher,
			provideReconciler,
			provideEventHandler,
			provideAdapter,
			provideSyncEngine,
			provideSender,
			provideOIDC,
			provideResolver,
			provideRouter,
			provideSessionService,
			provideSyncService,
			provideRoomService,
			provideTimelineService,
			provideIntentService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLifetime() *Lifetime {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lifetime{Ctx: ctx, Cancel: cancel}
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	return config.LoadOrDefault(afero.NewOsFs(), path)
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if p.LogLevel != "" {
		level = p.LogLevel
	}
	return logging.New(session.LogPath(p.SessionName), p.SessionName, level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is never opened by two daemons.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func providePublisher() *roomlist.Publisher {
	return roomlist.NewPublisher()
}

func provideReconciler(db *store.DB, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(db, logger)
}

func provideEventHandler(b *bus.Bus, machine *status.Machine, logger *zap.Logger) *matrix.EventHandler {
	return matrix.NewEventHandler(b, machine, logger)
}

func provideAdapter(lt *Lifetime, cfg *config.Config, rec *intsync.Reconciler, handler *matrix.EventHandler, b *bus.Bus, logger *zap.Logger) (*matrix.Adapter, error) {
	return matrix.NewAdapter(lt.Ctx, matrix.Options{DeviceName: cfg.DeviceName}, rec, rec, handler, b, logger)
}

func provideSyncEngine(db *store.DB, b *bus.Bus, rooms *roomlist.Publisher, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, rooms, logger)
}

func provideSender(db *store.DB, adapter *matrix.Adapter, b *bus.Bus, engine *intsync.Engine, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, adapter, b, engine, logger)
}

// provideOIDC returns nil when OIDC login is not configured.
func provideOIDC(cfg *config.Config, logger *zap.Logger) (*oidc.Flow, error) {
	flow, err := oidc.NewFlow(cfg.OIDC)
	if errors.Is(err, oidc.ErrNotConfigured) {
		logger.Info("oidc login disabled")
		return nil, nil
	}
	return flow, err
}

func provideResolver(cfg *config.Config, logger *zap.Logger) *intent.Resolver {
	return intent.NewResolver(intent.Config{
		DeepLinkScheme:  cfg.DeepLinkScheme,
		OIDCRedirectURI: cfg.OIDC.RedirectURI,
		PermalinkHosts:  cfg.PermalinkHosts,
		LoginLinkHost:   cfg.LoginLinkHost,
	}, logger)
}

func provideRouter(p Params, lt *Lifetime, cfg *config.Config, db *store.DB, adapter *matrix.Adapter, flow *oidc.Flow, sender *outbox.Sender, logger *zap.Logger) *navigation.Router {
	deps := navigation.Deps{
		Session:    p.SessionName,
		Sessions:   sessionNames,
		Rooms:      db,
		Joiner:     adapter,
		Auth:       adapter,
		Sharer:     sender,
		Homeserver: cfg.Homeserver,
		Markdown:   cfg.Markdown,
		AfterLogin: func(context.Context) error { return adapter.StartSync(lt.Ctx) },
	}
	if flow != nil {
		deps.OIDC = flow
	}
	return navigation.NewRouter(deps, logger)
}

func sessionNames() ([]string, error) {
	infos, err := session.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names, nil
}

func provideSessionService(p Params, lt *Lifetime, cfg *config.Config, m *status.Machine, adapter *matrix.Adapter, flow *oidc.Flow, b *bus.Bus, db *store.DB, logger *zap.Logger) *api.SessionService {
	deps := api.SessionDeps{
		SessionName: p.SessionName,
		Homeserver:  cfg.Homeserver,
		Machine:     m,
		Account:     adapter,
		Bus:         b,
		DB:          db,
		Logger:      logger,
		SyncContext: lt.Ctx,
	}
	if flow != nil {
		deps.OIDC = flow
	}
	return api.NewSessionService(deps)
}

func provideSyncService(lt *Lifetime, adapter *matrix.Adapter, b *bus.Bus, m *status.Machine, db *store.DB) *api.SyncService {
	return api.NewSyncService(lt.Ctx, adapter, b, m, db)
}

func provideRoomService(db *store.DB, rooms *roomlist.Publisher, engine *intsync.Engine, adapter *matrix.Adapter, b *bus.Bus, logger *zap.Logger) *api.RoomService {
	return api.NewRoomService(db, rooms, engine, adapter, b, logger)
}

func provideTimelineService(cfg *config.Config, db *store.DB, adapter *matrix.Adapter, engine *intsync.Engine, sender *outbox.Sender, b *bus.Bus) *api.TimelineService {
	return api.NewTimelineService(db, adapter, engine, sender, b, cfg.Markdown)
}

func provideIntentService(resolver *intent.Resolver, router *navigation.Router, logger *zap.Logger) *api.IntentService {
	return api.NewIntentService(resolver, router, logger)
}

func registerLifecycle(lc fx.Lifecycle, lt *Lifetime, srv *Server, lk *lock.Lock, db *store.DB, adapter *matrix.Adapter, engine *intsync.Engine, sender *outbox.Sender, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start sync engine (subscribes to mx.* bus events).
			engine.Start(lt.Ctx)

			// Seed the room list from the read-model before the first sync lands.
			if err := engine.PublishRoomList(); err != nil {
				logger.Warn("initial room list", zap.Error(err))
			}

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			// Start outbox sender.
			sender.Start(lt.Ctx)

			// Resume syncing when a login was restored.
			if adapter.IsLoggedIn() {
				if err := adapter.StartSync(lt.Ctx); err != nil {
					logger.Error("auto-start sync failed", zap.Error(err))
					_ = machine.Transition(status.Error)
				}
			} else {
				logger.Info("no credentials found, auth required")
				_ = machine.Transition(status.AuthRequired)
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			adapter.StopSync()
			sender.Stop()
			engine.Stop()
			srv.Stop(ctx)
			lt.Cancel()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
