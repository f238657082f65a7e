package daemon

import (
	"context"
	"path/filepath"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/imv/internal/api"
	"github.com/matheus3301/imv/internal/bus"
	"github.com/matheus3301/imv/internal/config"
	"github.com/matheus3301/imv/internal/lock"
	"github.com/matheus3301/imv/internal/logging"
	"github.com/matheus3301/imv/internal/profile"
	"github.com/matheus3301/imv/internal/status"
	"github.com/matheus3301/imv/internal/store"
	"github.com/matheus3301/imv/internal/thumbcache"
	"github.com/matheus3301/imv/internal/watch"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	Config     *config.Config
	Dir        string // optional override for testing; empty = profile.Dir(Profile)
	SocketPath string // optional override for testing; empty = <Dir>/daemon.sock
}

func (p Params) config() *config.Config {
	if p.Config == nil {
		return config.Default()
	}
	return p.Config
}

func (p Params) dir() string {
	if p.Dir != "" {
		return p.Dir
	}
	return profile.Dir(p.Profile)
}

func (p Params) socketPath() string {
	if p.SocketPath != "" {
		return p.SocketPath
	}
	return filepath.Join(p.dir(), "daemon.sock")
}

func (p Params) chatDB() config.Profile {
	return p.config().Profile(p.Profile)
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideThumbnails,
			provideWatcher,
			provideViewerService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(filepath.Join(p.dir(), "logs", "imvd.log"), p.Profile, p.config().LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(p.dir(), p.chatDB().ChatDB)
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so a second daemon fails before touching chat.db.
func provideStore(p Params, _ *lock.Lock, machine *status.Machine, logger *zap.Logger) (*store.DB, error) {
	prof := p.chatDB()
	if err := machine.Transition(status.Opening); err != nil {
		return nil, err
	}
	db, err := store.Open(context.Background(), prof.ChatDB, store.Options{
		AttachmentsRoot: prof.AttachmentsRoot,
		Logger:          logger,
	})
	if err != nil {
		_ = machine.TransitionReason(status.Unavailable, err.Error())
		return nil, err
	}
	return db, nil
}

func provideThumbnails(p Params, logger *zap.Logger) (*thumbcache.Cache, error) {
	return thumbcache.New(filepath.Join(p.dir(), "thumbs"), p.config().Cache.ThumbnailEntries, thumbcache.WithLogger(logger))
}

func provideWatcher(db *store.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *watch.Watcher {
	w := watch.New(db.Path(), b, machine, logger, watch.DefaultDebounce)
	w.OnRestore(db.Refresh)
	return w
}

func provideViewerService(p Params, db *store.DB, thumbs *thumbcache.Cache, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *api.ViewerService {
	return api.NewViewerService(p.Profile, db, thumbs, b, machine, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, watcher *watch.Watcher, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := watcher.Start(context.Background()); err != nil {
				logger.Warn("change watching disabled", zap.Error(err))
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if err := db.Ping(ctx); err != nil {
				logger.Warn("chat.db not readable", zap.Error(err))
				return machine.TransitionReason(status.Unavailable, err.Error())
			}
			return machine.Transition(status.Ready)
		},
		OnStop: func(ctx context.Context) error {
			watcher.Stop()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing chat.db", zap.Error(err))
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
