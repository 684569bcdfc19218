// Package runtime composes the client: one fx module providing the
// connection, the domain models and the frame routing between them.
package runtime

import (
	"context"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brunodmn/ripple/internal/api"
	"github.com/brunodmn/ripple/internal/bus"
	"github.com/brunodmn/ripple/internal/cache"
	"github.com/brunodmn/ripple/internal/config"
	"github.com/brunodmn/ripple/internal/conn"
	"github.com/brunodmn/ripple/internal/convo"
	"github.com/brunodmn/ripple/internal/frame"
	"github.com/brunodmn/ripple/internal/lock"
	"github.com/brunodmn/ripple/internal/logging"
	"github.com/brunodmn/ripple/internal/outbound"
	"github.com/brunodmn/ripple/internal/roster"
	"github.com/brunodmn/ripple/internal/session"
	"github.com/brunodmn/ripple/internal/typing"
	"github.com/brunodmn/ripple/internal/unread"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile   string
	ServerURL string // optional override for the configured server
	Console   bool   // mirror logs to stderr, only sane without the TUI
}

// Module returns the fx module for the client, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("runtime",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideSession,
			provideStateMachine,
			provideLock,
			provideCache,
			provideClient,
			provideRoster,
			provideConversations,
			provideRouter,
			provideManager,
			provideOutbound,
			provideTyping,
			provideUnread,
			provideDispatcher,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	if p.ServerURL != "" {
		cfg.ServerURL = p.ServerURL
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.Profile), p.Profile, p.Console)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideSession() *session.Context {
	return session.NewContext()
}

func provideStateMachine(b *bus.Bus) *conn.Machine {
	return conn.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(session.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := session.CacheDBPath(p.Profile)
	db, err := cache.Open(dbPath)
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
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config, logger *zap.Logger) *api.Client {
	return api.New(cfg.ServerURL, cfg.AuthToken, logger)
}

func provideRoster(b *bus.Bus, logger *zap.Logger) *roster.Model {
	return roster.NewModel(b, logger)
}

func provideConversations(client *api.Client, db *cache.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *convo.Store {
	return convo.NewStore(client, db, b, cfg.PageSize, logger)
}

// Router decouples transport construction from frame routing: the
// manager needs a frame callback before the dispatcher can exist, since
// the dispatcher's handlers need the manager to send with.
type Router struct {
	dispatcher *frame.Dispatcher
}

func provideRouter() *Router {
	return &Router{}
}

// Route forwards a raw payload to the dispatcher once one is attached.
// No frames arrive before the connection opens, which happens after
// startup attaches the dispatcher.
func (r *Router) Route(data []byte) {
	if r.dispatcher != nil {
		r.dispatcher.DispatchRaw(data)
	}
}

func provideManager(cfg *config.Config, machine *conn.Machine, router *Router, logger *zap.Logger) *conn.Manager {
	dial := conn.Dial(wsURL(cfg.ServerURL), cfg.AuthToken)
	return conn.NewManager(dial, machine, cfg.ReconnectDelay(), router.Route, logger)
}

func provideOutbound(mgr *conn.Manager, store *convo.Store, r *roster.Model, sess *session.Context, logger *zap.Logger) *outbound.Queue {
	return outbound.NewQueue(mgr, store, r, sess, logger)
}

func provideTyping(mgr *conn.Manager, sess *session.Context, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *typing.Signal {
	return typing.New(mgr, sess, b, cfg.TypingInterval(), cfg.TypingTTL(), logger)
}

func provideUnread(sess *session.Context, b *bus.Bus, logger *zap.Logger) *unread.Tracker {
	return unread.NewTracker(sess, b, logger)
}

func provideDispatcher(cfg *config.Config, store *convo.Store, r *roster.Model,
	queue *outbound.Queue, sig *typing.Signal, tracker *unread.Tracker, logger *zap.Logger) *frame.Dispatcher {

	handlers := frame.Handlers{
		Message: func(m frame.Message) {
			sig.Clear(m.ConversationID)
			kept := store.HandleInbound(m.ConversationID, m.AuthorID, m.Content)
			tracker.HandleMessage(m.ConversationID)
			if c, ok := r.Get(m.AuthorID); ok {
				if c.ConversationID == 0 && m.ConversationID != 0 {
					// First message from this contact, bind the fresh
					// conversation so later opens and lookups find it.
					convID := m.ConversationID
					r.Merge(c.ID, roster.Patch{ConversationID: &convID})
				}
				r.ApplyMessage(c.ID, m.Content, time.Now(), kept)
			}
		},
		Ack: func(a frame.Ack) {
			queue.HandleAck(a.TempID, a.ConversationID)
		},
		Typing: func(t frame.Typing) {
			sig.HandleTyping(t.ConversationID)
		},
		UserStatus: func(s frame.UserStatus) {
			online := s.Online
			r.Merge(s.UserID, roster.Patch{Online: &online})
		},
	}
	dec := frame.Decoder{AllowUntyped: cfg.AcceptUntypedFrames}
	return frame.NewDispatcher(dec, handlers, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, mgr *conn.Manager, lk *lock.Lock, db *cache.DB,
	client *api.Client, r *roster.Model, store *convo.Store, sess *session.Context,
	router *Router, dispatcher *frame.Dispatcher, logger *zap.Logger) {

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			router.dispatcher = dispatcher

			// Paint from the cache before the first round trip.
			if cached, err := db.ListContacts(); err != nil {
				logger.Warn("cache read failed", zap.Error(err))
			} else if len(cached) > 0 {
				r.Load(cached)
				logger.Info("roster warmed from cache", zap.Int("contacts", len(cached)))
			}

			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				user, err := client.Me(ctx)
				if err != nil {
					logger.Error("identity fetch failed", zap.Error(err))
				} else {
					sess.SetUser(user)
					logger.Info("identified", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
				}

				if contacts, err := client.Roster(ctx); err != nil {
					logger.Error("roster fetch failed", zap.Error(err))
				} else {
					r.Load(contacts)
					if err := db.ReplaceContacts(contacts); err != nil {
						logger.Warn("cache write failed", zap.Error(err))
					}
				}

				if err := mgr.Open(context.Background()); err != nil {
					// The manager keeps retrying on its own.
					logger.Warn("initial connect failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			mgr.Close()
			if msgs := store.Messages(); len(msgs) > 0 {
				if err := db.UpsertMessages(msgs); err != nil {
					logger.Warn("message cache write failed", zap.Error(err))
				}
			}
			if err := db.Close(); err != nil {
				logger.Warn("cache close failed", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped", zap.String("profile", p.Profile))
			return nil
		},
	})
}

// wsURL derives the socket endpoint from the configured server URL.
func wsURL(serverURL string) string {
	u := strings.TrimRight(serverURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}
